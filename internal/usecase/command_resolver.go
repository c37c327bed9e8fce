package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"
	domsvc "github.com/EasyE-base/neural-command-layer/internal/domain/service"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"
)

// Resolver paths, also used as metric labels.
const (
	ResolverSemantic = "semantic"
	ResolverFallback = "fallback"
	// semantic configured but failed
	ResolverRecovered = "fallback_after_error"
)

// CommandResolver prefers the semantic resolver and drops to the keyword
// fallback on any failure. Resolution errors never reach the caller.
type CommandResolver struct {
	semantic domsvc.SemanticResolver
	fallback *FallbackResolver
	metrics  domrepo.Metrics
	log      *logger.Logger
}

// NewCommandResolver builds a resolver; semantic may be nil.
func NewCommandResolver(semantic domsvc.SemanticResolver, fallback *FallbackResolver, metrics domrepo.Metrics, l *logger.Logger) *CommandResolver {
	if fallback == nil {
		fallback = NewFallbackResolver()
	}
	return &CommandResolver{semantic: semantic, fallback: fallback, metrics: metrics, log: l}
}

// Resolve returns the parsed command and the path that produced it.
func (r *CommandResolver) Resolve(ctx context.Context, text string, rc models.RequestContext) (models.ParsedCommand, string) {
	if r.semantic == nil {
		r.metrics.RecordResolver(ResolverFallback)
		return r.fallback.Resolve(text), ResolverFallback
	}

	start := time.Now()
	cmd, err := r.semantic.Resolve(ctx, text, rc)
	r.metrics.RecordLatency("semantic_resolve", time.Since(start))
	if err == nil {
		r.metrics.RecordResolver(ResolverSemantic)
		return cmd, ResolverSemantic
	}

	var pe *models.ParseError
	if errors.As(err, &pe) {
		r.log.Warn("semantic resolver failed, using fallback", logger.String("reason", pe.Reason), logger.Error(pe.Err))
	} else {
		r.log.Warn("semantic resolver failed, using fallback", logger.Error(err))
	}
	r.metrics.RecordResolver(ResolverRecovered)
	return r.fallback.Resolve(text), ResolverRecovered
}
