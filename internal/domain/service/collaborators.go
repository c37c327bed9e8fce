package service

import (
	"context"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
)

// SemanticResolver maps free text onto a command. Any failure is a *models.ParseError.
type SemanticResolver interface {
	Resolve(ctx context.Context, text string, rc models.RequestContext) (models.ParsedCommand, error)
}

// ServiceCaller invokes operation on a named evidence service. Non-2xx
// answers come back as *models.ServiceError.
type ServiceCaller interface {
	Call(ctx context.Context, service, operation string, payload interface{}) ([]byte, error)
}

type MarketSource interface {
	Quote(ctx context.Context, symbol string) (models.MarketData, error)
}

type SentimentSource interface {
	Sentiment(ctx context.Context, symbol string) (models.Sentiment, error)
}

type RiskSource interface {
	Assess(ctx context.Context, symbol string, intent models.Intent) (models.RiskAssessment, error)
}

// RiskChecker is the pre-trade gate. An approved Check holds exposure for
// the proposal; Release hands it back when the order is not published.
type RiskChecker interface {
	Check(ctx context.Context, p models.RiskProposal) (models.RiskDecision, error)
	Release(ctx context.Context, p models.RiskProposal) error
}
