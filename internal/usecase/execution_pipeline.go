package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"
	domsvc "github.com/EasyE-base/neural-command-layer/internal/domain/service"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/google/uuid"
)

// PipelineData is the response payload of a trade pipeline run.
type PipelineData struct {
	Command  models.ParsedCommand     `json:"command"`
	Evidence *models.EvidenceRecord   `json:"evidence,omitempty"`
	Verdict  *models.ConsensusVerdict `json:"verdict,omitempty"`
	Proposal *models.RiskProposal     `json:"proposal,omitempty"`
	Risk     *models.RiskDecision     `json:"risk,omitempty"`
	Order    *models.OrderRecord      `json:"order,omitempty"`

	// Set when a final confirmation is requested in token mode.
	ConfirmationToken string     `json:"confirmationToken,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

// ExecutionResult pairs the response with what the audit trail needs.
type ExecutionResult struct {
	Response models.CommandResponse
	Outcome  string
	Risk     *models.RiskDecision
	Order    *models.OrderRecord
}

// ExecutionPipeline runs the pre-trade risk gate and publishes approved orders.
type ExecutionPipeline struct {
	risk              domsvc.RiskChecker
	bus               domrepo.EventBus
	metrics           domrepo.Metrics
	log               *logger.Logger
	source            string
	finalConfirmation bool
	now               func() time.Time
	newID             func() string
}

type PipelineOption func(*ExecutionPipeline)

// WithFinalConfirmation requires executeConfirmed before publishing.
func WithFinalConfirmation(enabled bool) PipelineOption {
	return func(p *ExecutionPipeline) { p.finalConfirmation = enabled }
}

func WithOrderSource(source string) PipelineOption {
	return func(p *ExecutionPipeline) {
		if source != "" {
			p.source = source
		}
	}
}

func NewExecutionPipeline(risk domsvc.RiskChecker, bus domrepo.EventBus, metrics domrepo.Metrics, l *logger.Logger, opts ...PipelineOption) *ExecutionPipeline {
	p := &ExecutionPipeline{
		risk:    risk,
		bus:     bus,
		metrics: metrics,
		log:     l,
		source:  "neural-command-layer",
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute must only be called for a confirmed command with a proceeding verdict.
func (p *ExecutionPipeline) Execute(
	ctx context.Context,
	cmd models.ParsedCommand,
	env models.Envelope,
	ev *models.EvidenceRecord,
	verdict models.ConsensusVerdict,
) ExecutionResult {
	qty := verdict.SuggestedQuantity
	if q := cmd.Entities.Quantity; q != nil && *q > 0 {
		qty = *q
	}
	proposal := models.RiskProposal{
		Symbol:   cmd.Entities.Symbol,
		Action:   cmd.Intent,
		Quantity: qty,
		Price:    verdict.SuggestedPrice,
		Notional: float64(qty) * verdict.SuggestedPrice,
	}
	data := &PipelineData{Command: cmd, Evidence: ev, Verdict: &verdict, Proposal: &proposal}

	start := time.Now()
	decision, err := p.risk.Check(ctx, proposal)
	p.metrics.RecordLatency("risk_check", time.Since(start))
	if err != nil {
		p.metrics.RecordError("risk_check")
		p.log.Error("risk check failed", logger.String("symbol", proposal.Symbol), logger.Error(err))
		return ExecutionResult{
			Response: models.CommandResponse{Success: false, Message: "Risk check unavailable: " + err.Error(), Data: data},
			Outcome:  models.OutcomeFailed,
		}
	}
	data.Risk = &decision

	if !decision.Approved() {
		return ExecutionResult{
			Response: models.CommandResponse{
				Success: false,
				Message: fmt.Sprintf("Risk check rejected %s %s: %s", cmd.Intent, proposal.Symbol, strings.Join(decision.Breaches, ", ")),
				Data:    data,
			},
			Outcome: models.OutcomeRiskRejected,
			Risk:    &decision,
		}
	}

	if p.finalConfirmation && !env.Context.ExecuteConfirmed {
		p.release(ctx, proposal)
		return ExecutionResult{
			Response: models.CommandResponse{
				Success:  true,
				Message:  fmt.Sprintf("Risk check passed. Final confirmation required to %s %d %s at %.2f.", cmd.Intent, qty, proposal.Symbol, proposal.Price),
				Data:     data,
				FollowUp: "Resend the command with executeConfirmed=true to place the order.",
			},
			Outcome: models.OutcomeAwaitingFinal,
			Risk:    &decision,
		}
	}

	order := &models.OrderRecord{
		ID:        p.newID(),
		Timestamp: p.now().UTC(),
		Symbol:    proposal.Symbol,
		Action:    cmd.Intent,
		Quantity:  qty,
		Price:     proposal.Price,
		OrderType: models.OrderTypeMarket,
		Source:    p.source,
		SessionID: env.SessionID,
		UserID:    env.UserID,
	}
	if cmd.Entities.Price != nil {
		order.OrderType = models.OrderTypeLimit
	}

	if err := p.bus.PublishOrder(ctx, order); err != nil {
		p.metrics.RecordError("order_publish")
		p.log.Error("order publish failed", logger.String("order_id", order.ID), logger.Error(err))
		p.release(ctx, proposal)
		return ExecutionResult{
			Response: models.CommandResponse{Success: false, Message: "Order could not be published: " + err.Error(), Data: data},
			Outcome:  models.OutcomePublishFailed,
			Risk:     &decision,
		}
	}
	p.metrics.RecordOrder(string(order.Action))
	data.Order = order

	return ExecutionResult{
		Response: models.CommandResponse{
			Success: true,
			Message: fmt.Sprintf("Order %s published: %s %d %s at %.2f (%s).",
				order.ID, order.Action, order.Quantity, order.Symbol, order.Price, order.OrderType),
			Data: data,
		},
		Outcome: models.OutcomeExecuted,
		Risk:    &decision,
		Order:   order,
	}
}

func (p *ExecutionPipeline) release(ctx context.Context, proposal models.RiskProposal) {
	if err := p.risk.Release(ctx, proposal); err != nil {
		p.log.Warn("risk exposure release failed", logger.String("symbol", proposal.Symbol), logger.Error(err))
	}
}
