package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/google/uuid"
)

const defaultSessionID = "default"

// Settings is the effective decision configuration reported by CONFIG.
type Settings struct {
	ConsensusThreshold float64 `json:"consensusThreshold"`
	MaxGrossExposure   float64 `json:"maxGrossExposure"`
	MaxSingleOrder     float64 `json:"maxSingleOrder"`
	ConfirmationMode   string  `json:"confirmationMode"`
	FinalConfirmation  bool    `json:"finalConfirmation"`
	RiskMode           string  `json:"riskMode"`
	MarketSource       string  `json:"marketSource"`
	HistoryCapacity    int     `json:"historyCapacity"`
}

// AdvisoryData answers QUERY and ANALYZE without executing anything.
type AdvisoryData struct {
	Command  models.ParsedCommand    `json:"command"`
	Evidence *models.EvidenceRecord  `json:"evidence"`
	Advisory models.ConsensusVerdict `json:"advisory"`
}

type StatusData struct {
	History []models.HistoryEntry `json:"history"`
	Pending int                   `json:"pending"`
}

// run collects what a single Handle call produced for the audit trail.
type run struct {
	outcome  string
	verdict  *models.ConsensusVerdict
	evidence *models.EvidenceRecord
	risk     *models.RiskDecision
	order    *models.OrderRecord
}

// CommandOrchestrator routes a resolved command by intent and records every
// run in session history and the audit stream.
type CommandOrchestrator struct {
	resolver  *CommandResolver
	gate      *ConfirmationGate
	evidence  *EvidenceAggregator
	consensus *ConsensusSynthesizer
	pipeline  *ExecutionPipeline
	history   domrepo.SessionHistory
	bus       domrepo.EventBus
	metrics   domrepo.Metrics
	log       *logger.Logger
	settings  Settings
	now       func() time.Time
}

func NewCommandOrchestrator(
	resolver *CommandResolver,
	gate *ConfirmationGate,
	evidence *EvidenceAggregator,
	consensus *ConsensusSynthesizer,
	pipeline *ExecutionPipeline,
	history domrepo.SessionHistory,
	bus domrepo.EventBus,
	metrics domrepo.Metrics,
	l *logger.Logger,
	settings Settings,
) *CommandOrchestrator {
	settings.ConsensusThreshold = consensus.Threshold()
	settings.ConfirmationMode = gate.Mode()
	if settings.HistoryCapacity <= 0 {
		settings.HistoryCapacity = 10
	}
	return &CommandOrchestrator{
		resolver:  resolver,
		gate:      gate,
		evidence:  evidence,
		consensus: consensus,
		pipeline:  pipeline,
		history:   history,
		bus:       bus,
		metrics:   metrics,
		log:       l,
		settings:  settings,
		now:       time.Now,
	}
}

// Handle runs one envelope through the pipeline. It never returns an error;
// failures are reported in the response.
func (o *CommandOrchestrator) Handle(ctx context.Context, env models.Envelope) models.CommandResponse {
	start := time.Now()
	if env.SessionID == "" {
		env.SessionID = defaultSessionID
	}

	cmd, path := o.resolver.Resolve(ctx, env.Command, env.Context)
	r := &run{}
	resp := o.route(ctx, cmd, env, r)
	o.record(ctx, env, cmd, path, resp, r, time.Since(start))
	return resp
}

// History returns the most recent entries for a session.
func (o *CommandOrchestrator) History(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	return o.history.Recent(ctx, sessionID, limit)
}

func (o *CommandOrchestrator) route(ctx context.Context, cmd models.ParsedCommand, env models.Envelope, r *run) models.CommandResponse {
	if cmd.Intent.IsTrade() && cmd.Entities.Symbol == "" {
		return o.clarify(r, cmd, fmt.Sprintf("I need a symbol to %s.", cmd.Intent), "Which symbol do you want to trade?")
	}

	gd, err := o.gate.Evaluate(ctx, cmd, env)
	if err != nil {
		o.metrics.RecordError("confirmation_gate")
		o.log.Error("confirmation gate failed", logger.String("session", env.SessionID), logger.Error(err))
		r.outcome = models.OutcomeFailed
		return models.CommandResponse{Success: false, Message: "Could not process the confirmation, please try again."}
	}
	if gd.State == StateAwaitingConfirmation {
		return o.awaiting(r, cmd, gd)
	}

	switch cmd.Intent {
	case models.IntentBuy, models.IntentSell:
		return o.trade(ctx, cmd, env, r)
	case models.IntentQuery, models.IntentAnalyze:
		return o.advise(ctx, cmd, r)
	case models.IntentAlert:
		return o.alert(ctx, cmd, env, r)
	case models.IntentConfig:
		r.outcome = models.OutcomeInfo
		return models.CommandResponse{Success: true, Message: "Current decision settings.", Data: o.settings}
	case models.IntentStop:
		return o.stop(ctx, env, r)
	case models.IntentStatus:
		return o.status(ctx, env, r)
	default:
		r.outcome = models.OutcomeFailed
		return models.CommandResponse{Success: false, Message: fmt.Sprintf("Unsupported intent %q.", cmd.Intent)}
	}
}

func (o *CommandOrchestrator) trade(ctx context.Context, cmd models.ParsedCommand, env models.Envelope, r *run) models.CommandResponse {
	ev := o.evidence.Gather(ctx, cmd.Entities.Symbol, cmd.Intent)
	verdict := o.consensus.Synthesize(ev, cmd)
	r.evidence, r.verdict = ev, &verdict
	o.metrics.RecordVerdict(ev.Strategy.Recommendation)

	if !verdict.ShouldProceed {
		r.outcome = models.OutcomeAbstained
		return models.CommandResponse{
			Success: false,
			Message: fmt.Sprintf("Not proceeding with %s %s: consensus %.2f below %.2f (%s).",
				cmd.Intent, cmd.Entities.Symbol, verdict.Confidence, verdict.Threshold, verdict.Reason),
			Data: &PipelineData{Command: cmd, Evidence: ev, Verdict: &verdict},
		}
	}

	res := o.pipeline.Execute(ctx, cmd, env, ev, verdict)
	r.outcome, r.risk, r.order = res.Outcome, res.Risk, res.Order
	if res.Outcome == models.OutcomeAwaitingFinal && o.gate.Mode() == ConfirmationModeToken {
		return o.finalToken(ctx, cmd, env, res.Response, r)
	}
	return res.Response
}

// finalToken attaches a new token to a final-confirmation request, since the
// token that passed the gate was consumed.
func (o *CommandOrchestrator) finalToken(ctx context.Context, cmd models.ParsedCommand, env models.Envelope, resp models.CommandResponse, r *run) models.CommandResponse {
	gd, err := o.gate.Issue(ctx, cmd, env)
	if err != nil {
		o.metrics.RecordError("confirmation_gate")
		o.log.Error("issue final confirmation token failed", logger.String("session", env.SessionID), logger.Error(err))
		r.outcome = models.OutcomeFailed
		return models.CommandResponse{Success: false, Message: "Could not process the confirmation, please try again.", Data: resp.Data}
	}
	exp := gd.ExpiresAt
	if data, ok := resp.Data.(*PipelineData); ok {
		data.ConfirmationToken, data.ExpiresAt = gd.Token, &exp
	}
	resp.FollowUp = fmt.Sprintf("Resend the command with confirmed=true, executeConfirmed=true and confirmationToken=%s before %s to place the order.",
		gd.Token, exp.UTC().Format(time.RFC3339))
	return resp
}

// advise scores the evidence from a buyer's point of view.
func (o *CommandOrchestrator) advise(ctx context.Context, cmd models.ParsedCommand, r *run) models.CommandResponse {
	sym := cmd.Entities.Symbol
	if sym == "" {
		return o.clarify(r, cmd, "I need a symbol to look up.", "Which symbol are you asking about?")
	}
	ev := o.evidence.Gather(ctx, sym, cmd.Intent)
	view := cmd
	view.Intent = models.IntentBuy
	advisory := o.consensus.Synthesize(ev, view)
	r.outcome, r.evidence, r.verdict = models.OutcomeAdvisory, ev, &advisory

	md, st, rk := ev.MarketData, ev.Sentiment, ev.Risk
	return models.CommandResponse{
		Success: true,
		Message: fmt.Sprintf("%s at %.2f (%+.2f%%), sentiment %.2f, %s trend, risk %s %.1f. Advisory: %s.",
			sym, md.Price, md.ChangePct, st.Score, ev.Technical.Trend, rk.Status, rk.Score, advisory.Decision),
		Data: &AdvisoryData{Command: cmd, Evidence: ev, Advisory: advisory},
	}
}

func (o *CommandOrchestrator) alert(ctx context.Context, cmd models.ParsedCommand, env models.Envelope, r *run) models.CommandResponse {
	e := cmd.Entities
	if e.Symbol == "" {
		return o.clarify(r, cmd, "I need a symbol for the alert.", "Which symbol should I watch?")
	}
	if e.Condition == "" && e.Price == nil {
		return o.clarify(r, cmd, "I need a condition or price for the alert.", "What price or condition should trigger it?")
	}

	a := &models.AlertRegistration{
		ID:        uuid.NewString(),
		Symbol:    e.Symbol,
		Condition: e.Condition,
		Price:     e.Price,
		SessionID: env.SessionID,
		UserID:    env.UserID,
		CreatedAt: o.now().UTC(),
	}
	if err := o.bus.PublishAlert(ctx, a); err != nil {
		o.metrics.RecordError("alert_publish")
		o.log.Error("alert publish failed", logger.String("symbol", a.Symbol), logger.Error(err))
		r.outcome = models.OutcomePublishFailed
		return models.CommandResponse{Success: false, Message: "Alert could not be registered: " + err.Error()}
	}
	r.outcome = models.OutcomeAlert
	return models.CommandResponse{Success: true, Message: fmt.Sprintf("Alert %s registered for %s.", a.ID, a.Symbol), Data: a}
}

func (o *CommandOrchestrator) stop(ctx context.Context, env models.Envelope, r *run) models.CommandResponse {
	n, err := o.gate.Cancel(ctx, env.SessionID)
	if err != nil {
		o.log.Error("cancel pending actions failed", logger.String("session", env.SessionID), logger.Error(err))
		r.outcome = models.OutcomeFailed
		return models.CommandResponse{Success: false, Message: "Could not cancel pending actions."}
	}
	r.outcome = models.OutcomeInfo
	return models.CommandResponse{
		Success: true,
		Message: fmt.Sprintf("Cancelled %d pending action(s).", n),
		Data:    map[string]int{"cancelled": n},
	}
}

func (o *CommandOrchestrator) status(ctx context.Context, env models.Envelope, r *run) models.CommandResponse {
	hist, err := o.history.Recent(ctx, env.SessionID, o.settings.HistoryCapacity)
	if err != nil {
		o.log.Warn("read session history failed", logger.String("session", env.SessionID), logger.Error(err))
	}
	pending, err := o.gate.PendingCount(ctx, env.SessionID)
	if err != nil {
		o.log.Warn("count pending actions failed", logger.String("session", env.SessionID), logger.Error(err))
	}
	if hist == nil {
		hist = []models.HistoryEntry{}
	}
	r.outcome = models.OutcomeInfo
	return models.CommandResponse{
		Success: true,
		Message: fmt.Sprintf("%d recent command(s), %d pending confirmation(s).", len(hist), pending),
		Data:    &StatusData{History: hist, Pending: pending},
	}
}

func (o *CommandOrchestrator) clarify(r *run, cmd models.ParsedCommand, msg, question string) models.CommandResponse {
	r.outcome = models.OutcomeClarify
	return models.CommandResponse{Success: false, Message: msg, Data: cmd, FollowUp: question}
}

func (o *CommandOrchestrator) awaiting(r *run, cmd models.ParsedCommand, gd GateDecision) models.CommandResponse {
	r.outcome = models.OutcomeAwaiting
	data := &ConfirmationData{State: gd.State, Command: cmd}
	followUp := "Resend the command with confirmed=true to proceed."
	if gd.Token != "" {
		exp := gd.ExpiresAt
		data.Token, data.ExpiresAt = gd.Token, &exp
		followUp = fmt.Sprintf("Resend the command with confirmed=true and confirmationToken=%s before %s.",
			gd.Token, exp.UTC().Format(time.RFC3339))
	}
	return models.CommandResponse{Success: true, Message: gd.Prompt, Data: data, FollowUp: followUp}
}

func (o *CommandOrchestrator) record(
	ctx context.Context,
	env models.Envelope,
	cmd models.ParsedCommand,
	path string,
	resp models.CommandResponse,
	r *run,
	took time.Duration,
) {
	now := o.now().UTC()
	o.metrics.RecordCommand(string(cmd.Intent), r.outcome)
	o.metrics.RecordLatency("command", took)

	entry := models.HistoryEntry{
		Command:   env.Command,
		Intent:    cmd.Intent,
		Success:   resp.Success,
		Message:   resp.Message,
		Timestamp: now,
	}
	if err := o.history.Append(ctx, env.SessionID, entry); err != nil {
		o.log.Warn("append session history failed", logger.String("session", env.SessionID), logger.Error(err))
	}

	ev := &models.AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: now,
		SessionID: env.SessionID,
		UserID:    env.UserID,
		Command:   env.Command,
		Intent:    cmd.Intent,
		Symbol:    cmd.Entities.Symbol,
		Resolver:  path,
		Outcome:   r.outcome,
		Success:   resp.Success,
		Message:   resp.Message,
		LatencyMs: took.Milliseconds(),
	}
	if r.verdict != nil {
		ev.Consensus, ev.ShouldProceed = r.verdict.Confidence, r.verdict.ShouldProceed
	}
	if r.evidence != nil {
		ev.Defaulted = r.evidence.Defaulted()
	}
	if r.risk != nil {
		ev.Breaches = r.risk.Breaches
	}
	if r.order != nil {
		ev.OrderID = r.order.ID
	}
	if err := o.bus.PublishAudit(ctx, ev); err != nil {
		o.metrics.RecordError("audit_publish")
		o.log.Warn("audit publish failed", logger.String("session", env.SessionID), logger.Error(err))
	}
}
