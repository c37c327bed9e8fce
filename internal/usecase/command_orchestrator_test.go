package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orchestratorFixture struct {
	market    *mockMarket
	sentiment *mockSentiment
	risk      *mockRisk
	checker   *mockRiskChecker
	bus       *mockBus
	history   *memHistory
	orch      *CommandOrchestrator
}

func newOrchestratorFixture(t *testing.T, gateOpts ...GateOption) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		market:    &mockMarket{},
		sentiment: &mockSentiment{},
		risk:      &mockRisk{},
		checker:   &mockRiskChecker{},
		bus:       &mockBus{},
		history:   newMemHistory(),
	}
	f.bus.On("PublishAudit", mock.Anything, mock.Anything).Return(nil)

	resolver := NewCommandResolver(nil, nil, nopMetrics{}, testLog)
	gate := NewConfirmationGate(gateOpts...)
	agg := NewEvidenceAggregator(f.market, f.sentiment, f.risk, time.Second, nopMetrics{}, testLog)
	pipeline := NewExecutionPipeline(f.checker, f.bus, nopMetrics{}, testLog)
	f.orch = NewCommandOrchestrator(resolver, gate, agg, NewConsensusSynthesizer(0.6), pipeline,
		f.history, f.bus, nopMetrics{}, testLog, Settings{MaxGrossExposure: 1e6, MaxSingleOrder: 1e5})
	return f
}

func (f *orchestratorFixture) bullish(symbol string, intent models.Intent) {
	f.market.On("Quote", mock.Anything, symbol).Return(models.MarketData{Price: 187.5, ChangePct: 2.5, Volume: 5e6}, nil)
	f.sentiment.On("Sentiment", mock.Anything, symbol).Return(models.Sentiment{Score: 0.8, Confidence: 0.9}, nil)
	f.risk.On("Assess", mock.Anything, symbol, intent).Return(models.RiskAssessment{Status: "LOW", Score: 3}, nil)
}

func confirmed(cmd string) models.Envelope {
	return models.Envelope{Command: cmd, SessionID: "s1", UserID: "u1", Context: models.RequestContext{Confirmed: true}}
}

func TestHandleBuyRequiresConfirmationFirst(t *testing.T) {
	f := newOrchestratorFixture(t)

	resp := f.orch.Handle(context.Background(), models.Envelope{Command: "Buy $5000 of AAPL", SessionID: "s1"})

	assert.True(t, resp.Success)
	assert.Equal(t, "Please confirm: BUY $5,000 of AAPL.", resp.Message)
	data := resp.Data.(*ConfirmationData)
	assert.Equal(t, StateAwaitingConfirmation, data.State)
	assert.Equal(t, "AAPL", data.Command.Entities.Symbol)
	f.market.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	f.checker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestHandleConfirmedBuyPublishes(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.bullish("AAPL", models.IntentBuy)
	f.checker.On("Check", mock.Anything, mock.Anything).Return(models.RiskDecision{Status: models.RiskApproved}, nil)
	f.bus.On("PublishOrder", mock.Anything, mock.Anything).Return(nil)

	resp := f.orch.Handle(context.Background(), confirmed("Buy $5000 of AAPL"))

	require.True(t, resp.Success, resp.Message)
	data := resp.Data.(*PipelineData)
	require.NotNil(t, data.Order)
	assert.Equal(t, 10, data.Order.Quantity)
	assert.Equal(t, models.OrderTypeMarket, data.Order.OrderType)

	audit := f.bus.Calls[len(f.bus.Calls)-1].Arguments.Get(1).(*models.AuditEvent)
	assert.Equal(t, models.OutcomeExecuted, audit.Outcome)
	assert.Equal(t, data.Order.ID, audit.OrderID)
	assert.Equal(t, ResolverFallback, audit.Resolver)
}

func TestHandleRiskRejection(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.bullish("AAPL", models.IntentBuy)
	f.checker.On("Check", mock.Anything, mock.Anything).
		Return(models.RiskDecision{Status: models.RiskRejected, Breaches: []string{"maxSingle"}}, nil)

	resp := f.orch.Handle(context.Background(), confirmed("buy AAPL"))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "maxSingle")
	f.bus.AssertNotCalled(t, "PublishOrder", mock.Anything, mock.Anything)
}

func TestHandleAbstain(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.market.On("Quote", mock.Anything, "NVDA").Return(models.MarketData{Price: 100, ChangePct: 3}, nil)
	f.sentiment.On("Sentiment", mock.Anything, "NVDA").Return(models.Sentiment{Score: 0.9, Confidence: 0.9}, nil)
	f.risk.On("Assess", mock.Anything, "NVDA", models.IntentSell).Return(models.RiskAssessment{Status: "HIGH", Score: 9}, nil)

	resp := f.orch.Handle(context.Background(), confirmed("sell NVDA"))

	assert.False(t, resp.Success)
	data := resp.Data.(*PipelineData)
	assert.False(t, data.Verdict.ShouldProceed)
	assert.NotNil(t, data.Evidence)
	f.checker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestHandleTradeWithoutSymbolAsksForClarification(t *testing.T) {
	f := newOrchestratorFixture(t)

	resp := f.orch.Handle(context.Background(), confirmed("buy $500"))

	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.FollowUp)
	f.market.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
}

func TestHandlePublishFailureIsReported(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.bullish("AAPL", models.IntentBuy)
	f.checker.On("Check", mock.Anything, mock.Anything).Return(models.RiskDecision{Status: models.RiskApproved}, nil)
	f.checker.On("Release", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("PublishOrder", mock.Anything, mock.Anything).Return(errors.New("no brokers"))

	resp := f.orch.Handle(context.Background(), confirmed("buy AAPL"))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no brokers")
	f.checker.AssertCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestHandleFinalConfirmationIssuesFreshToken(t *testing.T) {
	f := newOrchestratorFixture(t, WithTokenMode(newMemPending(), time.Minute))
	f.orch.pipeline = NewExecutionPipeline(f.checker, f.bus, nopMetrics{}, testLog, WithFinalConfirmation(true))
	f.bullish("AAPL", models.IntentBuy)
	f.checker.On("Check", mock.Anything, mock.Anything).Return(models.RiskDecision{Status: models.RiskApproved}, nil)
	f.checker.On("Release", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("PublishOrder", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	first := f.orch.Handle(ctx, models.Envelope{Command: "buy AAPL", SessionID: "s1"})
	token := first.Data.(*ConfirmationData).Token
	require.NotEmpty(t, token)

	env := models.Envelope{Command: "buy AAPL", SessionID: "s1",
		Context: models.RequestContext{Confirmed: true, ConfirmationToken: token}}
	final := f.orch.Handle(ctx, env)
	require.True(t, final.Success, final.Message)
	data := final.Data.(*PipelineData)
	require.NotEmpty(t, data.ConfirmationToken)
	assert.NotEqual(t, token, data.ConfirmationToken)
	require.NotNil(t, data.ExpiresAt)
	assert.Contains(t, final.FollowUp, "confirmationToken="+data.ConfirmationToken)
	assert.Contains(t, final.FollowUp, "executeConfirmed=true")
	f.bus.AssertNotCalled(t, "PublishOrder", mock.Anything, mock.Anything)

	env.Context.ConfirmationToken = data.ConfirmationToken
	env.Context.ExecuteConfirmed = true
	done := f.orch.Handle(ctx, env)
	require.True(t, done.Success, done.Message)
	require.NotNil(t, done.Data.(*PipelineData).Order)
	f.bus.AssertNumberOfCalls(t, "PublishOrder", 1)
}

func TestHandleQueryIsAdvisory(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.bullish("AMD", models.IntentQuery)

	resp := f.orch.Handle(context.Background(), models.Envelope{Command: "AMD outlook", SessionID: "s1"})

	require.True(t, resp.Success, resp.Message)
	data := resp.Data.(*AdvisoryData)
	assert.Equal(t, "AMD", data.Command.Entities.Symbol)
	assert.True(t, data.Advisory.ShouldProceed)
	assert.Contains(t, resp.Message, "AMD at 187.50")
	f.bus.AssertNotCalled(t, "PublishOrder", mock.Anything, mock.Anything)
}

func TestHandleStatusShowsHistoryNewestFirst(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.orch.Handle(ctx, models.Envelope{Command: "buy AAPL", SessionID: "s1"})
	f.orch.Handle(ctx, models.Envelope{Command: "sell TSLA", SessionID: "s1"})
	resp := f.orch.Handle(ctx, models.Envelope{Command: "status", SessionID: "s1"})

	require.True(t, resp.Success)
	data := resp.Data.(*StatusData)
	require.Len(t, data.History, 2)
	assert.Equal(t, "sell TSLA", data.History[0].Command)
	assert.Equal(t, "buy AAPL", data.History[1].Command)

	hist, err := f.orch.History(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}

func TestHandleStopCancelsPendingTokens(t *testing.T) {
	f := newOrchestratorFixture(t, WithTokenMode(newMemPending(), time.Minute))
	sem := &mockSemantic{}
	sem.On("Resolve", mock.Anything, "buy AAPL", mock.Anything).Return(buyCmd("AAPL"), nil)
	sem.On("Resolve", mock.Anything, "buy MSFT", mock.Anything).Return(buyCmd("MSFT"), nil)
	sem.On("Resolve", mock.Anything, "stop everything", mock.Anything).
		Return(models.ParsedCommand{Intent: models.IntentStop, Confidence: 0.9}, nil)
	sem.On("Resolve", mock.Anything, "status", mock.Anything).
		Return(models.ParsedCommand{Intent: models.IntentStatus, Confidence: 0.9}, nil)
	f.orch.resolver = NewCommandResolver(sem, nil, nopMetrics{}, testLog)
	ctx := context.Background()

	first := f.orch.Handle(ctx, models.Envelope{Command: "buy AAPL", SessionID: "s1"})
	assert.NotEmpty(t, first.Data.(*ConfirmationData).Token)
	assert.Contains(t, first.FollowUp, "confirmationToken=")
	f.orch.Handle(ctx, models.Envelope{Command: "buy MSFT", SessionID: "s1"})

	status := f.orch.Handle(ctx, models.Envelope{Command: "status", SessionID: "s1"})
	assert.Equal(t, 2, status.Data.(*StatusData).Pending)

	stop := f.orch.Handle(ctx, models.Envelope{Command: "stop everything", SessionID: "s1"})
	require.True(t, stop.Success)
	assert.Equal(t, map[string]int{"cancelled": 2}, stop.Data)

	status = f.orch.Handle(ctx, models.Envelope{Command: "status", SessionID: "s1"})
	assert.Zero(t, status.Data.(*StatusData).Pending)
}

func TestHandleAlertPublishes(t *testing.T) {
	f := newOrchestratorFixture(t)
	sem := &mockSemantic{}
	sem.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(models.ParsedCommand{
		Intent:     models.IntentAlert,
		Entities:   models.Entities{Symbol: "TSLA", Price: floatPtr(200)},
		Confidence: 0.9,
	}, nil)
	f.orch.resolver = NewCommandResolver(sem, nil, nopMetrics{}, testLog)
	f.bus.On("PublishAlert", mock.Anything, mock.MatchedBy(func(a *models.AlertRegistration) bool {
		return a.Symbol == "TSLA" && a.Price != nil && *a.Price == 200 && a.SessionID == "s1" && a.ID != ""
	})).Return(nil)

	resp := f.orch.Handle(context.Background(), models.Envelope{Command: "alert me when TSLA hits 200", SessionID: "s1"})

	assert.True(t, resp.Success)
	f.bus.AssertCalled(t, "PublishAlert", mock.Anything, mock.Anything)
}

func TestHandleConfigReportsSettings(t *testing.T) {
	f := newOrchestratorFixture(t)
	sem := &mockSemantic{}
	sem.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(models.ParsedCommand{Intent: models.IntentConfig, Confidence: 0.9}, nil)
	f.orch.resolver = NewCommandResolver(sem, nil, nopMetrics{}, testLog)

	resp := f.orch.Handle(context.Background(), models.Envelope{Command: "show settings"})

	require.True(t, resp.Success)
	s := resp.Data.(Settings)
	assert.Equal(t, 0.6, s.ConsensusThreshold)
	assert.Equal(t, ConfirmationModeFlag, s.ConfirmationMode)
	assert.Equal(t, 1e5, s.MaxSingleOrder)
}
