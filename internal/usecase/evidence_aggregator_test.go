package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSources() (*mockMarket, *mockSentiment, *mockRisk) {
	return &mockMarket{}, &mockSentiment{}, &mockRisk{}
}

func TestGatherAllSourcesFailYieldsDefaults(t *testing.T) {
	m, s, r := newSources()
	boom := &models.ServiceError{Service: "x", Operation: "y", Status: 503, Body: "down"}
	m.On("Quote", mock.Anything, "AAPL").Return(models.MarketData{}, boom)
	s.On("Sentiment", mock.Anything, "AAPL").Return(models.Sentiment{}, boom)
	r.On("Assess", mock.Anything, "AAPL", models.IntentBuy).Return(models.RiskAssessment{}, boom)

	agg := NewEvidenceAggregator(m, s, r, time.Second, nopMetrics{}, testLog)
	rec := agg.Gather(context.Background(), "AAPL", models.IntentBuy)

	require.NotNil(t, rec.MarketData)
	require.NotNil(t, rec.Sentiment)
	require.NotNil(t, rec.Risk)
	require.NotNil(t, rec.Technical)
	require.NotNil(t, rec.Strategy)

	assert.Equal(t, 100.0, rec.MarketData.Price)
	assert.Equal(t, 0.0, rec.MarketData.ChangePct)
	assert.Equal(t, 1_000_000.0, rec.MarketData.Volume)
	assert.Equal(t, 0.5, rec.Sentiment.Score)
	assert.Equal(t, 0.7, rec.Sentiment.Confidence)
	assert.Equal(t, "MEDIUM", rec.Risk.Status)
	assert.Equal(t, 5.0, rec.Risk.Score)
	assert.Equal(t, models.TrendSideways, rec.Technical.Trend)
	assert.Equal(t, "HOLD", rec.Strategy.Recommendation)
	assert.InDelta(t, 0.76, rec.Strategy.Confidence, 1e-9)

	assert.ElementsMatch(t, []string{"market", "sentiment", "risk"}, rec.Defaulted())
	assert.Len(t, rec.Errors, 3)

	// defaults are copied, not shared
	rec.MarketData.Price = 1
	again := agg.Gather(context.Background(), "AAPL", models.IntentBuy)
	assert.Equal(t, 100.0, again.MarketData.Price)
}

func TestGatherRealValuesAreTagged(t *testing.T) {
	m, s, r := newSources()
	m.On("Quote", mock.Anything, "NVDA").Return(models.MarketData{Price: 120, ChangePct: 3.5, Volume: 9e6}, nil)
	s.On("Sentiment", mock.Anything, "NVDA").Return(models.Sentiment{Score: 1.4, Confidence: 0.9, Sources: []string{"news"}}, nil)
	r.On("Assess", mock.Anything, "NVDA", models.IntentBuy).Return(models.RiskAssessment{Status: "LOW", Score: 2}, nil)

	rec := NewEvidenceAggregator(m, s, r, time.Second, nopMetrics{}, testLog).
		Gather(context.Background(), "NVDA", models.IntentBuy)

	assert.Empty(t, rec.Defaulted())
	assert.Equal(t, models.SourceReal, rec.Provenance["market"])
	assert.Equal(t, 1.0, rec.Sentiment.Score, "clamped")
	assert.Equal(t, []string{}, rec.Risk.Factors)
	assert.Equal(t, models.TrendBullish, rec.Technical.Trend)
	assert.Equal(t, "BUY", rec.Strategy.Recommendation)
	assert.InDelta(t, 0.9, rec.Strategy.Confidence, 1e-9)
	assert.Nil(t, rec.Errors)
}

func TestGatherOneSlowSourceDoesNotBlockOthers(t *testing.T) {
	m, s, r := newSources()
	m.On("Quote", mock.Anything, "AMD").Return(models.MarketData{Price: 150, ChangePct: -3}, nil)
	s.On("Sentiment", mock.Anything, "AMD").Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(models.Sentiment{}, context.DeadlineExceeded)
	r.On("Assess", mock.Anything, "AMD", models.IntentSell).Return(models.RiskAssessment{Status: "HIGH", Score: 8}, nil)

	start := time.Now()
	rec := NewEvidenceAggregator(m, s, r, 50*time.Millisecond, nopMetrics{}, testLog).
		Gather(context.Background(), "AMD", models.IntentSell)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"sentiment"}, rec.Defaulted())
	assert.Equal(t, 150.0, rec.MarketData.Price)
	assert.Equal(t, models.TrendBearish, rec.Technical.Trend)
	// default sentiment 0.5 is not bearish enough
	assert.Equal(t, "HOLD", rec.Strategy.Recommendation)
}

func TestGatherEmptyResultsFallBack(t *testing.T) {
	m, s, r := newSources()
	m.On("Quote", mock.Anything, "ZZZ").Return(models.MarketData{}, nil)
	s.On("Sentiment", mock.Anything, "ZZZ").Return(models.Sentiment{Score: 0.2, Confidence: 0.5}, nil)
	r.On("Assess", mock.Anything, "ZZZ", models.IntentSell).Return(models.RiskAssessment{}, nil)

	rec := NewEvidenceAggregator(m, s, r, time.Second, nopMetrics{}, testLog).
		Gather(context.Background(), "ZZZ", models.IntentSell)

	assert.ElementsMatch(t, []string{"market", "risk"}, rec.Defaulted())
	assert.Equal(t, models.ErrEmptyResult.Error(), rec.Errors["market"])
	assert.Equal(t, "SELL", rec.Strategy.Recommendation)
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, models.TrendBullish, TrendOf(2.01))
	assert.Equal(t, models.TrendSideways, TrendOf(2))
	assert.Equal(t, models.TrendSideways, TrendOf(-2))
	assert.Equal(t, models.TrendBearish, TrendOf(-2.01))
}

func TestDeriveStrategy(t *testing.T) {
	cases := []struct {
		intent models.Intent
		score  float64
		trend  models.Trend
		want   string
	}{
		{models.IntentBuy, 0.7, models.TrendSideways, "BUY"},
		{models.IntentBuy, 0.7, models.TrendBearish, "HOLD"},
		{models.IntentBuy, 0.6, models.TrendBullish, "HOLD"},
		{models.IntentSell, 0.3, models.TrendBearish, "SELL"},
		{models.IntentSell, 0.3, models.TrendBullish, "HOLD"},
		{models.IntentSell, 0.4, models.TrendSideways, "HOLD"},
		{models.IntentQuery, 0.9, models.TrendBullish, "HOLD"},
	}
	for _, tc := range cases {
		got := deriveStrategy(tc.intent, models.Sentiment{Score: tc.score, Confidence: 0.5}, tc.trend)
		assert.Equal(t, tc.want, got.Recommendation, "%s %.1f %s", tc.intent, tc.score, tc.trend)
		assert.InDelta(t, 0.6, got.Confidence, 1e-9)
	}
}
