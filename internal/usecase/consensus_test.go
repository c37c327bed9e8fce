package usecase

import (
	"math/rand"
	"testing"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestSynthesizeAllPositiveBuy(t *testing.T) {
	ev := &models.EvidenceRecord{
		MarketData: &models.MarketData{Price: 187.5, ChangePct: 1},
		Sentiment:  &models.Sentiment{Score: 0.8},
		Technical:  &models.Technical{Trend: models.TrendBullish},
		Risk:       &models.RiskAssessment{Score: 3},
	}
	v := NewConsensusSynthesizer(0.6).Synthesize(ev, models.ParsedCommand{Intent: models.IntentBuy})

	assert.Equal(t, 1.0, v.Confidence)
	assert.True(t, v.ShouldProceed)
	assert.Equal(t, 10, v.SuggestedQuantity)
	assert.Equal(t, 187.5, v.SuggestedPrice)
	assert.Equal(t, 4, v.Total)
	assert.Equal(t,
		"market +1.00% supports BUY; sentiment 0.80 supports BUY; technical Bullish trend supports BUY; risk 3.0/10 acceptable",
		v.Reason)
}

func TestSynthesizeSellMirrorsBuy(t *testing.T) {
	ev := &models.EvidenceRecord{
		MarketData: &models.MarketData{Price: 50, ChangePct: -4},
		Sentiment:  &models.Sentiment{Score: 0.2},
		Technical:  &models.Technical{Trend: models.TrendBearish},
		Risk:       &models.RiskAssessment{Score: 9},
	}
	v := NewConsensusSynthesizer(0.6).Synthesize(ev, models.ParsedCommand{Intent: models.IntentSell})

	assert.Equal(t, 3, v.Positive)
	assert.Equal(t, 0.75, v.Confidence)
	assert.True(t, v.ShouldProceed)
	assert.Equal(t, 7, v.SuggestedQuantity)
}

func TestSynthesizeThresholdBoundaryProceeds(t *testing.T) {
	ev := &models.EvidenceRecord{
		MarketData: &models.MarketData{Price: 10, ChangePct: 1},
		Sentiment:  &models.Sentiment{Score: 0.5},
		Technical:  &models.Technical{Trend: models.TrendSideways},
		Risk:       &models.RiskAssessment{Score: 6},
	}
	cmd := models.ParsedCommand{Intent: models.IntentBuy}

	v := NewConsensusSynthesizer(0.5).Synthesize(ev, cmd)
	assert.Equal(t, 0.5, v.Confidence)
	assert.True(t, v.ShouldProceed)
	assert.Equal(t, 5, v.SuggestedQuantity)

	v = NewConsensusSynthesizer(0.6).Synthesize(ev, cmd)
	assert.False(t, v.ShouldProceed)
	assert.Zero(t, v.SuggestedQuantity)
	assert.Contains(t, v.Decision, "ABSTAIN")
}

func TestSynthesizeSkipsAbsentDimensions(t *testing.T) {
	ev := &models.EvidenceRecord{Sentiment: &models.Sentiment{Score: 0.9}}
	v := NewConsensusSynthesizer(0.6).Synthesize(ev, models.ParsedCommand{Intent: models.IntentBuy})

	assert.Equal(t, 1, v.Total)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Equal(t, 10, v.SuggestedQuantity)
	assert.Zero(t, v.SuggestedPrice)

	empty := NewConsensusSynthesizer(0.6).Synthesize(&models.EvidenceRecord{}, models.ParsedCommand{Intent: models.IntentBuy})
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Confidence)
	assert.False(t, empty.ShouldProceed)

	assert.NotPanics(t, func() {
		NewConsensusSynthesizer(0.6).Synthesize(nil, models.ParsedCommand{Intent: models.IntentBuy})
	})
}

func TestSynthesizeUserPriceWins(t *testing.T) {
	ev := &models.EvidenceRecord{MarketData: &models.MarketData{Price: 100, ChangePct: 1}}
	cmd := models.ParsedCommand{Intent: models.IntentBuy, Entities: models.Entities{Price: floatPtr(95.5)}}

	v := NewConsensusSynthesizer(0.6).Synthesize(ev, cmd)
	assert.Equal(t, 95.5, v.SuggestedPrice)
}

func TestSynthesizeNonTradeIntentIsNegative(t *testing.T) {
	ev := &models.EvidenceRecord{
		MarketData: &models.MarketData{ChangePct: 5},
		Sentiment:  &models.Sentiment{Score: 0.9},
		Technical:  &models.Technical{Trend: models.TrendBullish},
		Risk:       &models.RiskAssessment{Score: 1},
	}
	v := NewConsensusSynthesizer(0.6).Synthesize(ev, models.ParsedCommand{Intent: models.IntentQuery})
	assert.Zero(t, v.Positive)
	assert.False(t, v.ShouldProceed)
}

func TestSynthesizeConsensusInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewConsensusSynthesizer(0.6)
	trends := []models.Trend{models.TrendBullish, models.TrendBearish, models.TrendSideways}
	for i := 0; i < 500; i++ {
		ev := &models.EvidenceRecord{}
		if rng.Intn(2) == 0 {
			ev.MarketData = &models.MarketData{Price: rng.Float64() * 500, ChangePct: rng.Float64()*20 - 10}
		}
		if rng.Intn(2) == 0 {
			ev.Sentiment = &models.Sentiment{Score: rng.Float64()}
		}
		if rng.Intn(2) == 0 {
			ev.Technical = &models.Technical{Trend: trends[rng.Intn(3)]}
		}
		if rng.Intn(2) == 0 {
			ev.Risk = &models.RiskAssessment{Score: rng.Float64() * 10}
		}
		intent := models.IntentBuy
		if rng.Intn(2) == 0 {
			intent = models.IntentSell
		}

		v := s.Synthesize(ev, models.ParsedCommand{Intent: intent})
		assert.GreaterOrEqual(t, v.Confidence, 0.0)
		assert.LessOrEqual(t, v.Confidence, 1.0)
		assert.Equal(t, v.Total > 0 && v.Confidence >= 0.6, v.ShouldProceed)
		if v.ShouldProceed {
			assert.GreaterOrEqual(t, v.SuggestedQuantity, 1)
			assert.LessOrEqual(t, v.SuggestedQuantity, 10)
		}
	}
}

func TestNewConsensusSynthesizerRejectsBadThreshold(t *testing.T) {
	assert.Equal(t, DefaultConsensusThreshold, NewConsensusSynthesizer(0).Threshold())
	assert.Equal(t, DefaultConsensusThreshold, NewConsensusSynthesizer(1.5).Threshold())
	assert.Equal(t, 0.8, NewConsensusSynthesizer(0.8).Threshold())
}
