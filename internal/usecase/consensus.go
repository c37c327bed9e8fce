package usecase

import (
	"fmt"
	"strings"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
)

const (
	DefaultConsensusThreshold = 0.6
	maxAcceptableRisk         = 6.0
	quantityScale             = 10
)

// ConsensusSynthesizer scores evidence dimensions against the requested
// action. Dimensions run in a fixed order: market, sentiment, technical, risk.
type ConsensusSynthesizer struct {
	threshold float64
}

func NewConsensusSynthesizer(threshold float64) *ConsensusSynthesizer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConsensusThreshold
	}
	return &ConsensusSynthesizer{threshold: threshold}
}

func (s *ConsensusSynthesizer) Threshold() float64 { return s.threshold }

type signal struct {
	positive bool
	reason   string
}

// Synthesize never panics on missing dimensions; they are skipped.
func (s *ConsensusSynthesizer) Synthesize(ev *models.EvidenceRecord, cmd models.ParsedCommand) models.ConsensusVerdict {
	intent := cmd.Intent
	var signals []signal
	if ev != nil {
		if md := ev.MarketData; md != nil {
			signals = append(signals, marketSignal(intent, md))
		}
		if st := ev.Sentiment; st != nil {
			signals = append(signals, sentimentSignal(intent, st))
		}
		if t := ev.Technical; t != nil {
			signals = append(signals, technicalSignal(intent, t))
		}
		if r := ev.Risk; r != nil {
			signals = append(signals, riskSignal(intent, r))
		}
	}

	v := models.ConsensusVerdict{Total: len(signals), Threshold: s.threshold}
	reasons := make([]string, 0, len(signals))
	for _, sg := range signals {
		if sg.positive {
			v.Positive++
		}
		reasons = append(reasons, sg.reason)
	}
	if v.Total > 0 {
		v.Confidence = float64(v.Positive) / float64(v.Total)
	}
	v.ShouldProceed = v.Total > 0 && v.Confidence >= s.threshold
	v.Reason = strings.Join(reasons, "; ")

	if v.ShouldProceed {
		v.SuggestedQuantity = max(1, quantityScale*v.Positive/v.Total)
		v.Decision = fmt.Sprintf("PROCEED: %s (%d/%d signals agree)", intent, v.Positive, v.Total)
	} else {
		v.Decision = fmt.Sprintf("ABSTAIN: %s (%d/%d signals agree)", intent, v.Positive, v.Total)
	}

	switch {
	case cmd.Entities.Price != nil:
		v.SuggestedPrice = *cmd.Entities.Price
	case ev != nil && ev.MarketData != nil:
		v.SuggestedPrice = ev.MarketData.Price
	}
	return v
}

func marketSignal(intent models.Intent, md *models.MarketData) signal {
	var ok bool
	switch intent {
	case models.IntentBuy:
		ok = md.ChangePct > 0
	case models.IntentSell:
		ok = md.ChangePct < 0
	}
	return signal{ok, fmt.Sprintf("market %+.2f%% %s", md.ChangePct, verb(ok, intent))}
}

func sentimentSignal(intent models.Intent, st *models.Sentiment) signal {
	var ok bool
	switch intent {
	case models.IntentBuy:
		ok = st.Score > 0.6
	case models.IntentSell:
		ok = st.Score < 0.4
	}
	return signal{ok, fmt.Sprintf("sentiment %.2f %s", st.Score, verb(ok, intent))}
}

func technicalSignal(intent models.Intent, t *models.Technical) signal {
	var ok bool
	switch intent {
	case models.IntentBuy:
		ok = t.Trend == models.TrendBullish
	case models.IntentSell:
		ok = t.Trend == models.TrendBearish
	}
	return signal{ok, fmt.Sprintf("technical %s trend %s", t.Trend, verb(ok, intent))}
}

func riskSignal(intent models.Intent, r *models.RiskAssessment) signal {
	ok := intent.IsTrade() && r.Score <= maxAcceptableRisk
	if ok {
		return signal{true, fmt.Sprintf("risk %.1f/10 acceptable", r.Score)}
	}
	return signal{false, fmt.Sprintf("risk %.1f/10 not acceptable for %s", r.Score, intent)}
}

func verb(ok bool, intent models.Intent) string {
	if ok {
		return "supports " + string(intent)
	}
	return "against " + string(intent)
}
