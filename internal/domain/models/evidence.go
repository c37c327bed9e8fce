package models

import "time"

type Trend string

const (
	TrendBullish  Trend = "Bullish"
	TrendBearish  Trend = "Bearish"
	TrendSideways Trend = "Sideways"
)

// SourceTag marks whether an evidence value came from its source or from the
// documented fallback.
type SourceTag string

const (
	SourceReal    SourceTag = "real"
	SourceDefault SourceTag = "default"
)

// Remote evidence source names.
const (
	SourceMarket    = "market"
	SourceSentiment = "sentiment"
	SourceRisk      = "risk"
)

type MarketData struct {
	Price     float64 `json:"price"`
	ChangePct float64 `json:"changePct"`
	Volume    float64 `json:"volume"`
}

// DefaultSentimentConfidence applies when a sentiment reply omits confidence.
const DefaultSentimentConfidence = 0.7

type Sentiment struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

type Technical struct {
	Trend      Trend   `json:"trend"`
	RSI        float64 `json:"rsi"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

type RiskAssessment struct {
	Status  string   `json:"status"`
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

type Strategy struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// EvidenceRecord bundles the signals gathered for one symbol. A nil
// sub-record means the dimension is unavailable; a present one is complete.
type EvidenceRecord struct {
	Symbol     string               `json:"symbol"`
	MarketData *MarketData          `json:"marketData,omitempty"`
	Sentiment  *Sentiment           `json:"sentiment,omitempty"`
	Technical  *Technical           `json:"technical,omitempty"`
	Risk       *RiskAssessment      `json:"risk,omitempty"`
	Strategy   *Strategy            `json:"strategy,omitempty"`
	Provenance map[string]SourceTag `json:"provenance,omitempty"`
	Errors     map[string]string    `json:"errors,omitempty"`
	GatheredAt time.Time            `json:"gatheredAt"`
}

// Defaulted lists the sources that fell back to defaults.
func (r *EvidenceRecord) Defaulted() []string {
	var out []string
	for _, name := range []string{SourceMarket, SourceSentiment, SourceRisk} {
		if r.Provenance[name] == SourceDefault {
			out = append(out, name)
		}
	}
	return out
}

// ConsensusVerdict is derived per request and never persisted.
type ConsensusVerdict struct {
	ShouldProceed     bool    `json:"shouldProceed"`
	Decision          string  `json:"decision"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason"`
	SuggestedQuantity int     `json:"suggestedQuantity"`
	SuggestedPrice    float64 `json:"suggestedPrice"`
	Positive          int     `json:"positiveSignals"`
	Total             int     `json:"totalSignals"`
	Threshold         float64 `json:"threshold"`
}
