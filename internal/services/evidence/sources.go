package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/internal/domain/service"

	"github.com/tidwall/gjson"
)

// Service names and operations on the gateway.
const (
	ServiceMarketData = "market-data"
	ServiceSentiment  = "sentiment"
	ServiceRisk       = "risk"

	OpQuote   = "quote"
	OpAnalyze = "analyze"
	OpAssess  = "assess"
)

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

type assessRequest struct {
	Symbol string `json:"symbol"`
	Intent string `json:"intent"`
}

// MarketHTTP reads quotes from the market-data service.
type MarketHTTP struct {
	caller service.ServiceCaller
}

func NewMarketHTTP(caller service.ServiceCaller) *MarketHTTP {
	return &MarketHTTP{caller: caller}
}

func (m *MarketHTTP) Quote(ctx context.Context, symbol string) (models.MarketData, error) {
	raw, err := m.caller.Call(ctx, ServiceMarketData, OpQuote, symbolRequest{Symbol: symbol})
	if err != nil {
		return models.MarketData{}, err
	}
	res, err := parse(raw)
	if err != nil {
		return models.MarketData{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	return models.MarketData{
		Price:     first(res, "price", "last", "c").Float(),
		ChangePct: first(res, "changePct", "change_pct", "changePercent", "dp").Float(),
		Volume:    first(res, "volume", "v").Float(),
	}, nil
}

// SentimentHTTP reads sentiment scores from the sentiment service.
type SentimentHTTP struct {
	caller service.ServiceCaller
}

func NewSentimentHTTP(caller service.ServiceCaller) *SentimentHTTP {
	return &SentimentHTTP{caller: caller}
}

func (s *SentimentHTTP) Sentiment(ctx context.Context, symbol string) (models.Sentiment, error) {
	raw, err := s.caller.Call(ctx, ServiceSentiment, OpAnalyze, symbolRequest{Symbol: symbol})
	if err != nil {
		return models.Sentiment{}, err
	}
	res, err := parse(raw)
	if err != nil {
		return models.Sentiment{}, fmt.Errorf("sentiment %s: %w", symbol, err)
	}
	score := first(res, "score", "sentiment")
	if !score.Exists() {
		return models.Sentiment{}, fmt.Errorf("sentiment %s: %w", symbol, models.ErrEmptyResult)
	}
	out := models.Sentiment{Score: score.Float(), Confidence: models.DefaultSentimentConfidence}
	if c := res.Get("confidence"); c.Exists() && c.Type == gjson.Number {
		out.Confidence = c.Float()
	}
	res.Get("sources").ForEach(func(_, v gjson.Result) bool {
		out.Sources = append(out.Sources, v.String())
		return true
	})
	return out, nil
}

// RiskHTTP reads risk assessments from the risk service.
type RiskHTTP struct {
	caller service.ServiceCaller
}

func NewRiskHTTP(caller service.ServiceCaller) *RiskHTTP {
	return &RiskHTTP{caller: caller}
}

func (r *RiskHTTP) Assess(ctx context.Context, symbol string, intent models.Intent) (models.RiskAssessment, error) {
	raw, err := r.caller.Call(ctx, ServiceRisk, OpAssess, assessRequest{Symbol: symbol, Intent: string(intent)})
	if err != nil {
		return models.RiskAssessment{}, err
	}
	res, err := parse(raw)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("risk %s: %w", symbol, err)
	}
	out := models.RiskAssessment{
		Status: strings.ToUpper(first(res, "status", "level").String()),
		Score:  first(res, "score", "riskScore").Float(),
	}
	res.Get("factors").ForEach(func(_, v gjson.Result) bool {
		out.Factors = append(out.Factors, v.String())
		return true
	})
	return out, nil
}

// parse unwraps an optional {"data": {...}} envelope.
func parse(raw []byte) (gjson.Result, error) {
	if len(raw) == 0 {
		return gjson.Result{}, models.ErrEmptyResult
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("invalid json body")
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return gjson.Result{}, models.ErrEmptyResult
	}
	if data := res.Get("data"); data.IsObject() {
		res = data
	}
	return res, nil
}

func first(res gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
