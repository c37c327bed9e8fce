package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"
	domsvc "github.com/EasyE-base/neural-command-layer/internal/domain/service"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Documented per-source defaults.
var (
	DefaultMarketData = models.MarketData{Price: 100, ChangePct: 0, Volume: 1_000_000}
	DefaultSentiment  = models.Sentiment{Score: 0.5, Confidence: models.DefaultSentimentConfidence, Sources: []string{}}
	DefaultRisk       = models.RiskAssessment{Status: "MEDIUM", Score: 5, Factors: []string{}}
)

const trendBand = 2.0

// EvidenceAggregator fans out to the remote sources, substitutes defaults for
// any that fail, and derives the technical and strategy sub-records locally.
type EvidenceAggregator struct {
	market    domsvc.MarketSource
	sentiment domsvc.SentimentSource
	risk      domsvc.RiskSource
	timeout   time.Duration
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewEvidenceAggregator(
	market domsvc.MarketSource,
	sentiment domsvc.SentimentSource,
	risk domsvc.RiskSource,
	timeout time.Duration,
	metrics domrepo.Metrics,
	l *logger.Logger,
) *EvidenceAggregator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &EvidenceAggregator{
		market:    market,
		sentiment: sentiment,
		risk:      risk,
		timeout:   timeout,
		metrics:   metrics,
		log:       l,
		now:       time.Now,
	}
}

// Gather never fails; the returned record always has market, sentiment,
// risk, technical and strategy populated.
func (a *EvidenceAggregator) Gather(ctx context.Context, symbol string, intent models.Intent) *models.EvidenceRecord {
	start := time.Now()
	rec := &models.EvidenceRecord{
		Symbol:     symbol,
		Provenance: make(map[string]models.SourceTag, 3),
		GatheredAt: a.now(),
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 3)

	// errors are carried in item; the group only joins
	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		v, err := a.market.Quote(cctx, symbol)
		if err == nil && v.Price <= 0 {
			err = models.ErrEmptyResult
		}
		ch <- item{models.SourceMarket, v, err}
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		v, err := a.sentiment.Sentiment(cctx, symbol)
		ch <- item{models.SourceSentiment, v, err}
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		v, err := a.risk.Assess(cctx, symbol, intent)
		if err == nil && v.Status == "" {
			err = models.ErrEmptyResult
		}
		ch <- item{models.SourceRisk, v, err}
		return nil
	})
	go func() { _ = g.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			if rec.Errors == nil {
				rec.Errors = map[string]string{}
			}
			rec.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case models.SourceMarket:
			v := it.val.(models.MarketData)
			rec.MarketData = &v
		case models.SourceSentiment:
			v := it.val.(models.Sentiment)
			v.Score = models.Clamp(v.Score, 0, 1)
			v.Confidence = models.Clamp(v.Confidence, 0, 1)
			if v.Sources == nil {
				v.Sources = []string{}
			}
			rec.Sentiment = &v
		case models.SourceRisk:
			v := it.val.(models.RiskAssessment)
			v.Score = models.Clamp(v.Score, 0, 10)
			if v.Factors == nil {
				v.Factors = []string{}
			}
			rec.Risk = &v
		}
	}

	a.applyDefaults(rec)
	rec.Technical = deriveTechnical(*rec.MarketData)
	rec.Strategy = deriveStrategy(intent, *rec.Sentiment, rec.Technical.Trend)
	a.metrics.RecordLatency("evidence_gather", time.Since(start))
	return rec
}

func (a *EvidenceAggregator) applyDefaults(rec *models.EvidenceRecord) {
	tag := func(name string, real bool) {
		if real {
			rec.Provenance[name] = models.SourceReal
			a.metrics.RecordEvidence(name, false)
			return
		}
		rec.Provenance[name] = models.SourceDefault
		a.metrics.RecordEvidence(name, true)
		a.log.Warn("evidence source defaulted",
			logger.String("source", name),
			logger.String("symbol", rec.Symbol),
			logger.String("cause", rec.Errors[name]),
		)
	}

	tag(models.SourceMarket, rec.MarketData != nil)
	if rec.MarketData == nil {
		v := DefaultMarketData
		rec.MarketData = &v
	}
	tag(models.SourceSentiment, rec.Sentiment != nil)
	if rec.Sentiment == nil {
		v := DefaultSentiment
		v.Sources = []string{}
		rec.Sentiment = &v
	}
	tag(models.SourceRisk, rec.Risk != nil)
	if rec.Risk == nil {
		v := DefaultRisk
		v.Factors = []string{}
		rec.Risk = &v
	}
}

// TrendOf classifies a daily change in percent.
func TrendOf(changePct float64) models.Trend {
	switch {
	case changePct > trendBand:
		return models.TrendBullish
	case changePct < -trendBand:
		return models.TrendBearish
	default:
		return models.TrendSideways
	}
}

func deriveTechnical(md models.MarketData) *models.Technical {
	return &models.Technical{
		Trend:      TrendOf(md.ChangePct),
		RSI:        models.Clamp(50+5*md.ChangePct, 0, 100),
		Support:    round2(md.Price * 0.95),
		Resistance: round2(md.Price * 1.05),
	}
}

func deriveStrategy(intent models.Intent, s models.Sentiment, trend models.Trend) *models.Strategy {
	rec := "HOLD"
	switch intent {
	case models.IntentBuy:
		if s.Score > 0.6 && trend != models.TrendBearish {
			rec = "BUY"
		}
	case models.IntentSell:
		if s.Score < 0.4 && trend != models.TrendBullish {
			rec = "SELL"
		}
	}
	return &models.Strategy{
		Recommendation: rec,
		Confidence:     math.Min(0.9, s.Confidence*0.8+0.2),
		Reasoning:      fmt.Sprintf("sentiment %.2f with %s trend", s.Score, trend),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
