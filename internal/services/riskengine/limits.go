package riskengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Breach names.
const (
	BreachMaxSingle = "maxSingle"
	BreachMaxGross  = "maxGross"
)

// LimitsChecker enforces per-order and gross exposure limits in process.
type LimitsChecker struct {
	maxSingle decimal.Decimal
	maxGross  decimal.Decimal

	mu    sync.Mutex
	gross decimal.Decimal
}

func NewLimitsChecker(maxSingle, maxGross float64) *LimitsChecker {
	return &LimitsChecker{
		maxSingle: decimal.NewFromFloat(maxSingle),
		maxGross:  decimal.NewFromFloat(maxGross),
		gross:     decimal.Zero,
	}
}

func notional(p models.RiskProposal) decimal.Decimal {
	if p.Quantity > 0 && p.Price > 0 {
		return decimal.NewFromInt(int64(p.Quantity)).Mul(decimal.NewFromFloat(p.Price)).Abs()
	}
	return decimal.NewFromFloat(p.Notional).Abs()
}

// Check approves or rejects p. An approved proposal reserves its notional
// against gross exposure until Release returns it.
func (c *LimitsChecker) Check(_ context.Context, p models.RiskProposal) (models.RiskDecision, error) {
	if p.Quantity <= 0 {
		return models.RiskDecision{}, fmt.Errorf("risk check %s: quantity must be positive", p.Symbol)
	}
	n := notional(p)

	c.mu.Lock()
	defer c.mu.Unlock()

	var breaches []string
	if n.GreaterThan(c.maxSingle) {
		breaches = append(breaches, BreachMaxSingle)
	}
	if c.gross.Add(n).GreaterThan(c.maxGross) {
		breaches = append(breaches, BreachMaxGross)
	}
	if len(breaches) > 0 {
		return models.RiskDecision{Status: models.RiskRejected, Breaches: breaches}, nil
	}
	c.gross = c.gross.Add(n)
	return models.RiskDecision{Status: models.RiskApproved}, nil
}

// Release returns the reservation of an approved proposal that was never published.
func (c *LimitsChecker) Release(_ context.Context, p models.RiskProposal) error {
	n := notional(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gross = c.gross.Sub(n)
	if c.gross.IsNegative() {
		c.gross = decimal.Zero
	}
	return nil
}

// Gross returns the tracked gross exposure.
func (c *LimitsChecker) Gross() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, _ := c.gross.Float64()
	return f
}
