package marketstream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
)

type quoteState struct {
	open   float64
	last   float64
	volume float64
}

// QuoteBook keeps the last trade price, the first price seen this session and
// the accumulated volume per symbol.
type QuoteBook struct {
	mu     sync.RWMutex
	quotes map[string]*quoteState
}

func NewQuoteBook() *QuoteBook {
	return &QuoteBook{quotes: make(map[string]*quoteState)}
}

// Apply records one trade print.
func (b *QuoteBook) Apply(symbol string, price, volume float64) {
	if price <= 0 {
		return
	}
	symbol = strings.ToUpper(symbol)
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[symbol]
	if !ok {
		q = &quoteState{open: price}
		b.quotes[symbol] = q
	}
	q.last = price
	q.volume += volume
}

// Quote implements the market source. Unknown symbols return ErrUnknownSymbol.
func (b *QuoteBook) Quote(_ context.Context, symbol string) (models.MarketData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[strings.ToUpper(symbol)]
	if !ok {
		return models.MarketData{}, fmt.Errorf("quote %s: %w", symbol, models.ErrUnknownSymbol)
	}
	return models.MarketData{
		Price:     q.last,
		ChangePct: (q.last - q.open) / q.open * 100,
		Volume:    q.volume,
	}, nil
}

// Symbols returns how many symbols have traded.
func (b *QuoteBook) Symbols() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.quotes)
}
