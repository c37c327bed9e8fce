package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCommandResolverUsesSemanticResult(t *testing.T) {
	sem := &mockSemantic{}
	want := models.ParsedCommand{
		Intent:            models.IntentBuy,
		Entities:          models.Entities{Symbol: "AAPL", Amount: floatPtr(5000)},
		OriginalText:      "Buy $5000 of AAPL",
		Confidence:        0.95,
		NeedsConfirmation: true,
	}
	sem.On("Resolve", mock.Anything, "Buy $5000 of AAPL", models.RequestContext{}).Return(want, nil)

	r := NewCommandResolver(sem, nil, nopMetrics{}, testLog)
	got, path := r.Resolve(context.Background(), "Buy $5000 of AAPL", models.RequestContext{})

	assert.Equal(t, ResolverSemantic, path)
	assert.Equal(t, want, got)
	sem.AssertExpectations(t)
}

func TestCommandResolverFallsBackOnParseError(t *testing.T) {
	sem := &mockSemantic{}
	sem.On("Resolve", mock.Anything, "sell NVDA", mock.Anything).
		Return(models.ParsedCommand{}, &models.ParseError{Reason: "schema", Err: errors.New("missing intent")})

	r := NewCommandResolver(sem, nil, nopMetrics{}, testLog)
	got, path := r.Resolve(context.Background(), "sell NVDA", models.RequestContext{})

	assert.Equal(t, ResolverRecovered, path)
	assert.Equal(t, models.IntentSell, got.Intent)
	assert.Equal(t, "NVDA", got.Entities.Symbol)
	assert.Equal(t, 0.6, got.Confidence)
	assert.True(t, got.NeedsConfirmation)
}

func TestCommandResolverFallsBackOnAnyError(t *testing.T) {
	sem := &mockSemantic{}
	sem.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(models.ParsedCommand{}, context.DeadlineExceeded)

	got, path := NewCommandResolver(sem, nil, nopMetrics{}, testLog).
		Resolve(context.Background(), "portfolio", models.RequestContext{})

	assert.Equal(t, ResolverRecovered, path)
	assert.Equal(t, models.IntentStatus, got.Intent)
}

func TestCommandResolverWithoutSemantic(t *testing.T) {
	got, path := NewCommandResolver(nil, nil, nopMetrics{}, testLog).
		Resolve(context.Background(), "buy TSLA", models.RequestContext{})

	assert.Equal(t, ResolverFallback, path)
	assert.Equal(t, "TSLA", got.Entities.Symbol)
}
