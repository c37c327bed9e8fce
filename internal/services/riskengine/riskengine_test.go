package riskengine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposal(qty int, price float64) models.RiskProposal {
	return models.RiskProposal{Symbol: "AAPL", Action: models.IntentBuy, Quantity: qty, Price: price, Notional: float64(qty) * price}
}

func TestLimitsCheckerMaxSingle(t *testing.T) {
	c := NewLimitsChecker(1000, 10000)
	ctx := context.Background()

	d, err := c.Check(ctx, proposal(10, 100))
	require.NoError(t, err)
	assert.True(t, d.Approved(), "notional equal to the limit passes")

	d, err = c.Check(ctx, proposal(11, 100))
	require.NoError(t, err)
	assert.False(t, d.Approved())
	assert.Equal(t, []string{BreachMaxSingle}, d.Breaches)
}

func TestLimitsCheckerApprovalReservesExposure(t *testing.T) {
	c := NewLimitsChecker(1000, 1500)
	ctx := context.Background()

	d, err := c.Check(ctx, proposal(10, 100))
	require.NoError(t, err)
	assert.True(t, d.Approved())
	assert.Equal(t, 1000.0, c.Gross())

	d, err = c.Check(ctx, proposal(6, 100))
	require.NoError(t, err)
	assert.Equal(t, []string{BreachMaxGross}, d.Breaches)
	assert.Equal(t, 1000.0, c.Gross(), "a rejected proposal reserves nothing")

	require.NoError(t, c.Release(ctx, proposal(10, 100)))
	assert.Equal(t, 0.0, c.Gross())

	d, err = c.Check(ctx, proposal(6, 100))
	require.NoError(t, err)
	assert.True(t, d.Approved())
}

func TestLimitsCheckerReleaseNeverGoesNegative(t *testing.T) {
	c := NewLimitsChecker(1000, 1500)
	require.NoError(t, c.Release(context.Background(), proposal(5, 100)))
	assert.Equal(t, 0.0, c.Gross())
}

func TestLimitsCheckerConcurrentChecksRespectGross(t *testing.T) {
	c := NewLimitsChecker(60_000, 100_000)
	ctx := context.Background()

	const workers = 8
	var (
		wg       sync.WaitGroup
		approved atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := c.Check(ctx, proposal(600, 100))
			if err == nil && d.Approved() {
				approved.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), approved.Load())
	assert.Equal(t, 60_000.0, c.Gross())
	assert.LessOrEqual(t, c.Gross(), 100_000.0)
}

func TestLimitsCheckerRejectsZeroQuantity(t *testing.T) {
	_, err := NewLimitsChecker(1, 1).Check(context.Background(), proposal(0, 10))
	assert.Error(t, err)
}

func TestClientCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check", r.URL.Path)
		var p models.RiskProposal
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		if p.Quantity > 5 {
			_, _ = w.Write([]byte(`{"status":"rejected","breaches":["concentration"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"APPROVED"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	d, err := c.Check(context.Background(), proposal(1, 10))
	require.NoError(t, err)
	assert.True(t, d.Approved())

	d, err = c.Check(context.Background(), proposal(9, 10))
	require.NoError(t, err)
	assert.Equal(t, models.RiskRejected, d.Status)
	assert.Equal(t, []string{"concentration"}, d.Breaches)
	assert.NoError(t, c.Release(context.Background(), proposal(9, 10)))
}

func TestClientCheckServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Check(context.Background(), proposal(1, 10))
	var se *models.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Status)
}
