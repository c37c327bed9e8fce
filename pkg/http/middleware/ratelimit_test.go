package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerKeyBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	fixed := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return fixed }

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"), "buckets are independent per key")

	fixed = fixed.Add(time.Second)
	assert.True(t, rl.Allow("alice"), "one token refills per second")
}

func TestRateLimiterMiddlewareReturns429(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/command", nil)
		req.Header.Set(HeaderUserID, "u-1")
		rec := httptest.NewRecorder()
		_ = h(e.NewContext(req, rec))
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
}
