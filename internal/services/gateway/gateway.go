package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	xhttp "github.com/EasyE-base/neural-command-layer/pkg/http"
)

// Gateway calls evidence services over HTTP. Each service has its own base
// URL; the operation becomes the path under it.
type Gateway struct {
	baseURLs map[string]string
	client   *xhttp.Client
	attempts int
}

type Option func(*Gateway)

// WithRetry retries transport errors and 5xx answers up to attempts times.
func WithRetry(attempts int) Option {
	return func(g *Gateway) {
		if attempts > 0 {
			g.attempts = attempts
		}
	}
}

func WithClient(c *xhttp.Client) Option {
	return func(g *Gateway) { g.client = c }
}

func New(baseURLs map[string]string, timeout time.Duration, opts ...Option) *Gateway {
	g := &Gateway{
		baseURLs: make(map[string]string, len(baseURLs)),
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: 1,
	}
	for name, u := range baseURLs {
		g.baseURLs[name] = strings.TrimRight(u, "/")
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call POSTs payload as JSON and returns the raw response body.
func (g *Gateway) Call(ctx context.Context, service, operation string, payload interface{}) ([]byte, error) {
	base, ok := g.baseURLs[service]
	if !ok || base == "" {
		return nil, fmt.Errorf("service %q not configured", service)
	}
	url := base + "/" + strings.TrimLeft(operation, "/")

	var err error
	for i := 1; i <= g.attempts; i++ {
		var body []byte
		err = g.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    url,
			Body:   payload,
		}, &body)
		if err == nil {
			return body, nil
		}

		var se *xhttp.StatusError
		if errors.As(err, &se) {
			svcErr := &models.ServiceError{Service: service, Operation: operation, Status: se.StatusCode, Body: string(se.Body)}
			if se.StatusCode < http.StatusInternalServerError {
				return nil, svcErr
			}
			err = svcErr
		} else {
			err = fmt.Errorf("call %s/%s: %w", service, operation, err)
		}
		if i == g.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}
