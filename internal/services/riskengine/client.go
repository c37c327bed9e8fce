package riskengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	xhttp "github.com/EasyE-base/neural-command-layer/pkg/http"
)

// Client calls an external risk engine's POST /check.
type Client struct {
	url    string
	client *xhttp.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		url:    strings.TrimRight(baseURL, "/") + "/check",
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type checkResponse struct {
	Status   string   `json:"status"`
	Breaches []string `json:"breaches"`
}

func (c *Client) Check(ctx context.Context, p models.RiskProposal) (models.RiskDecision, error) {
	var resp checkResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.url,
		Body:   p,
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return models.RiskDecision{}, &models.ServiceError{Service: "risk-engine", Operation: "check", Status: se.StatusCode, Body: string(se.Body)}
		}
		return models.RiskDecision{}, fmt.Errorf("risk check: %w", err)
	}

	switch models.RiskStatus(strings.ToUpper(resp.Status)) {
	case models.RiskApproved:
		return models.RiskDecision{Status: models.RiskApproved}, nil
	case models.RiskRejected:
		return models.RiskDecision{Status: models.RiskRejected, Breaches: resp.Breaches}, nil
	default:
		return models.RiskDecision{}, fmt.Errorf("risk check: unexpected status %q", resp.Status)
	}
}

// Release is a no-op; the remote engine tracks its own exposure.
func (c *Client) Release(context.Context, models.RiskProposal) error { return nil }
