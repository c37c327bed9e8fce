package models

import "time"

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRecord is what the order bus receives for downstream execution.
type OrderRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Action    Intent    `json:"action"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	OrderType OrderType `json:"orderType"`
	Source    string    `json:"source"`
	SessionID string    `json:"sessionId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
}

type RiskStatus string

const (
	RiskApproved RiskStatus = "APPROVED"
	RiskRejected RiskStatus = "REJECTED"
)

// RiskProposal is the pre-trade check input.
type RiskProposal struct {
	Symbol   string  `json:"symbol"`
	Action   Intent  `json:"action"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`
}

type RiskDecision struct {
	Status   RiskStatus `json:"status"`
	Breaches []string   `json:"breaches,omitempty"`
}

// Approved reports whether the check passed.
func (d RiskDecision) Approved() bool { return d.Status == RiskApproved }

// AlertRegistration is published when a user asks to be notified.
type AlertRegistration struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Condition string    `json:"condition,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PendingAction is a server-held confirmation awaiting its token.
type PendingAction struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	Intent    Intent    `json:"intent"`
	Symbol    string    `json:"symbol"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Audit outcomes.
const (
	OutcomeClarify       = "clarify"
	OutcomeAwaiting      = "awaiting_confirmation"
	OutcomeAbstained     = "abstained"
	OutcomeRiskRejected  = "risk_rejected"
	OutcomeAwaitingFinal = "awaiting_final_confirmation"
	OutcomeExecuted      = "executed"
	OutcomePublishFailed = "publish_failed"
	OutcomeAdvisory      = "advisory"
	OutcomeAlert         = "alert_registered"
	OutcomeInfo          = "info"
	OutcomeFailed        = "failed"
)

// AuditEvent records one pipeline run.
type AuditEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	Command       string    `json:"command"`
	Intent        Intent    `json:"intent"`
	Symbol        string    `json:"symbol"`
	Resolver      string    `json:"resolver"`
	Outcome       string    `json:"outcome"`
	Success       bool      `json:"success"`
	Consensus     float64   `json:"consensus"`
	ShouldProceed bool      `json:"shouldProceed"`
	Defaulted     []string  `json:"defaulted,omitempty"`
	Breaches      []string  `json:"breaches,omitempty"`
	OrderID       string    `json:"orderId,omitempty"`
	Message       string    `json:"message"`
	LatencyMs     int64     `json:"latencyMs"`
}
