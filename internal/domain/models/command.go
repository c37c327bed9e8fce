package models

import (
	"strings"
	"time"
)

// Intent is the categorical action requested by a command.
type Intent string

const (
	IntentBuy     Intent = "BUY"
	IntentSell    Intent = "SELL"
	IntentQuery   Intent = "QUERY"
	IntentAlert   Intent = "ALERT"
	IntentAnalyze Intent = "ANALYZE"
	IntentConfig  Intent = "CONFIG"
	IntentStop    Intent = "STOP"
	IntentStatus  Intent = "STATUS"
)

// Intents lists the closed set of intents in declaration order.
var Intents = []Intent{
	IntentBuy, IntentSell, IntentQuery, IntentAlert,
	IntentAnalyze, IntentConfig, IntentStop, IntentStatus,
}

// ParseIntent maps a case-insensitive name onto an Intent.
func ParseIntent(s string) (Intent, bool) {
	in := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Intents {
		if in == known {
			return in, true
		}
	}
	return "", false
}

// IsTrade reports whether the intent moves a position.
func (i Intent) IsTrade() bool {
	return i == IntentBuy || i == IntentSell
}

// Entities are the structured parameters pulled out of free text.
// Zero strings and nil pointers mean "not given".
type Entities struct {
	Symbol    string   `json:"symbol,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Quantity  *int     `json:"quantity,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Condition string   `json:"condition,omitempty"`
}

// ParsedCommand is created once per inbound command and only read afterwards.
type ParsedCommand struct {
	Intent            Intent   `json:"intent"`
	Entities          Entities `json:"entities"`
	OriginalText      string   `json:"originalText"`
	Confidence        float64  `json:"confidence"`
	NeedsConfirmation bool     `json:"needsConfirmation"`
}

// RequestContext is the optional context block of the envelope.
type RequestContext struct {
	Confirmed         bool   `json:"confirmed,omitempty"`
	ConfirmationToken string `json:"confirmationToken,omitempty"`
	ExecuteConfirmed  bool   `json:"executeConfirmed,omitempty"`
}

// Envelope is one inbound command at the process boundary.
type Envelope struct {
	Command   string
	UserID    string
	SessionID string
	Context   RequestContext
}

// CommandResponse is the externally visible outcome of one pipeline run.
type CommandResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data,omitempty"`
	FollowUp string      `json:"followUp,omitempty"`
}

// HistoryEntry is one command/response pair kept per session.
type HistoryEntry struct {
	Command   string    `json:"command"`
	Intent    Intent    `json:"intent"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
