package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"

	"github.com/google/uuid"
)

type GateState string

const (
	StateAwaitingConfirmation GateState = "AWAITING_CONFIRMATION"
	StateReadyToExecute       GateState = "READY_TO_EXECUTE"
)

const (
	ConfirmationModeFlag  = "flag"
	ConfirmationModeToken = "token"
)

// GateDecision is the outcome of one gate evaluation.
type GateDecision struct {
	State     GateState
	Prompt    string
	Token     string
	ExpiresAt time.Time
}

// ConfirmationData is attached to an awaiting-confirmation response.
type ConfirmationData struct {
	State     GateState            `json:"state"`
	Command   models.ParsedCommand `json:"command"`
	Token     string               `json:"confirmationToken,omitempty"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
}

// ConfirmationGate decides whether a command may run now. In flag mode the
// caller's confirmed flag is trusted; in token mode it must come with an
// unexpired token issued for the same session, intent and symbol.
type ConfirmationGate struct {
	mode     string
	pending  domrepo.PendingStore
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
}

type GateOption func(*ConfirmationGate)

// WithTokenMode switches the gate to server-issued tokens.
func WithTokenMode(store domrepo.PendingStore, ttl time.Duration) GateOption {
	return func(g *ConfirmationGate) {
		g.mode = ConfirmationModeToken
		g.pending = store
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithGateClock(now func() time.Time) GateOption {
	return func(g *ConfirmationGate) { g.now = now }
}

func NewConfirmationGate(opts ...GateOption) *ConfirmationGate {
	g := &ConfirmationGate{
		mode:     ConfirmationModeFlag,
		ttl:      2 * time.Minute,
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *ConfirmationGate) Mode() string { return g.mode }

// Evaluate runs the two-state machine for cmd.
func (g *ConfirmationGate) Evaluate(ctx context.Context, cmd models.ParsedCommand, env models.Envelope) (GateDecision, error) {
	if !cmd.NeedsConfirmation {
		return GateDecision{State: StateReadyToExecute}, nil
	}

	if g.mode != ConfirmationModeToken {
		if env.Context.Confirmed {
			return GateDecision{State: StateReadyToExecute}, nil
		}
		return GateDecision{State: StateAwaitingConfirmation, Prompt: confirmationPrompt(cmd)}, nil
	}

	if env.Context.Confirmed && env.Context.ConfirmationToken != "" {
		p, err := g.pending.Consume(ctx, env.SessionID, env.Context.ConfirmationToken)
		switch {
		case err == nil:
			if p.Intent == cmd.Intent && p.Symbol == cmd.Entities.Symbol && g.now().Before(p.ExpiresAt) {
				return GateDecision{State: StateReadyToExecute}, nil
			}
		case errors.Is(err, models.ErrTokenInvalid):
		default:
			return GateDecision{}, fmt.Errorf("consume confirmation token: %w", err)
		}
	}
	return g.issue(ctx, cmd, env)
}

// Issue hands out a fresh token for cmd. In flag mode the decision carries no token.
func (g *ConfirmationGate) Issue(ctx context.Context, cmd models.ParsedCommand, env models.Envelope) (GateDecision, error) {
	if g.mode != ConfirmationModeToken {
		return GateDecision{State: StateAwaitingConfirmation, Prompt: confirmationPrompt(cmd)}, nil
	}
	return g.issue(ctx, cmd, env)
}

// PendingCount reports outstanding tokens for the session; zero in flag mode.
func (g *ConfirmationGate) PendingCount(ctx context.Context, sessionID string) (int, error) {
	if g.pending == nil {
		return 0, nil
	}
	return g.pending.CountSession(ctx, sessionID)
}

// Cancel drops every outstanding token for the session.
func (g *ConfirmationGate) Cancel(ctx context.Context, sessionID string) (int, error) {
	if g.pending == nil {
		return 0, nil
	}
	return g.pending.CancelSession(ctx, sessionID)
}

func (g *ConfirmationGate) issue(ctx context.Context, cmd models.ParsedCommand, env models.Envelope) (GateDecision, error) {
	p := models.PendingAction{
		Token:     g.newToken(),
		SessionID: env.SessionID,
		Intent:    cmd.Intent,
		Symbol:    cmd.Entities.Symbol,
		ExpiresAt: g.now().Add(g.ttl),
	}
	if err := g.pending.Save(ctx, p, g.ttl); err != nil {
		return GateDecision{}, fmt.Errorf("save confirmation token: %w", err)
	}
	return GateDecision{
		State:     StateAwaitingConfirmation,
		Prompt:    confirmationPrompt(cmd),
		Token:     p.Token,
		ExpiresAt: p.ExpiresAt,
	}, nil
}

func confirmationPrompt(cmd models.ParsedCommand) string {
	if !cmd.Intent.IsTrade() {
		return fmt.Sprintf("Please confirm the %s command.", cmd.Intent)
	}
	e := cmd.Entities
	switch {
	case e.Quantity != nil:
		return fmt.Sprintf("Please confirm: %s %d shares of %s.", cmd.Intent, *e.Quantity, e.Symbol)
	case e.Amount != nil:
		return fmt.Sprintf("Please confirm: %s $%s of %s.", cmd.Intent, formatMoney(*e.Amount), e.Symbol)
	default:
		return fmt.Sprintf("Please confirm: %s %s.", cmd.Intent, e.Symbol)
	}
}

// formatMoney renders v with thousands separators and cents only when needed.
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "," + whole[i:]
	}
	if frac == ".00" {
		frac = ""
	}
	return sign + whole + frac
}
