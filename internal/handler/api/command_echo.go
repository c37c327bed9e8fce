package api

import (
	"context"
	"net/http"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	xhttp "github.com/EasyE-base/neural-command-layer/pkg/http"
	"github.com/EasyE-base/neural-command-layer/pkg/http/middleware"
	pkgkafka "github.com/EasyE-base/neural-command-layer/pkg/kafka"
	xlogger "github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CommandService is what the command API needs from the orchestrator.
type CommandService interface {
	Handle(ctx context.Context, env models.Envelope) models.CommandResponse
	History(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error)
}

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CommandEchoHandler exposes the command pipeline over HTTP.
type CommandEchoHandler struct {
	logger   *xlogger.Logger
	svc      CommandService
	checks   map[string]HealthChecker
	timeout  time.Duration
	limiters []echo.MiddlewareFunc
}

type Option func(*CommandEchoHandler)

// WithHealthCheck adds a dependency reported by GET /health.
func WithHealthCheck(name string, hc HealthChecker) Option {
	return func(h *CommandEchoHandler) {
		if hc != nil {
			h.checks[name] = hc
		}
	}
}

// WithCommandMiddleware applies m to POST /api/command only.
func WithCommandMiddleware(m ...echo.MiddlewareFunc) Option {
	return func(h *CommandEchoHandler) { h.limiters = append(h.limiters, m...) }
}

// WithRequestTimeout bounds one command run.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *CommandEchoHandler) { h.timeout = d }
}

func NewCommandEchoHandler(logger *xlogger.Logger, svc CommandService, opts ...Option) *CommandEchoHandler {
	h := &CommandEchoHandler{
		logger:  logger,
		svc:     svc,
		checks:  make(map[string]HealthChecker),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *CommandEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.POST("/command", h.Command, h.limiters...)
	g.GET("/sessions/:id/history", h.History)
}

func (h *CommandEchoHandler) Command(c echo.Context) error {
	req := &models.CommandRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if hdr := c.Request().Header.Get(middleware.HeaderUserID); hdr != "" && req.UserID == "anonymous" {
		req.UserID = hdr
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	ctx = pkgkafka.WithTraceID(ctx, c.Request().Header.Get(echo.HeaderXRequestID))

	resp := h.svc.Handle(ctx, req.Envelope())
	return c.JSON(http.StatusOK, resp)
}

func (h *CommandEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	entries, err := h.svc.History(c.Request().Context(), req.SessionID, req.Limit)
	if err != nil {
		h.logger.Error("history read failed", xlogger.String("session_id", req.SessionID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"sessionId": req.SessionID,
		"history":   entries,
	})
}

func (h *CommandEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	status := http.StatusOK
	for name, hc := range h.checks {
		if err := hc.Health(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	return c.JSON(status, map[string]interface{}{
		"status":       state,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}
