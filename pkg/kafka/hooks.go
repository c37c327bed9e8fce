package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook wraps handler execution. BeforeHandle may replace the context
// and payload; an error from it skips the handler and counts as a failure.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, msg kafka.Message) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, msg kafka.Message, err error)
}

// NoopHook passes messages through unchanged.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, msg kafka.Message) (context.Context, []byte, error) {
	return ctx, msg.Value, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, []byte, error)
	After  func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, msg kafka.Message) (context.Context, []byte, error) {
	if h.Before == nil {
		return ctx, msg.Value, nil
	}
	return h.Before(ctx, msg)
}

func (h HookFuncs) AfterHandle(ctx context.Context, msg kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, msg, err)
	}
}

type ctxKey string

// CtxTraceID holds the trace id propagated in the "trace_id" header.
const CtxTraceID ctxKey = "kafka_trace_id"

// TraceHook copies the trace_id header into the handler context.
func TraceHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, msg kafka.Message) (context.Context, []byte, error) {
			if id := HeaderValue(msg, "trace_id"); id != "" {
				ctx = context.WithValue(ctx, CtxTraceID, id)
			}
			return ctx, msg.Value, nil
		},
	}
}

// WithTraceID stores id so producers can forward it as the trace_id header.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, CtxTraceID, id)
}

// TraceIDFrom returns the trace id set by TraceHook, if any.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(CtxTraceID).(string)
	return id
}

// HeaderValue returns the first header value for key.
func HeaderValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
