package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	referenceKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithReference tags ctx with the payment reference being worked on so every
// log line below it, provider calls included, carries it.
func WithReference(ctx context.Context, reference string) context.Context {
	return context.WithValue(ctx, referenceKey, reference)
}

func ReferenceFrom(ctx context.Context) string {
	v, _ := ctx.Value(referenceKey).(string)
	return v
}

// FromCtx returns the global logger with request_id and reference attached
// when ctx has them.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if ref := ReferenceFrom(ctx); ref != "" {
		l = l.With(zap.String("reference", ref))
	}
	return l
}
