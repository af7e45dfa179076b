package helpers

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKeyType string

const requestIDKey requestIDKeyType = "request_id"

// ContextWithRequestID attaches the request ID that outgoing API requests carry.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or a generated one.
func RequestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(requestIDKey).(string)
	if ok && v != "" {
		return v
	}

	// "gen_" marks IDs that were not passed in by the caller
	return "gen_" + uuid.NewString()
}
