// Package contexthelpers stores request scoped values in a context.
package contexthelpers

import (
	"context"
)

type contextKey string

const requestIDContextKey = contextKey("requestID")

// WithRequestID returns a copy of ctx carrying the number of the request being served.
func WithRequestID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestID returns the request number stored by WithRequestID, or zero.
func RequestID(ctx context.Context) uint64 {
	id, ok := ctx.Value(requestIDContextKey).(uint64)
	if !ok {
		return 0
	}

	return id
}
