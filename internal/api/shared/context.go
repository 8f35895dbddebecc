package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// contextKey is the private key type for values stored in a request context.
type contextKey string

// traceIDKey is the key for the trace ID in the request context.
const traceIDKey contextKey = "traceID"

// traceIDLength is the number of random bytes in a trace ID (32 hex chars).
const traceIDLength = 16

// SetTraceID adds a fresh trace ID to the context, used to correlate logs
// and error responses for one request.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, traceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "" when unset.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

func generateTraceID() string {
	b := make([]byte, traceIDLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; an empty trace
		// id only degrades log correlation.
		return ""
	}
	return hex.EncodeToString(b)
}
