// Package context carries request correlation values through context.Context.
package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorIDKey
	franchiseIDKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithActor records who performed a mutation (staff id as supplied by the
// calling layer). The fee engine never resolves it.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(actorIDKey).(string)
	return v
}

func WithFranchiseID(ctx context.Context, franchiseID string) context.Context {
	return context.WithValue(ctx, franchiseIDKey, strings.TrimSpace(franchiseID))
}

func FranchiseIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(franchiseIDKey).(string)
	return v
}
