package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.Equal(t, "", ActorFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithActor(ctx, "cashier-7")
	ctx = WithFranchiseID(ctx, "42")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "cashier-7", ActorFromContext(ctx))
	assert.Equal(t, "42", FranchiseIDFromContext(ctx))
}
