package store

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/feeledger/internal/receipt/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutRedisUsesMemory(t *testing.T) {
	_, ok := New(nil).(*MemoryStore)
	assert.True(t, ok)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Put(ctx, domain.Receipt{Token: "tok", Amount: money.FromInt(50)}, time.Minute))
	got, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(money.FromInt(50)))

	require.NoError(t, s.Delete(ctx, "tok"))
	got, err = s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}
