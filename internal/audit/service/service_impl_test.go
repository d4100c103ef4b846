package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/audit/repository"
	"github.com/smallbiznis/feeledger/internal/clock"
	obscontext "github.com/smallbiznis/feeledger/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestRecordCapturesActorAndRequest(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:audit_record?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})

	ctx := obscontext.WithActor(obscontext.WithRequestID(context.Background(), "req-9"), "cashier-2")
	err = svc.Record(ctx, nil, domain.Entry{
		Action:     domain.ActionPaymentAllocated,
		TargetType: domain.TargetAccount,
		TargetID:   "55",
		Metadata:   map[string]any{"amount": "150.00"},
	})
	require.NoError(t, err)

	logs, err := svc.ListByTarget(context.Background(), domain.TargetAccount, "55")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionPaymentAllocated, logs[0].Action)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "cashier-2", *logs[0].ActorID)
	assert.Equal(t, "req-9", logs[0].Metadata["request_id"])
	assert.Equal(t, "150.00", logs[0].Metadata["amount"])

	err = svc.Record(context.Background(), nil, domain.Entry{Action: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}
