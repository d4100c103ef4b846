package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/fee/engine"
	"gorm.io/gorm"
)

type Repository interface {
	// ListLines returns every installment joined with its enrollment scope.
	// Zero ids mean no restriction.
	ListLines(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) ([]Line, error)
	// ListPendingDueBy returns pending installments due on or before until.
	ListPendingDueBy(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID, until time.Time) ([]Line, error)
	// SumTotals sums installments in SQL. Installments due before today
	// and still pending count as overdue.
	SumTotals(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID, today time.Time) (engine.Totals, error)
}
