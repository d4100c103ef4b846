package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	enrollmentrepository "github.com/smallbiznis/feeledger/internal/enrollment/repository"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/fee/engine"
	"github.com/smallbiznis/feeledger/internal/report/domain"
	"github.com/smallbiznis/feeledger/internal/report/repository"
	"github.com/smallbiznis/feeledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc         domain.Service
	db          *gorm.DB
	node        *snowflake.Node
	now         time.Time
	franchiseID snowflake.ID
	batchID     snowflake.ID
}

func setup(t *testing.T) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&enrollmentdomain.Franchise{},
		&enrollmentdomain.Batch{},
		&enrollmentdomain.Enrollment{},
		&feedomain.StudentFeeAccount{},
		&feedomain.Installment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	now := clk.Now()

	franchiseID, batchID := node.Generate(), node.Generate()
	require.NoError(t, db.Create(&enrollmentdomain.Franchise{ID: franchiseID, Name: "Central", CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, db.Create(&enrollmentdomain.Batch{ID: batchID, FranchiseID: franchiseID, Name: "B1", CreatedAt: now, UpdatedAt: now}).Error)

	svc := New(Params{
		DB:             db,
		Log:            zap.NewNop(),
		Clock:          clk,
		Repo:           repository.Provide(),
		EnrollmentRepo: enrollmentrepository.Provide(),
		FeeConfig:      config.NewStaticFeeConfigHolder(config.DefaultFeeConfig()),
	})
	return fixture{svc: svc, db: db, node: node, now: now, franchiseID: franchiseID, batchID: batchID}
}

func (f fixture) enroll(t *testing.T, name string) snowflake.ID {
	t.Helper()
	return f.enrollIn(t, f.batchID, name)
}

// franchise adds a second franchise with one batch and returns both ids.
func (f fixture) franchise(t *testing.T, name string) (snowflake.ID, snowflake.ID) {
	t.Helper()
	franchiseID, batchID := f.node.Generate(), f.node.Generate()
	require.NoError(t, f.db.Create(&enrollmentdomain.Franchise{ID: franchiseID, Name: name, CreatedAt: f.now, UpdatedAt: f.now}).Error)
	require.NoError(t, f.db.Create(&enrollmentdomain.Batch{ID: batchID, FranchiseID: franchiseID, Name: name + "-1", CreatedAt: f.now, UpdatedAt: f.now}).Error)
	return franchiseID, batchID
}

func (f fixture) enrollIn(t *testing.T, batchID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&enrollmentdomain.Enrollment{
		ID:                 id,
		StudentID:          f.node.Generate(),
		StudentName:        name,
		BatchID:            batchID,
		RegistrationNumber: "REG-" + name,
		RegisteredAt:       f.now,
		CreatedAt:          f.now,
		UpdatedAt:          f.now,
	}).Error)
	return id
}

func (f fixture) account(t *testing.T, enrollmentID snowflake.ID, dues ...time.Time) {
	t.Helper()
	accountID := f.node.Generate()
	require.NoError(t, f.db.Create(&feedomain.StudentFeeAccount{
		ID:              accountID,
		EnrollmentID:    enrollmentID,
		PlanID:          f.node.Generate(),
		Discount:        money.Zero,
		RemainingAmount: money.FromInt(int64(100 * len(dues))),
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	}).Error)
	for _, due := range dues {
		require.NoError(t, f.db.Create(&feedomain.Installment{
			ID:                  f.node.Generate(),
			AccountID:           accountID,
			DueDate:             due,
			Amount:              money.FromInt(100),
			PayedAmount:         money.Zero,
			Status:              feedomain.StatusPending,
			RepaymentPeriodDays: 30,
			CreatedAt:           f.now,
			UpdatedAt:           f.now,
		}).Error)
	}
}

func TestAggregateFromStorage(t *testing.T) {
	f := setup(t)
	withFees := f.enroll(t, "Asha")
	f.enroll(t, "NoAccount")
	f.account(t, withFees,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	)

	report, err := f.svc.Aggregate(context.Background(), domain.ReportRequest{})
	require.NoError(t, err)

	assert.Equal(t, "200.00", report.Global.Fees.String())
	assert.Equal(t, "100.00", report.Global.Overdue.String())
	require.Len(t, report.Franchises, 1)
	require.Len(t, report.Franchises[0].Batches, 1)
	assert.Equal(t, "200.00", report.Franchises[0].Batches[0].Pending.String())
	require.Len(t, report.Students, 2)
	assert.Equal(t, "Asha", report.Students[0].StudentName)
	assert.Equal(t, "NoAccount", report.Students[1].StudentName)
	assert.Equal(t, "REG-NoAccount", report.Students[1].RegistrationNumber)
	assert.Equal(t, 1, report.Students[1].Enrollments)
	assert.True(t, report.Students[1].Fees.IsZero())

	march, err := f.svc.Aggregate(context.Background(), domain.ReportRequest{
		BatchID: f.batchID.String(),
		Month:   "2024-03",
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", march.Filtered.Fees.String())
	assert.Equal(t, "200.00", march.Global.Fees.String())
	require.Len(t, march.Students, 1)
	assert.Equal(t, "Asha", march.Students[0].StudentName)
}

func TestAggregateFiltersInStorage(t *testing.T) {
	f := setup(t)
	f.account(t, f.enroll(t, "Asha"),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	)
	southID, southBatch := f.franchise(t, "South")
	f.account(t, f.enrollIn(t, southBatch, "Bala"),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	)
	f.enrollIn(t, southBatch, "Chitra")

	report, err := f.svc.Aggregate(context.Background(), domain.ReportRequest{FranchiseID: southID.String()})
	require.NoError(t, err)

	assert.Equal(t, "300.00", report.Global.Fees.String())
	assert.Equal(t, "200.00", report.Global.Overdue.String())
	assert.Equal(t, "100.00", report.Filtered.Fees.String())
	assert.Equal(t, "100.00", report.Filtered.Overdue.String())
	require.Len(t, report.Franchises, 1)
	assert.Equal(t, "South", report.Franchises[0].FranchiseName)
	require.Len(t, report.Franchises[0].Batches, 1)
	assert.Equal(t, southBatch, report.Franchises[0].Batches[0].BatchID)
	require.Len(t, report.Students, 2)
	assert.Equal(t, "Bala", report.Students[0].StudentName)
	assert.Equal(t, "Chitra", report.Students[1].StudentName)
	require.Len(t, report.Monthly, 1)
	assert.Equal(t, "2024-02", report.Monthly[0].Month)
}

func TestSumTotalsMatchesInMemoryTotals(t *testing.T) {
	f := setup(t)
	f.account(t, f.enroll(t, "Asha"),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, f.db.Model(&feedomain.Installment{}).
		Where("due_date = ?", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).
		Updates(map[string]any{"payed_amount": money.MustParse("40.25")}).Error)

	repo := repository.Provide()
	lines, err := repo.ListLines(context.Background(), f.db, 0, 0)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	want := engine.Totals{Fees: money.Zero, Received: money.Zero, Pending: money.Zero, Overdue: money.Zero}
	for _, l := range lines {
		want = want.Add(engine.TotalsOf(l.Installment, f.now))
	}

	got, err := repo.SumTotals(context.Background(), f.db, 0, 0, f.now)
	require.NoError(t, err)
	assert.Equal(t, "300.00", got.Fees.String())
	assert.Equal(t, "40.25", got.Received.String())
	// only the March 1 row is past due; March 15 is due today
	assert.Equal(t, "59.75", got.Overdue.String())
	assert.True(t, want.Fees.Equal(got.Fees))
	assert.True(t, want.Received.Equal(got.Received))
	assert.True(t, want.Pending.Equal(got.Pending))
	assert.True(t, want.Overdue.Equal(got.Overdue))
}

func TestAggregateRejectsBadFilter(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Aggregate(context.Background(), domain.ReportRequest{Month: "March"})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	_, err = f.svc.Aggregate(context.Background(), domain.ReportRequest{FranchiseID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestRemindersWindow(t *testing.T) {
	f := setup(t)
	enrollmentID := f.enroll(t, "Asha")
	f.account(t, enrollmentID,
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
	)

	reminders, err := f.svc.Reminders(context.Background(), domain.ReminderRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, reminders.WindowDays)
	require.Len(t, reminders.Overdue, 1)
	assert.Equal(t, 5, reminders.Overdue[0].DaysOverdue)
	require.Len(t, reminders.Upcoming, 1)
	assert.Equal(t, "Asha", reminders.Upcoming[0].StudentName)
}
