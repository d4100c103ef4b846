package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	feerepository "github.com/smallbiznis/feeledger/internal/fee/repository"
	obsmetrics "github.com/smallbiznis/feeledger/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/feeledger/internal/report/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeFeeService struct {
	feedomain.Service

	mu         sync.Mutex
	reconciled []string
	busy       map[string]bool
}

func (f *fakeFeeService) ReconcileBalance(ctx context.Context, accountID string) (feedomain.Account, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy[accountID] {
		return feedomain.Account{}, feedomain.ErrAccountBusy
	}
	f.reconciled = append(f.reconciled, accountID)
	return feedomain.Account{}, nil
}

type fakeReportService struct {
	reportdomain.Service
	calls int
}

func (f *fakeReportService) Reminders(ctx context.Context, req reportdomain.ReminderRequest) (reportdomain.Reminders, error) {
	_ = ctx
	_ = req
	f.calls++
	return reportdomain.Reminders{
		Today:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		WindowDays: 3,
		Upcoming:   make([]reportdomain.ReminderLine, 2),
	}, nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&feedomain.StudentFeeAccount{}))
	return db
}

func newScheduler(t *testing.T, db *gorm.DB, fee *fakeFeeService, reports *fakeReportService, cfg Config) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s, err := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		FeeRepo:   feerepository.Provide(),
		FeeSvc:    fee,
		ReportSvc: reports,
		Config:    cfg,
	})
	require.NoError(t, err)
	return s
}

func TestReconcileSweepPagesEveryAccount(t *testing.T) {
	db := setupDB(t)
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		id := snowflake.ID(int64(i) * 10)
		require.NoError(t, db.Create(&feedomain.StudentFeeAccount{
			ID:              id,
			EnrollmentID:    snowflake.ID(i),
			PlanID:          1,
			Discount:        money.Zero,
			RemainingAmount: money.Zero,
			CreatedAt:       now,
			UpdatedAt:       now,
		}).Error)
	}

	fee := &fakeFeeService{busy: map[string]bool{"30": true}}
	s := newScheduler(t, db, fee, &fakeReportService{}, Config{BatchSize: 2})

	require.NoError(t, s.ReconcileSweepJob(context.Background()))
	assert.Equal(t, []string{"10", "20", "40", "50"}, fee.reconciled)
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	db := setupDB(t)
	fee := &fakeFeeService{}
	reports := &fakeReportService{}
	s := newScheduler(t, db, fee, reports, Config{EnabledJobs: []string{JobReminderDigest}})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, reports.calls)
	assert.Empty(t, fee.reconciled)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	registry := prometheus.NewRegistry()
	ledger := obsmetrics.NewLedgerMetrics(registry, obsmetrics.Config{ServiceName: "feeledger", Environment: "test"})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	s := &Scheduler{log: zap.NewNop(), genID: node, ledger: ledger}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{
		"service":   "feeledger",
		"env":       "test",
		"operation": "timeout_job",
		"reason":    obsmetrics.ReasonDeadlineExceeded,
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "feeledger_rejections_total", labels))
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			require.NotNil(t, metric.Counter, "metric %s is not a counter", name)
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
