package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	obslogger "github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"github.com/smallbiznis/feeledger/internal/report/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Repo           domain.Repository
	EnrollmentRepo enrollmentdomain.Repository
	FeeConfig      *config.FeeConfigHolder
	LedgerMetrics  *metrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	repo           domain.Repository
	enrollmentRepo enrollmentdomain.Repository
	feeConfig      *config.FeeConfigHolder
	ledger         *metrics.LedgerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("report.service"),
		clock:          p.Clock,
		repo:           p.Repo,
		enrollmentRepo: p.EnrollmentRepo,
		feeConfig:      p.FeeConfig,
		ledger:         p.LedgerMetrics,
	}
}

// Aggregate reads without locks. Franchise and batch filters are applied in
// SQL and the global totals are summed there. Enrollments without a fee
// account are listed with zero totals.
func (s *Service) Aggregate(ctx context.Context, req domain.ReportRequest) (report domain.Report, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "report.Aggregate",
		attribute.Bool("filter.franchise", strings.TrimSpace(req.FranchiseID) != ""),
		attribute.Bool("filter.batch", strings.TrimSpace(req.BatchID) != ""),
		attribute.Bool("filter.month", strings.TrimSpace(req.Month) != ""),
	)
	defer func() {
		s.ledger.ObserveOperation(metrics.OperationReport, started, err)
		if err != nil {
			span.RecordError(tracing.SafeError(err))
		}
		span.End()
	}()

	filter, err := parseFilter(req.FranchiseID, req.BatchID, req.Month)
	if err != nil {
		return domain.Report{}, err
	}

	now := s.clock.Now()
	franchises, err := s.enrollmentRepo.ListFranchises(ctx, s.db)
	if err != nil {
		return domain.Report{}, err
	}
	batches, err := s.enrollmentRepo.ListBatchRefs(ctx, s.db, filter.FranchiseID, filter.BatchID)
	if err != nil {
		return domain.Report{}, err
	}
	enrollments, err := s.enrollmentRepo.ListScopes(ctx, s.db, filter.FranchiseID, filter.BatchID)
	if err != nil {
		return domain.Report{}, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, filter.FranchiseID, filter.BatchID)
	if err != nil {
		return domain.Report{}, err
	}
	global, err := s.repo.SumTotals(ctx, s.db, 0, 0, now)
	if err != nil {
		return domain.Report{}, err
	}

	cfg := s.feeConfig.Get()
	report = domain.Aggregate(domain.Dataset{
		Franchises:  franchises,
		Batches:     batches,
		Enrollments: enrollments,
		Lines:       lines,
		Global:      &global,
	}, filter, now, cfg.AgingBuckets)

	obslogger.WithContext(ctx, s.log).Debug("fee report aggregated",
		zap.Int("enrollments", len(enrollments)),
		zap.Int("installments", len(lines)),
		zap.Int("students", len(report.Students)),
		zap.String("month", report.Month),
	)
	return report, nil
}

func (s *Service) Reminders(ctx context.Context, req domain.ReminderRequest) (domain.Reminders, error) {
	filter, err := parseFilter(req.FranchiseID, req.BatchID, "")
	if err != nil {
		return domain.Reminders{}, err
	}

	cfg := s.feeConfig.Get()
	today := clock.Today(s.clock)
	// due_date is stored at midnight, so the horizon day itself is included
	until := clock.AddDays(today, cfg.ReminderWindowDays)
	lines, err := s.repo.ListPendingDueBy(ctx, s.db, filter.FranchiseID, filter.BatchID, until)
	if err != nil {
		return domain.Reminders{}, err
	}
	reminders := domain.BuildReminders(lines, today, cfg.ReminderWindowDays)
	obslogger.WithContext(ctx, s.log).Debug("fee reminders built",
		zap.Int("upcoming", len(reminders.Upcoming)),
		zap.Int("overdue", len(reminders.Overdue)),
	)
	return reminders, nil
}

func parseFilter(franchiseID, batchID, month string) (domain.Filter, error) {
	var filter domain.Filter
	var err error
	if filter.FranchiseID, err = parseOptionalID(franchiseID); err != nil {
		return domain.Filter{}, err
	}
	if filter.BatchID, err = parseOptionalID(batchID); err != nil {
		return domain.Filter{}, err
	}
	if month = strings.TrimSpace(month); month != "" {
		t, err := time.Parse(domain.MonthLayout, month)
		if err != nil {
			return domain.Filter{}, domain.ErrInvalidMonth
		}
		filter.Month = t
	}
	return filter, nil
}

func parseOptionalID(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
