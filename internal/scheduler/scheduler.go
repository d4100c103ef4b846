package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	obsmetrics "github.com/smallbiznis/feeledger/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/feeledger/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobReconcileSweep = "reconcile_sweep"
	JobReminderDigest = "reminder_digest"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	FeeRepo       feedomain.Repository
	FeeSvc        feedomain.Service
	ReportSvc     reportdomain.Service
	LedgerMetrics *obsmetrics.LedgerMetrics `optional:"true"`
	Config        Config                    `optional:"true"`
}

// Scheduler runs the periodic fee ledger jobs. Every job is safe to re-run:
// reconciliation is idempotent and the reminder digest only reads.
type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	feeRepo   feedomain.Repository
	feeSvc    feedomain.Service
	reportSvc reportdomain.Service
	ledger    *obsmetrics.LedgerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.FeeRepo == nil || p.FeeSvc == nil || p.ReportSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		feeRepo:   p.FeeRepo,
		feeSvc:    p.FeeSvc,
		reportSvc: p.ReportSvc,
		ledger:    p.LedgerMetrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	err := fn(ctx)
	s.ledger.ObserveOperation(name, start, err)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A timed out sweep resumes from the start on the next tick.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobReconcileSweep, s.ReconcileSweepJob},
		{JobReminderDigest, s.ReminderDigestJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ReconcileSweepJob recomputes the remaining amount of every account. Accounts
// held by a concurrent mutation are skipped until the next run.
func (s *Scheduler) ReconcileSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReconcileSweep, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	var (
		cursor snowflake.ID
		jobErr error
	)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ids, err := s.feeRepo.ListAccountIDsAfter(ctx, s.db, cursor, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if _, err := s.feeSvc.ReconcileBalance(ctx, id.String()); err != nil {
				if errors.Is(err, feedomain.ErrAccountBusy) {
					run.IncSkipped()
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				run.IncError()
				jobErr = errors.Join(jobErr, err)
				s.logger(ctx).Warn("scheduler.reconcile.failed",
					zap.String("account_id", id.String()),
					zap.Error(err),
				)
				continue
			}
			run.AddProcessed(1)
		}
		cursor = ids[len(ids)-1]
	}

	return jobErr
}

// ReminderDigestJob logs the day's upcoming and overdue installment counts.
func (s *Scheduler) ReminderDigestJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReminderDigest, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	reminders, err := s.reportSvc.Reminders(ctx, reportdomain.ReminderRequest{})
	if err != nil {
		return err
	}
	run.AddProcessed(len(reminders.Upcoming) + len(reminders.Overdue))

	s.logger(ctx).Info("scheduler.reminders.digest",
		zap.Time("today", reminders.Today),
		zap.Int("window_days", reminders.WindowDays),
		zap.Int("upcoming", len(reminders.Upcoming)),
		zap.Int("overdue", len(reminders.Overdue)),
	)
	return nil
}
