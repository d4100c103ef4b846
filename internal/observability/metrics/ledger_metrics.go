package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OperationGenerateSchedule = "generate_schedule"
	OperationAllocatePayment  = "allocate_payment"
	OperationManualEdit       = "manual_edit"
	OperationEditSchedule     = "edit_schedule"
	OperationReconcile        = "reconcile"
	OperationReport           = "report"
	OperationReconcileSweep   = "reconcile_sweep"
	OperationReminderDigest   = "reminder_digest"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUnknown              = "unknown"
)

const (
	LockResourceAccount = "student_fee_account"
	LockResourcePlan    = "fee_plan"
)

// coded is satisfied by domain errors that expose a stable machine code.
type coded interface {
	Code() string
}

// LedgerMetrics captures fee engine health signals scraped by Prometheus.
type LedgerMetrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	allocated       prometheus.Counter
	leftover        prometheus.Counter
	dbLockWait      *prometheus.HistogramVec
	reconcileDrifts prometheus.Counter
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// LedgerWithConfig returns the process-wide ledger metrics registered on the
// default Prometheus registerer.
func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = NewLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

// NewLedgerMetrics registers a fresh set of collectors on registerer.
func NewLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "feeledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "feeledger_operations_total",
			Help:        "Fee engine operations by outcome.",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "feeledger_operation_duration_seconds",
			Help:        "Fee engine operation latency including the storage transaction.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"operation"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "feeledger_rejections_total",
			Help:        "Operations rejected before any write, by reason.",
			ConstLabels: constLabels,
		}, []string{"operation", "reason"}),
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "feeledger_allocated_amount_total",
			Help:        "Sum of payment amounts applied to installments.",
			ConstLabels: constLabels,
		}),
		leftover: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "feeledger_leftover_amount_total",
			Help:        "Sum of payment amounts that could not be applied to any installment.",
			ConstLabels: constLabels,
		}),
		dbLockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "feeledger_db_lock_wait_seconds",
			Help:        "Time spent acquiring row locks before a mutation.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			ConstLabels: constLabels,
		}, []string{"resource"}),
		reconcileDrifts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "feeledger_reconcile_drift_total",
			Help:        "Reconciliations that changed a stored remaining amount.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.operations,
		m.duration,
		m.rejections,
		m.allocated,
		m.leftover,
		m.dbLockWait,
		m.reconcileDrifts,
	)
	return m
}

// ObserveOperation records the outcome and latency of one engine call.
func (m *LedgerMetrics) ObserveOperation(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err == nil {
		m.operations.WithLabelValues(operation, "success").Inc()
		return
	}
	m.operations.WithLabelValues(operation, "error").Inc()
	m.rejections.WithLabelValues(operation, ClassifyReason(err)).Inc()
}

func (m *LedgerMetrics) AddAllocated(amount, leftover float64) {
	if m == nil {
		return
	}
	if amount > 0 {
		m.allocated.Add(amount)
	}
	if leftover > 0 {
		m.leftover.Add(leftover)
	}
}

func (m *LedgerMetrics) ObserveLockWait(resource string, wait time.Duration) {
	if m == nil {
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(wait.Seconds())
}

func (m *LedgerMetrics) IncReconcileDrift() {
	if m == nil {
		return
	}
	m.reconcileDrifts.Inc()
}

// ClassifyReason maps an error to a low-cardinality label. Domain errors use
// their own code; storage errors are grouped by SQLSTATE.
func ClassifyReason(err error) string {
	if err == nil {
		return ""
	}
	var c coded
	if errors.As(err, &c) && c.Code() != "" {
		return c.Code()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ReasonUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return ReasonDBLockTimeout
		case "40001", "40P01":
			return ReasonSerializationFailure
		case "23505":
			return ReasonUniqueViolation
		}
	}
	return ReasonUnknown
}
