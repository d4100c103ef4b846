package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

type codedErr string

func (e codedErr) Error() string { return string(e) }
func (e codedErr) Code() string  { return string(e) }

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "domain", err: codedErr("out_of_order_payment"), want: "out_of_order_payment"},
		{name: "wrapped_domain", err: errors.Join(errors.New("ctx"), codedErr("locked_installment")), want: "locked_installment"},
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "duplicate", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObserveOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{ServiceName: "feeledger", Environment: "test"})

	m.ObserveOperation(OperationAllocatePayment, time.Now(), nil)
	m.ObserveOperation(OperationAllocatePayment, time.Now(), codedErr("invalid_amount"))

	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationAllocatePayment, "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejections.WithLabelValues(OperationAllocatePayment, "invalid_amount")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
}

func TestAddAllocatedIgnoresNonPositive(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{})

	m.AddAllocated(150, 0)
	m.AddAllocated(0, 25)

	if got := testutil.ToFloat64(m.allocated); got != 150 {
		t.Fatalf("expected allocated 150, got %v", got)
	}
	if got := testutil.ToFloat64(m.leftover); got != 25 {
		t.Fatalf("expected leftover 25, got %v", got)
	}
}
