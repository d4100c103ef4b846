package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registered = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	today      = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
)

func day(n int) time.Time {
	return registered.AddDate(0, 0, n)
}

func pending(id int64, due time.Time, amount, payed string) domain.Installment {
	return domain.Installment{
		ID:                  snowflake.ID(id),
		DueDate:             due,
		Amount:              money.MustParse(amount),
		PayedAmount:         money.MustParse(payed),
		Status:              domain.StatusPending,
		RepaymentPeriodDays: 30,
	}
}

func paid(id int64, due time.Time, amount string) domain.Installment {
	d := due
	inst := pending(id, due, amount, amount)
	inst.Status = domain.StatusPaid
	inst.PaymentDate = &d
	return inst
}

func requireLedgerError(t *testing.T, err error, sentinel error) *domain.LedgerError {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	var le *domain.LedgerError
	require.True(t, errors.As(err, &le))
	assert.NotEmpty(t, le.Message)
	return le
}

func TestGenerateCumulativeDueDates(t *testing.T) {
	steps := []Step{
		{Amount: money.FromInt(1000), RepaymentPeriodDays: 30},
		{Amount: money.FromInt(500), RepaymentPeriodDays: 15},
		{Amount: money.FromInt(250), RepaymentPeriodDays: 45},
	}
	rows, err := Generate(steps, registered.Add(13*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	wantDays := []int{30, 45, 90}
	for i, row := range rows {
		assert.Equal(t, day(wantDays[i]), row.DueDate)
		assert.True(t, row.Amount.Equal(steps[i].Amount))
		assert.True(t, row.PayedAmount.IsZero())
		assert.Equal(t, domain.StatusPending, row.Status)
		assert.Nil(t, row.PaymentDate)
		if i > 0 {
			assert.False(t, row.DueDate.Before(rows[i-1].DueDate))
		}
	}
}

func TestGenerateEmptyAndInvalid(t *testing.T) {
	rows, err := Generate(nil, registered)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = Generate([]Step{{Amount: money.Zero, RepaymentPeriodDays: 30}}, registered)
	requireLedgerError(t, err, domain.ErrInvalidAmount)

	_, err = Generate([]Step{{Amount: money.FromInt(10), RepaymentPeriodDays: 0}}, registered)
	requireLedgerError(t, err, domain.ErrInvalidPeriod)
}

func TestAllocateWaterfall(t *testing.T) {
	rows := []domain.Installment{
		pending(2, day(5), "100", "0"),
		pending(1, day(1), "100", "0"),
	}
	got, err := Allocate(rows, money.FromInt(150), today)
	require.NoError(t, err)

	require.Len(t, got.Installments, 2)
	first, second := got.Installments[0], got.Installments[1]
	assert.Equal(t, snowflake.ID(1), first.ID)
	assert.Equal(t, "100.00", first.PayedAmount.String())
	assert.Equal(t, domain.StatusPaid, first.Status)
	require.NotNil(t, first.PaymentDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *first.PaymentDate)

	assert.Equal(t, "50.00", second.PayedAmount.String())
	assert.Equal(t, domain.StatusPending, second.Status)
	assert.Nil(t, second.PaymentDate)

	assert.True(t, got.Leftover.IsZero())
	assert.Equal(t, "150.00", got.Applied.String())
	assert.Equal(t, []snowflake.ID{1, 2}, got.Touched)

	// input untouched
	assert.True(t, rows[0].PayedAmount.IsZero())
	assert.True(t, rows[1].PayedAmount.IsZero())
}

func TestAllocateSkipsPaidAndReturnsLeftover(t *testing.T) {
	rows := []domain.Installment{
		paid(1, day(1), "100"),
		pending(2, day(5), "100", "40"),
	}
	got, err := Allocate(rows, money.FromInt(100), today)
	require.NoError(t, err)

	assert.Equal(t, []snowflake.ID{2}, got.Touched)
	assert.Equal(t, "100.00", got.Installments[1].PayedAmount.String())
	assert.Equal(t, domain.StatusPaid, got.Installments[1].Status)
	assert.Equal(t, "40.00", got.Leftover.String())
	assert.Equal(t, "60.00", got.Applied.String())
	for _, inst := range got.Installments {
		assert.False(t, inst.PayedAmount.GreaterThan(inst.Amount))
	}
}

func TestAllocateRejectsNonPositive(t *testing.T) {
	rows := []domain.Installment{pending(1, day(1), "100", "0")}
	for _, amount := range []string{"0", "-5"} {
		_, err := Allocate(rows, money.MustParse(amount), today)
		requireLedgerError(t, err, domain.ErrInvalidAmount)
	}
	assert.True(t, rows[0].PayedAmount.IsZero())
}

func TestAllocateDetectsInconsistentState(t *testing.T) {
	rows := []domain.Installment{pending(1, day(1), "100", "120")}
	_, err := Allocate(rows, money.FromInt(10), today)
	requireLedgerError(t, err, domain.ErrInconsistentState)
}

func TestAllocateKeepsPendingInvariant(t *testing.T) {
	rows := []domain.Installment{
		pending(1, day(1), "100", "0"),
		pending(2, day(31), "250.50", "0"),
		pending(3, day(61), "75.25", "0"),
	}
	for _, amount := range []string{"30", "99.99", "0.01", "120", "500"} {
		got, err := Allocate(rows, money.MustParse(amount), today)
		require.NoError(t, err)
		rows = got.Installments

		totals := Summarize(rows, today)
		assert.True(t, totals.Fees.Sub(totals.Received).Equal(totals.Pending))
		assert.False(t, totals.Pending.IsNegative())
	}
	assert.True(t, Summarize(rows, today).Pending.IsZero())
}

func TestApplyStatusEditsOutOfOrder(t *testing.T) {
	rows := []domain.Installment{
		pending(1, day(1), "100", "0"),
		pending(2, day(31), "100", "0"),
	}
	_, err := ApplyStatusEdits(rows, []domain.StatusEdit{
		{InstallmentID: 2, Status: domain.StatusPaid, PayedAmount: money.FromInt(100)},
	}, today)
	le := requireLedgerError(t, err, domain.ErrOutOfOrderPayment)
	assert.Equal(t, snowflake.ID(2), le.InstallmentID)
	assert.Equal(t, domain.StatusPending, rows[0].Status)
	assert.Equal(t, domain.StatusPending, rows[1].Status)
}

func TestApplyStatusEditsOutOfOrderExplainsFullyPaidPending(t *testing.T) {
	rows := []domain.Installment{
		pending(1, day(1), "100", "0"),
		pending(2, day(31), "100", "0"),
	}
	_, err := ApplyStatusEdits(rows, []domain.StatusEdit{
		{InstallmentID: 2, Status: domain.StatusPending, PayedAmount: money.FromInt(100)},
	}, today)
	le := requireLedgerError(t, err, domain.ErrOutOfOrderPayment)
	assert.Equal(t, snowflake.ID(2), le.InstallmentID)
	assert.Contains(t, le.Message, "fully paid")
	assert.Contains(t, le.Message, "in order")
}

func TestApplyStatusEditsLockedRegardlessOfStatus(t *testing.T) {
	rows := []domain.Installment{
		paid(1, day(1), "100"),
		pending(2, day(31), "100", "0"),
	}
	for _, status := range []domain.InstallmentStatus{domain.StatusPending, domain.StatusPaid, domain.StatusOverdue} {
		_, err := ApplyStatusEdits(rows, []domain.StatusEdit{
			{InstallmentID: 1, Status: status, PayedAmount: money.FromInt(100)},
		}, today)
		requireLedgerError(t, err, domain.ErrLockedInstallment)
	}
	assert.Equal(t, domain.StatusPaid, rows[0].Status)
}

func TestApplyStatusEditsInOrderWithinSubmission(t *testing.T) {
	rows := []domain.Installment{
		pending(1, day(1), "100", "0"),
		pending(2, day(31), "100", "0"),
		pending(3, day(61), "100", "0"),
	}
	got, err := ApplyStatusEdits(rows, []domain.StatusEdit{
		{InstallmentID: 2, Status: domain.StatusPaid, PayedAmount: money.FromInt(100)},
		{InstallmentID: 1, Status: domain.StatusPaid, PayedAmount: money.FromInt(100)},
		{InstallmentID: 3, Status: domain.StatusOverdue, PayedAmount: money.FromInt(20)},
	}, today)
	require.NoError(t, err)

	assert.Equal(t, []snowflake.ID{1, 2, 3}, got.Changed)
	assert.Equal(t, domain.StatusPaid, got.Installments[0].Status)
	assert.Equal(t, domain.StatusPaid, got.Installments[1].Status)
	require.NotNil(t, got.Installments[1].PaymentDate)
	assert.Equal(t, domain.StatusPending, got.Installments[2].Status)
	assert.Equal(t, "20.00", got.Installments[2].PayedAmount.String())
	assert.Nil(t, got.Installments[2].PaymentDate)
}

func TestApplyStatusEditsAmountRules(t *testing.T) {
	rows := []domain.Installment{pending(1, day(1), "100", "0")}

	cases := []struct {
		name     string
		edit     domain.StatusEdit
		sentinel error
	}{
		{"negative", domain.StatusEdit{InstallmentID: 1, Status: domain.StatusPending, PayedAmount: money.FromInt(-1)}, domain.ErrInvalidAmount},
		{"paid with zero", domain.StatusEdit{InstallmentID: 1, Status: domain.StatusPaid, PayedAmount: money.Zero}, domain.ErrInvalidAmount},
		{"above amount", domain.StatusEdit{InstallmentID: 1, Status: domain.StatusPending, PayedAmount: money.FromInt(101)}, domain.ErrInvalidAmount},
		{"bad status", domain.StatusEdit{InstallmentID: 1, Status: "waived", PayedAmount: money.Zero}, domain.ErrInvalidStatus},
		{"unknown row", domain.StatusEdit{InstallmentID: 9, Status: domain.StatusPending, PayedAmount: money.Zero}, domain.ErrInstallmentNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyStatusEdits(rows, []domain.StatusEdit{tc.edit}, today)
			requireLedgerError(t, err, tc.sentinel)
		})
	}
}

func TestApplyStatusEditsPromotesFullPayment(t *testing.T) {
	rows := []domain.Installment{pending(1, day(1), "100", "0")}
	got, err := ApplyStatusEdits(rows, []domain.StatusEdit{
		{InstallmentID: 1, Status: domain.StatusPending, PayedAmount: money.FromInt(100)},
	}, today)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Installments[0].Status)
	assert.NotNil(t, got.Installments[0].PaymentDate)
}

func TestReconcileIdempotent(t *testing.T) {
	rows := []domain.Installment{
		paid(1, day(1), "100"),
		pending(2, day(31), "100", "30"),
	}
	first := Reconcile(money.FromInt(200), money.FromInt(20), rows)
	second := Reconcile(money.FromInt(200), money.FromInt(20), rows)
	assert.Equal(t, "50.00", first.String())
	assert.True(t, first.Equal(second))
}

func TestIsOverdueDependsOnlyOnStatusAndDate(t *testing.T) {
	past := day(10)
	assert.True(t, IsOverdue(domain.StatusPending, past, today))
	assert.False(t, IsOverdue(domain.StatusPaid, past, today))
	assert.False(t, IsOverdue(domain.StatusPending, today, today.Add(5*time.Hour)))
	assert.False(t, IsOverdue(domain.StatusPending, today.AddDate(0, 0, 1), today))

	partial := pending(1, past, "100", "60")
	totals := TotalsOf(partial, today)
	assert.Equal(t, "40.00", totals.Overdue.String())

	full := paid(2, past, "100")
	assert.True(t, TotalsOf(full, today).Overdue.IsZero())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(domain.StatusPending, domain.StatusPaid))
	assert.True(t, CanTransition(domain.StatusPending, domain.StatusPending))
	assert.False(t, CanTransition(domain.StatusPaid, domain.StatusPending))
	assert.True(t, CanTransition(domain.StatusPaid, domain.StatusPaid))
}

func TestEditSchedulePreservesPayments(t *testing.T) {
	rows := []domain.Installment{
		paid(1, day(30), "100"),
		pending(2, day(60), "100", "40"),
		pending(3, day(90), "100", "0"),
	}

	got, err := EditSchedule(rows, []domain.ScheduleRow{
		{InstallmentID: 1, Amount: money.FromInt(100), RepaymentPeriodDays: 10},
		{InstallmentID: 2, Amount: money.FromInt(40), RepaymentPeriodDays: 20},
		{Amount: money.FromInt(75), RepaymentPeriodDays: 5},
	}, registered, today)
	require.NoError(t, err)

	require.Len(t, got.Rows, 4)
	assert.Equal(t, 1, got.Added)
	assert.Equal(t, day(10), got.Rows[0].DueDate)
	assert.Equal(t, day(30), got.Rows[1].DueDate)
	assert.Equal(t, domain.StatusPaid, got.Rows[1].Status)
	require.NotNil(t, got.Rows[1].PaymentDate)
	assert.Equal(t, day(60), got.Rows[2].DueDate)
	assert.Equal(t, day(65), got.Rows[3].DueDate)
	assert.Equal(t, snowflake.ID(0), got.Rows[3].ID)
	assert.ElementsMatch(t, []snowflake.ID{1, 2, 3}, got.Changed)
}

func TestEditScheduleRejections(t *testing.T) {
	rows := []domain.Installment{
		paid(1, day(30), "100"),
		pending(2, day(60), "100", "40"),
	}

	_, err := EditSchedule(rows, []domain.ScheduleRow{
		{InstallmentID: 1, Amount: money.FromInt(90), RepaymentPeriodDays: 30},
	}, registered, today)
	requireLedgerError(t, err, domain.ErrLockedInstallment)

	_, err = EditSchedule(rows, []domain.ScheduleRow{
		{InstallmentID: 2, Amount: money.FromInt(30), RepaymentPeriodDays: 30},
	}, registered, today)
	requireLedgerError(t, err, domain.ErrInvalidAmount)

	_, err = EditSchedule(rows, []domain.ScheduleRow{
		{InstallmentID: 7, Amount: money.FromInt(30), RepaymentPeriodDays: 30},
	}, registered, today)
	requireLedgerError(t, err, domain.ErrInstallmentNotFound)

	_, err = EditSchedule(rows, []domain.ScheduleRow{
		{InstallmentID: 2, Amount: money.FromInt(100), RepaymentPeriodDays: -1},
	}, registered, today)
	requireLedgerError(t, err, domain.ErrInvalidPeriod)
}
