package engine

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

type Allocation struct {
	// Installments is the full updated set in due-date order.
	Installments []domain.Installment
	Touched      []snowflake.ID
	Applied      money.Money
	Leftover     money.Money
}

// Allocate applies amount oldest-debt-first. Each unpaid installment is
// filled completely before the next one receives anything. The input slice
// is not modified.
func Allocate(installments []domain.Installment, amount money.Money, today time.Time) (Allocation, error) {
	if !amount.IsPositive() {
		return Allocation{}, domain.NewLedgerError(domain.ErrInvalidAmount, 0,
			"Payment amount must be greater than zero.")
	}
	if err := CheckAll(installments); err != nil {
		return Allocation{}, err
	}

	rows := cloneInstallments(installments)
	SortByDueDate(rows)

	remaining := amount
	var touched []snowflake.ID
	for i := range rows {
		if !remaining.IsPositive() {
			break
		}
		inst := &rows[i]
		if inst.IsPaid() {
			continue
		}
		due := inst.Outstanding()
		if !due.IsPositive() {
			continue
		}

		add := money.Min(remaining, due)
		inst.PayedAmount = inst.PayedAmount.Add(add)
		remaining = remaining.Sub(add)
		touched = append(touched, inst.ID)

		if !inst.PayedAmount.LessThan(inst.Amount) {
			inst.Status = domain.StatusPaid
			if inst.PaymentDate == nil {
				d := clock.Date(today)
				inst.PaymentDate = &d
			}
		}
	}

	return Allocation{
		Installments: rows,
		Touched:      touched,
		Applied:      amount.Sub(remaining),
		Leftover:     remaining,
	}, nil
}
