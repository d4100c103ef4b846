// Package engine holds the pure fee ledger rules. Nothing here touches
// storage or reads the wall clock; callers pass today explicitly.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

// Step is one template of a fee plan in plan order.
type Step struct {
	Amount              money.Money
	RepaymentPeriodDays int
}

// Generate materializes a schedule. Due dates accumulate the repayment
// periods from the registration date. Ids and account are left to the caller.
func Generate(steps []Step, registrationDate time.Time) ([]domain.Installment, error) {
	out := make([]domain.Installment, 0, len(steps))
	cumulative := 0
	for i, step := range steps {
		if !step.Amount.IsPositive() {
			return nil, domain.NewLedgerError(domain.ErrInvalidAmount, 0,
				fmt.Sprintf("installment %d amount must be greater than zero", i+1))
		}
		if step.RepaymentPeriodDays <= 0 {
			return nil, domain.NewLedgerError(domain.ErrInvalidPeriod, 0,
				fmt.Sprintf("installment %d repayment period must be greater than zero", i+1))
		}
		cumulative += step.RepaymentPeriodDays
		out = append(out, domain.Installment{
			DueDate:             clock.AddDays(registrationDate, cumulative),
			Amount:              step.Amount,
			PayedAmount:         money.Zero,
			Status:              domain.StatusPending,
			RepaymentPeriodDays: step.RepaymentPeriodDays,
		})
	}
	return out, nil
}

// RecomputeDueDates reassigns due dates over rows in the order given.
func RecomputeDueDates(rows []domain.Installment, registrationDate time.Time) {
	cumulative := 0
	for i := range rows {
		cumulative += rows[i].RepaymentPeriodDays
		rows[i].DueDate = clock.AddDays(registrationDate, cumulative)
	}
}

// ScheduleEdit is the outcome of EditSchedule. Rows holds every installment
// in creation order; appended rows come last with a zero id.
type ScheduleEdit struct {
	Rows    []domain.Installment
	Changed []snowflake.ID
	Added   int
}

// EditSchedule rewrites amounts and periods of existing rows, appends new
// rows, and recomputes every due date in creation order. Payments already
// recorded are preserved: a row can never drop below its payed amount, and a
// paid row keeps its amount.
func EditSchedule(existing []domain.Installment, rows []domain.ScheduleRow, registrationDate, today time.Time) (ScheduleEdit, error) {
	current := cloneInstallments(existing)
	sort.SliceStable(current, func(i, j int) bool { return current[i].ID < current[j].ID })

	index := make(map[snowflake.ID]int, len(current))
	for i, inst := range current {
		index[inst.ID] = i
	}

	seen := make(map[snowflake.ID]bool, len(rows))
	var added []domain.Installment
	for _, row := range rows {
		if !row.Amount.IsPositive() {
			return ScheduleEdit{}, domain.NewLedgerError(domain.ErrInvalidAmount, row.InstallmentID,
				"installment amount must be greater than zero")
		}
		if row.RepaymentPeriodDays <= 0 {
			return ScheduleEdit{}, domain.NewLedgerError(domain.ErrInvalidPeriod, row.InstallmentID,
				"repayment period must be greater than zero")
		}

		if row.InstallmentID == 0 {
			added = append(added, domain.Installment{
				DueDate:             clock.Date(today),
				Amount:              row.Amount,
				PayedAmount:         money.Zero,
				Status:              domain.StatusPending,
				RepaymentPeriodDays: row.RepaymentPeriodDays,
			})
			continue
		}

		pos, ok := index[row.InstallmentID]
		if !ok {
			return ScheduleEdit{}, domain.NewLedgerError(domain.ErrInstallmentNotFound, row.InstallmentID,
				fmt.Sprintf("installment %s does not belong to this account", row.InstallmentID))
		}
		if seen[row.InstallmentID] {
			return ScheduleEdit{}, domain.NewLedgerError(domain.ErrInvalidID, row.InstallmentID,
				fmt.Sprintf("installment %s is listed more than once", row.InstallmentID))
		}
		seen[row.InstallmentID] = true

		inst := &current[pos]
		if inst.IsPaid() && !row.Amount.Equal(inst.Amount) {
			return ScheduleEdit{}, domain.NewLedgerError(domain.ErrLockedInstallment, inst.ID,
				"Paid installments cannot be changed.")
		}
		if row.Amount.LessThan(inst.PayedAmount) {
			return ScheduleEdit{}, domain.NewLedgerError(domain.ErrInvalidAmount, inst.ID,
				fmt.Sprintf("installment amount %s is below the payed amount %s", row.Amount, inst.PayedAmount))
		}

		inst.Amount = row.Amount
		inst.RepaymentPeriodDays = row.RepaymentPeriodDays
		if !inst.IsPaid() && inst.PayedAmount.IsPositive() && !inst.PayedAmount.LessThan(inst.Amount) {
			inst.Status = domain.StatusPaid
			if inst.PaymentDate == nil {
				d := clock.Date(today)
				inst.PaymentDate = &d
			}
		}
	}

	all := append(current, added...)
	RecomputeDueDates(all, registrationDate)

	var changed []snowflake.ID
	for i, inst := range current {
		if installmentChanged(existingByID(existing, inst.ID), all[i]) {
			changed = append(changed, inst.ID)
		}
	}

	return ScheduleEdit{Rows: all, Changed: changed, Added: len(added)}, nil
}

// SortByDueDate orders installments by due date, then creation order.
func SortByDueDate(installments []domain.Installment) {
	sort.SliceStable(installments, func(i, j int) bool {
		a, b := installments[i], installments[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
}

func cloneInstallments(in []domain.Installment) []domain.Installment {
	out := make([]domain.Installment, len(in))
	copy(out, in)
	for i := range out {
		if out[i].PaymentDate != nil {
			d := *out[i].PaymentDate
			out[i].PaymentDate = &d
		}
	}
	return out
}

func existingByID(in []domain.Installment, id snowflake.ID) domain.Installment {
	for _, inst := range in {
		if inst.ID == id {
			return inst
		}
	}
	return domain.Installment{}
}

func installmentChanged(before, after domain.Installment) bool {
	if !before.DueDate.Equal(after.DueDate) ||
		!before.Amount.Equal(after.Amount) ||
		!before.PayedAmount.Equal(after.PayedAmount) ||
		before.Status != after.Status ||
		before.RepaymentPeriodDays != after.RepaymentPeriodDays {
		return true
	}
	if (before.PaymentDate == nil) != (after.PaymentDate == nil) {
		return true
	}
	return before.PaymentDate != nil && !before.PaymentDate.Equal(*after.PaymentDate)
}
