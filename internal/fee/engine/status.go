package engine

import (
	"fmt"
	"time"

	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
)

// IsOverdue reports whether an installment is unpaid past its due date. It
// depends only on status, due date and today.
func IsOverdue(status domain.InstallmentStatus, dueDate, today time.Time) bool {
	return status == domain.StatusPending && clock.Date(dueDate).Before(clock.Date(today))
}

// CanTransition reports whether status may move from one value to another.
// Paid is terminal.
func CanTransition(from, to domain.InstallmentStatus) bool {
	switch from {
	case domain.StatusPending:
		return to == domain.StatusPending || to == domain.StatusPaid
	case domain.StatusPaid:
		return to == domain.StatusPaid
	default:
		return false
	}
}

// NormalizeStatus maps caller input onto a stored status. Overdue is a view
// of pending.
func NormalizeStatus(s domain.InstallmentStatus) (domain.InstallmentStatus, bool) {
	switch s {
	case domain.StatusPending, domain.StatusOverdue:
		return domain.StatusPending, true
	case domain.StatusPaid:
		return domain.StatusPaid, true
	default:
		return "", false
	}
}

// Check validates the stored invariants of one installment.
func Check(inst domain.Installment) error {
	fail := func(format string, args ...any) error {
		return domain.NewLedgerError(domain.ErrInconsistentState, inst.ID, fmt.Sprintf(format, args...))
	}
	if inst.Status != domain.StatusPending && inst.Status != domain.StatusPaid {
		return fail("installment %s has unknown status %q", inst.ID, inst.Status)
	}
	if inst.PayedAmount.IsNegative() {
		return fail("installment %s has negative payed amount %s", inst.ID, inst.PayedAmount)
	}
	if inst.PayedAmount.GreaterThan(inst.Amount) {
		return fail("installment %s payed amount %s exceeds amount %s", inst.ID, inst.PayedAmount, inst.Amount)
	}
	if inst.IsPaid() && (!inst.PayedAmount.IsPositive() || inst.PaymentDate == nil) {
		return fail("installment %s is paid without a payment", inst.ID)
	}
	return nil
}

// CheckAll validates every installment and stops at the first violation.
func CheckAll(installments []domain.Installment) error {
	for _, inst := range installments {
		if err := Check(inst); err != nil {
			return err
		}
	}
	return nil
}
