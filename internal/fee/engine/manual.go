package engine

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
)

type StatusEditResult struct {
	// Installments is the full updated set in due-date order.
	Installments []domain.Installment
	Changed      []snowflake.ID
}

// ApplyStatusEdits validates the whole grid before changing anything and
// returns either a fully applied copy or the first violation in due-date
// order. Rows not named in edits keep their state.
func ApplyStatusEdits(installments []domain.Installment, edits []domain.StatusEdit, today time.Time) (StatusEditResult, error) {
	if err := CheckAll(installments); err != nil {
		return StatusEditResult{}, err
	}

	rows := cloneInstallments(installments)
	SortByDueDate(rows)

	known := make(map[snowflake.ID]bool, len(rows))
	for _, inst := range rows {
		known[inst.ID] = true
	}
	byID := make(map[snowflake.ID]domain.StatusEdit, len(edits))
	for _, e := range edits {
		if !known[e.InstallmentID] {
			return StatusEditResult{}, domain.NewLedgerError(domain.ErrInstallmentNotFound, e.InstallmentID,
				fmt.Sprintf("installment %s does not belong to this account", e.InstallmentID))
		}
		if _, dup := byID[e.InstallmentID]; dup {
			return StatusEditResult{}, domain.NewLedgerError(domain.ErrInvalidID, e.InstallmentID,
				fmt.Sprintf("installment %s is listed more than once", e.InstallmentID))
		}
		byID[e.InstallmentID] = e
	}

	paymentDate := clock.Date(today)
	earlierPaid := true
	var changed []snowflake.ID
	for i := range rows {
		inst := &rows[i]
		edit, ok := byID[inst.ID]
		if !ok {
			earlierPaid = earlierPaid && inst.IsPaid()
			continue
		}

		status, valid := NormalizeStatus(edit.Status)
		if !valid {
			return StatusEditResult{}, domain.NewLedgerError(domain.ErrInvalidStatus, inst.ID, "Invalid status value.")
		}
		if edit.PayedAmount.IsNegative() {
			return StatusEditResult{}, domain.NewLedgerError(domain.ErrInvalidAmount, inst.ID,
				"Payed amount must be greater than or equal to 0.")
		}
		if inst.IsPaid() {
			return StatusEditResult{}, domain.NewLedgerError(domain.ErrLockedInstallment, inst.ID,
				"Paid installments cannot be changed.")
		}
		if edit.PayedAmount.GreaterThan(inst.Amount) {
			return StatusEditResult{}, domain.NewLedgerError(domain.ErrInvalidAmount, inst.ID,
				"Payed amount cannot exceed the installment amount.")
		}
		promoted := false
		if status == domain.StatusPending && edit.PayedAmount.Equal(inst.Amount) {
			status = domain.StatusPaid
			promoted = true
		}
		if status == domain.StatusPaid {
			if !edit.PayedAmount.IsPositive() {
				return StatusEditResult{}, domain.NewLedgerError(domain.ErrInvalidAmount, inst.ID,
					"Payed amount must be greater than zero to mark as paid.")
			}
			if !earlierPaid {
				msg := "Payments must be marked in order."
				if promoted {
					msg = "Installment was submitted as pending but is fully paid, so it counts as paid. " + msg
				}
				return StatusEditResult{}, domain.NewLedgerError(domain.ErrOutOfOrderPayment, inst.ID, msg)
			}
		}

		before := *inst
		inst.Status = status
		inst.PayedAmount = edit.PayedAmount
		if status == domain.StatusPaid {
			if inst.PaymentDate == nil {
				d := paymentDate
				inst.PaymentDate = &d
			}
		} else {
			inst.PaymentDate = nil
		}
		if installmentChanged(before, *inst) {
			changed = append(changed, inst.ID)
		}
		earlierPaid = earlierPaid && inst.IsPaid()
	}

	return StatusEditResult{Installments: rows, Changed: changed}, nil
}
