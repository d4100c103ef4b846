package engine

import (
	"time"

	"github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

// Reconcile derives an account's remaining amount from the plan total, the
// account discount and the payed amounts. It is not clamped, so an
// overpaid account reads negative.
//
// The account discount is copied from the plan when the account is created
// and is edited independently afterwards. Once either discount changes,
// planTotal minus the account discount no longer matches the plan's cached
// RemainingAmount (plan total minus plan discount), and only the account
// value is authoritative for the student.
func Reconcile(planTotal, discount money.Money, installments []domain.Installment) money.Money {
	payed := money.Zero
	for _, inst := range installments {
		payed = payed.Add(inst.PayedAmount)
	}
	return planTotal.Sub(discount).Sub(payed)
}

// Totals is the money summary of a set of installments.
type Totals struct {
	Fees     money.Money `json:"fees"`
	Received money.Money `json:"received"`
	Pending  money.Money `json:"pending"`
	Overdue  money.Money `json:"overdue"`
}

func (t Totals) Add(o Totals) Totals {
	return Totals{
		Fees:     t.Fees.Add(o.Fees),
		Received: t.Received.Add(o.Received),
		Pending:  t.Pending.Add(o.Pending),
		Overdue:  t.Overdue.Add(o.Overdue),
	}
}

// TotalsOf sums one installment into a Totals value.
func TotalsOf(inst domain.Installment, today time.Time) Totals {
	t := Totals{
		Fees:     inst.Amount,
		Received: inst.PayedAmount,
		Pending:  inst.Outstanding(),
		Overdue:  money.Zero,
	}
	if IsOverdue(inst.Status, inst.DueDate, today) {
		t.Overdue = inst.Outstanding()
	}
	return t
}

func Summarize(installments []domain.Installment, today time.Time) Totals {
	total := Totals{Fees: money.Zero, Received: money.Zero, Pending: money.Zero, Overdue: money.Zero}
	for _, inst := range installments {
		total = total.Add(TotalsOf(inst, today))
	}
	return total
}

// Views decorates installments with remaining and overdue for display.
func Views(installments []domain.Installment, today time.Time) []domain.InstallmentView {
	out := make([]domain.InstallmentView, 0, len(installments))
	for _, inst := range installments {
		out = append(out, domain.InstallmentView{
			Installment: inst,
			Remaining:   inst.Outstanding(),
			Overdue:     IsOverdue(inst.Status, inst.DueDate, today),
		})
	}
	return out
}
