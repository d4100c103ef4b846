package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/pkg/money"
)

// StatusEdit is one row of the administrative status grid.
type StatusEdit struct {
	InstallmentID snowflake.ID      `json:"installment_id"`
	Status        InstallmentStatus `json:"status"`
	PayedAmount   money.Money       `json:"payed_amount"`
}

// ScheduleRow rewrites one installment. A zero InstallmentID appends a new row.
type ScheduleRow struct {
	InstallmentID       snowflake.ID `json:"installment_id,omitempty"`
	Amount              money.Money  `json:"amount"`
	RepaymentPeriodDays int          `json:"repayment_period_days"`
}

type AllocatePaymentRequest struct {
	AccountID string      `json:"account_id"`
	Amount    money.Money `json:"amount"`
	// RejectLeftover fails the payment instead of returning an unapplied
	// remainder.
	RejectLeftover bool `json:"reject_leftover"`
}

type PaymentResult struct {
	Account        Account        `json:"account"`
	Amount         money.Money    `json:"amount"`
	Applied        money.Money    `json:"applied"`
	Leftover       money.Money    `json:"leftover"`
	InstallmentIDs []snowflake.ID `json:"installment_ids"`
	PaymentDate    time.Time      `json:"payment_date"`
}

type StatusEditsRequest struct {
	AccountID string       `json:"account_id"`
	Edits     []StatusEdit `json:"edits"`
}

type EditScheduleRequest struct {
	AccountID string        `json:"account_id"`
	Rows      []ScheduleRow `json:"rows"`
}

type EditScheduleResult struct {
	Account Account `json:"account"`
	// UnscheduledAmount is the part of the discounted plan total not yet
	// covered by installments. Negative when the schedule exceeds it.
	UnscheduledAmount money.Money `json:"unscheduled_amount"`
}

type UpdateDiscountRequest struct {
	AccountID string      `json:"account_id"`
	Discount  money.Money `json:"discount"`
}

type Service interface {
	// EnsureAccount returns the enrollment's account, creating it from the
	// batch plan and generating its schedule on first access.
	EnsureAccount(ctx context.Context, enrollmentID string) (Account, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	GenerateSchedule(ctx context.Context, accountID string) (Account, error)
	AllocatePayment(context.Context, AllocatePaymentRequest) (PaymentResult, error)
	ApplyManualStatusEdits(context.Context, StatusEditsRequest) (Account, error)
	ReconcileBalance(ctx context.Context, accountID string) (Account, error)
	EditSchedule(context.Context, EditScheduleRequest) (EditScheduleResult, error)
	UpdateAccountDiscount(context.Context, UpdateDiscountRequest) (Account, error)
	Statement(ctx context.Context, enrollmentID string) (Statement, error)
}
