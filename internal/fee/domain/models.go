package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/pkg/money"
)

type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "pending"
	StatusPaid    InstallmentStatus = "paid"
	// StatusOverdue is never stored. It is accepted as input and read back
	// as a derived flag.
	StatusOverdue InstallmentStatus = "overdue"
)

// StudentFeeAccount binds one enrollment to its batch fee plan.
// RemainingAmount is a cached projection rebuilt by reconciliation.
type StudentFeeAccount struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	EnrollmentID    snowflake.ID `gorm:"not null;uniqueIndex" json:"enrollment_id"`
	PlanID          snowflake.ID `gorm:"not null;index" json:"plan_id"`
	Discount        money.Money  `gorm:"not null" json:"discount"`
	RemainingAmount money.Money  `gorm:"not null" json:"remaining_amount"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}

type Installment struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID           snowflake.ID      `gorm:"not null;index:ix_installments_account_due" json:"account_id"`
	DueDate             time.Time         `gorm:"not null;index:ix_installments_account_due" json:"due_date"`
	Amount              money.Money       `gorm:"not null" json:"amount"`
	PayedAmount         money.Money       `gorm:"not null" json:"payed_amount"`
	Status              InstallmentStatus `gorm:"type:varchar(16);not null" json:"status"`
	PaymentDate         *time.Time        `json:"payment_date,omitempty"`
	RepaymentPeriodDays int               `gorm:"not null" json:"repayment_period_days"`
	CreatedAt           time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null" json:"updated_at"`
}

// Outstanding is the unpaid part of the installment.
func (i Installment) Outstanding() money.Money {
	return i.Amount.Sub(i.PayedAmount)
}

func (i Installment) IsPaid() bool {
	return i.Status == StatusPaid
}

// InstallmentView is an installment as shown to callers.
type InstallmentView struct {
	Installment
	Remaining money.Money `json:"remaining"`
	Overdue   bool        `json:"overdue"`
}

// Account is a fee account with its schedule ordered by due date.
type Account struct {
	StudentFeeAccount
	PlanTotal    money.Money       `json:"plan_total"`
	Installments []InstallmentView `json:"installments"`
}

// Statement is the printable summary of one enrollment's fees.
type Statement struct {
	AccountID       snowflake.ID      `json:"account_id"`
	EnrollmentID    snowflake.ID      `json:"enrollment_id"`
	TotalAmount     money.Money       `json:"total_amount"`
	TotalPaid       money.Money       `json:"total_paid"`
	TotalPending    money.Money       `json:"total_pending"`
	TotalOverdue    money.Money       `json:"total_overdue"`
	Discount        money.Money       `json:"discount"`
	RemainingAmount money.Money       `json:"remaining_amount"`
	LastPaymentDate *time.Time        `json:"last_payment_date,omitempty"`
	Installments    []InstallmentView `json:"installments"`
}
