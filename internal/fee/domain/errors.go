package domain

import (
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidPeriod       = errors.New("invalid_repayment_period")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrLockedInstallment   = errors.New("locked_installment")
	ErrOutOfOrderPayment   = errors.New("out_of_order_payment")
	ErrDuplicateSchedule   = errors.New("duplicate_schedule")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrEnrollmentNotFound  = errors.New("enrollment_not_found")
	ErrPlanNotFound        = errors.New("fee_plan_not_found")
	ErrInstallmentNotFound = errors.New("installment_not_found")
	ErrInconsistentState   = errors.New("inconsistent_state")
	ErrOverpayment         = errors.New("overpayment")
	ErrAccountBusy         = errors.New("account_busy")
)

// LedgerError is the typed failure returned by every fee engine operation.
// It unwraps to one of the sentinels above.
type LedgerError struct {
	Err           error
	InstallmentID snowflake.ID
	Message       string
}

func NewLedgerError(err error, installmentID snowflake.ID, message string) *LedgerError {
	return &LedgerError{Err: err, InstallmentID: installmentID, Message: message}
}

func (e *LedgerError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Code is the stable machine code of the failure.
func (e *LedgerError) Code() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Fail wraps err unless it already is a LedgerError.
func Fail(err error, message string) error {
	var le *LedgerError
	if errors.As(err, &le) {
		return err
	}
	return NewLedgerError(err, 0, message)
}
