package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

// Receipt is the printable snapshot of one payment. It lives only until its
// token expires or is cleared and is never part of the ledger.
type Receipt struct {
	Token              string         `json:"token"`
	AccountID          snowflake.ID   `json:"account_id"`
	EnrollmentID       snowflake.ID   `json:"enrollment_id"`
	StudentName        string         `json:"student_name"`
	RegistrationNumber string         `json:"registration_number"`
	BatchName          string         `json:"batch_name"`
	FranchiseName      string         `json:"franchise_name"`
	Currency           string         `json:"currency"`
	Amount             money.Money    `json:"amount"`
	Applied            money.Money    `json:"applied"`
	Leftover           money.Money    `json:"leftover"`
	RemainingAmount    money.Money    `json:"remaining_amount"`
	InstallmentIDs     []snowflake.ID `json:"installment_ids"`
	Lines              []Line         `json:"lines"`
	PaymentDate        time.Time      `json:"payment_date"`
	IssuedAt           time.Time      `json:"issued_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
}

// FileName names the rendered document after the student and payment day,
// e.g. "receipt-reg-1-2024-01-10.pdf".
func (r Receipt) FileName() string {
	return slug.Make("receipt "+r.RegistrationNumber+" "+r.PaymentDate.Format("2006-01-02")) + ".pdf"
}

// Line is one installment touched by the payment.
type Line struct {
	InstallmentID snowflake.ID                `json:"installment_id"`
	DueDate       time.Time                   `json:"due_date"`
	Amount        money.Money                 `json:"amount"`
	PayedAmount   money.Money                 `json:"payed_amount"`
	Status        feedomain.InstallmentStatus `json:"status"`
}

type Store interface {
	Put(ctx context.Context, receipt Receipt, ttl time.Duration) error
	// Get returns nil when the token is unknown or expired.
	Get(ctx context.Context, token string) (*Receipt, error)
	Delete(ctx context.Context, token string) error
}

type Renderer interface {
	Render(ctx context.Context, receipt Receipt) ([]byte, error)
}

type Service interface {
	Issue(ctx context.Context, payment feedomain.PaymentResult) (Receipt, error)
	Get(ctx context.Context, token string) (Receipt, error)
	Clear(ctx context.Context, token string) error
	RenderPDF(ctx context.Context, token string) ([]byte, error)
}

var (
	ErrInvalidToken    = errors.New("invalid_receipt_token")
	ErrReceiptNotFound = errors.New("receipt_not_found")
	ErrEmptyPayment    = errors.New("empty_payment")
)
