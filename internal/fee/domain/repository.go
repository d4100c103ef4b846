package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *StudentFeeAccount) error
	UpdateAccount(ctx context.Context, db *gorm.DB, account *StudentFeeAccount) error
	FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*StudentFeeAccount, error)
	FindAccountByEnrollment(ctx context.Context, db *gorm.DB, enrollmentID snowflake.ID) (*StudentFeeAccount, error)
	// LockAccount reads the account with a row lock held until the
	// transaction ends.
	LockAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*StudentFeeAccount, error)
	// ListAccountIDsAfter pages through every account in id order.
	ListAccountIDsAfter(ctx context.Context, db *gorm.DB, after snowflake.ID, limit int) ([]snowflake.ID, error)

	InsertInstallments(ctx context.Context, db *gorm.DB, installments []Installment) error
	UpdateInstallment(ctx context.Context, db *gorm.DB, installment *Installment) error
	// ListInstallments returns the account's rows ordered by due date.
	ListInstallments(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Installment, error)
}
