package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, tx *gorm.DB, account *domain.StudentFeeAccount) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO student_fee_accounts (id, enrollment_id, plan_id, discount, remaining_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.EnrollmentID,
		account.PlanID,
		account.Discount,
		account.RemainingAmount,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) UpdateAccount(ctx context.Context, tx *gorm.DB, account *domain.StudentFeeAccount) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE student_fee_accounts SET discount = ?, remaining_amount = ?, updated_at = ? WHERE id = ?`,
		account.Discount,
		account.RemainingAmount,
		account.UpdatedAt,
		account.ID,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.StudentFeeAccount, error) {
	return r.findAccount(tx.WithContext(ctx), "id = ?", id)
}

func (r *repo) FindAccountByEnrollment(ctx context.Context, tx *gorm.DB, enrollmentID snowflake.ID) (*domain.StudentFeeAccount, error) {
	return r.findAccount(tx.WithContext(ctx), "enrollment_id = ?", enrollmentID)
}

func (r *repo) LockAccount(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.StudentFeeAccount, error) {
	return r.findAccount(db.ForUpdate(tx.WithContext(ctx)), "id = ?", id)
}

func (r *repo) findAccount(tx *gorm.DB, where string, id snowflake.ID) (*domain.StudentFeeAccount, error) {
	var account domain.StudentFeeAccount
	err := tx.Model(&domain.StudentFeeAccount{}).
		Where(where, id).
		Limit(1).
		Find(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) ListAccountIDsAfter(ctx context.Context, tx *gorm.DB, after snowflake.ID, limit int) ([]snowflake.ID, error) {
	var accounts []domain.StudentFeeAccount
	err := tx.WithContext(ctx).
		Model(&domain.StudentFeeAccount{}).
		Select("id").
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	return ids, nil
}

func (r *repo) InsertInstallments(ctx context.Context, tx *gorm.DB, installments []domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&installments).Error
}

func (r *repo) UpdateInstallment(ctx context.Context, tx *gorm.DB, inst *domain.Installment) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE installments
		 SET due_date = ?, amount = ?, payed_amount = ?, status = ?, payment_date = ?, repayment_period_days = ?, updated_at = ?
		 WHERE id = ? AND account_id = ?`,
		inst.DueDate,
		inst.Amount,
		inst.PayedAmount,
		inst.Status,
		inst.PaymentDate,
		inst.RepaymentPeriodDays,
		inst.UpdatedAt,
		inst.ID,
		inst.AccountID,
	).Error
}

func (r *repo) ListInstallments(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) ([]domain.Installment, error) {
	var installments []domain.Installment
	err := tx.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("account_id = ?", accountID).
		Order("due_date asc, id asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}
