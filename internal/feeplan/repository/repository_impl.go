package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"github.com/smallbiznis/feeledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPlan(ctx context.Context, tx *gorm.DB, plan *domain.FeePlan) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO fee_plans (id, batch_id, discount, total_amount, remaining_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.BatchID,
		plan.Discount,
		plan.TotalAmount,
		plan.RemainingAmount,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) UpdatePlan(ctx context.Context, tx *gorm.DB, plan *domain.FeePlan) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE fee_plans SET discount = ?, total_amount = ?, remaining_amount = ?, updated_at = ? WHERE id = ?`,
		plan.Discount,
		plan.TotalAmount,
		plan.RemainingAmount,
		plan.UpdatedAt,
		plan.ID,
	).Error
}

func (r *repo) FindPlan(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.FeePlan, error) {
	return r.findPlan(tx.WithContext(ctx), "id = ?", id)
}

func (r *repo) FindPlanByBatch(ctx context.Context, tx *gorm.DB, batchID snowflake.ID) (*domain.FeePlan, error) {
	return r.findPlan(tx.WithContext(ctx), "batch_id = ?", batchID)
}

func (r *repo) LockPlanByBatch(ctx context.Context, tx *gorm.DB, batchID snowflake.ID) (*domain.FeePlan, error) {
	return r.findPlan(db.ForUpdate(tx.WithContext(ctx)), "batch_id = ?", batchID)
}

func (r *repo) findPlan(tx *gorm.DB, where string, id snowflake.ID) (*domain.FeePlan, error) {
	var plan domain.FeePlan
	err := tx.Model(&domain.FeePlan{}).
		Where(where, id).
		Limit(1).
		Find(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) InsertTemplates(ctx context.Context, tx *gorm.DB, templates []domain.FeeTemplate) error {
	if len(templates) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&templates).Error
}

func (r *repo) UpdateTemplate(ctx context.Context, tx *gorm.DB, template *domain.FeeTemplate) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE fee_templates SET amount = ?, repayment_period_days = ?, updated_at = ? WHERE id = ?`,
		template.Amount,
		template.RepaymentPeriodDays,
		template.UpdatedAt,
		template.ID,
	).Error
}

func (r *repo) DeleteTemplates(ctx context.Context, tx *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(`DELETE FROM fee_templates WHERE id IN ?`, ids).Error
}

func (r *repo) ListTemplates(ctx context.Context, tx *gorm.DB, planID snowflake.ID) ([]domain.FeeTemplate, error) {
	var templates []domain.FeeTemplate
	err := tx.WithContext(ctx).
		Model(&domain.FeeTemplate{}).
		Where("plan_id = ?", planID).
		Order("id asc").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}
