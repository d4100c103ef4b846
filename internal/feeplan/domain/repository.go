package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPlan(ctx context.Context, db *gorm.DB, plan *FeePlan) error
	UpdatePlan(ctx context.Context, db *gorm.DB, plan *FeePlan) error
	FindPlan(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FeePlan, error)
	FindPlanByBatch(ctx context.Context, db *gorm.DB, batchID snowflake.ID) (*FeePlan, error)
	// LockPlanByBatch reads the plan with a row lock where the dialect
	// supports one.
	LockPlanByBatch(ctx context.Context, db *gorm.DB, batchID snowflake.ID) (*FeePlan, error)

	InsertTemplates(ctx context.Context, db *gorm.DB, templates []FeeTemplate) error
	UpdateTemplate(ctx context.Context, db *gorm.DB, template *FeeTemplate) error
	DeleteTemplates(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
	ListTemplates(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]FeeTemplate, error)
}
