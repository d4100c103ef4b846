package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/feeledger/pkg/money"
)

type SavePlanRequest struct {
	BatchID   string          `json:"batch_id"`
	Discount  money.Money     `json:"discount"`
	Templates []TemplateInput `json:"templates"`
}

type UpdateDiscountRequest struct {
	BatchID  string      `json:"batch_id"`
	Discount money.Money `json:"discount"`
}

type ReplaceTemplatesRequest struct {
	BatchID   string          `json:"batch_id"`
	Templates []TemplateInput `json:"templates"`
}

type ReplaceResult struct {
	Plan      Plan `json:"plan"`
	Updated   int  `json:"updated"`
	Inserted  int  `json:"inserted"`
	Deleted   int  `json:"deleted"`
	Unchanged int  `json:"unchanged"`
}

type Service interface {
	CreatePlan(context.Context, SavePlanRequest) (Plan, error)
	// SavePlan creates the plan or, when one exists, replaces its templates
	// and discount in one transaction.
	SavePlan(context.Context, SavePlanRequest) (ReplaceResult, error)
	GetPlan(ctx context.Context, batchID string) (Plan, error)
	UpdateDiscount(context.Context, UpdateDiscountRequest) (Plan, error)
	ReplaceTemplates(context.Context, ReplaceTemplatesRequest) (ReplaceResult, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrBatchNotFound   = errors.New("batch_not_found")
	ErrPlanNotFound    = errors.New("fee_plan_not_found")
	ErrPlanExists      = errors.New("fee_plan_exists")
	ErrInvalidAmount   = errors.New("invalid_template_amount")
	ErrInvalidPeriod   = errors.New("invalid_repayment_period")
	ErrInvalidDiscount = errors.New("invalid_discount")
)

// ValidateTemplates checks every step has a positive amount and period.
func ValidateTemplates(templates []TemplateInput) error {
	for _, t := range templates {
		if !t.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		if t.RepaymentPeriodDays <= 0 {
			return ErrInvalidPeriod
		}
	}
	return nil
}
