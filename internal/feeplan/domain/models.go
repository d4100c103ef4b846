package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/pkg/money"
)

// FeePlan is the batch-level fee blueprint. TotalAmount and RemainingAmount
// are cached projections of the templates and discount.
type FeePlan struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	BatchID         snowflake.ID `gorm:"not null;uniqueIndex" json:"batch_id"`
	Discount        money.Money  `gorm:"not null" json:"discount"`
	TotalAmount     money.Money  `gorm:"not null" json:"total_amount"`
	RemainingAmount money.Money  `gorm:"not null" json:"remaining_amount"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}

// FeeTemplate is one ordered step of a plan. Order is creation order, which
// snowflake ids preserve.
type FeeTemplate struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	PlanID              snowflake.ID `gorm:"not null;index" json:"plan_id"`
	Amount              money.Money  `gorm:"not null" json:"amount"`
	RepaymentPeriodDays int          `gorm:"not null" json:"repayment_period_days"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

type TemplateInput struct {
	Amount              money.Money `json:"amount"`
	RepaymentPeriodDays int         `json:"repayment_period_days"`
}

// Plan is a fee plan with its ordered templates.
type Plan struct {
	FeePlan
	Templates []FeeTemplate `json:"templates"`
}

// Total sums the template amounts.
func Total(templates []FeeTemplate) money.Money {
	total := money.Zero
	for _, t := range templates {
		total = total.Add(t.Amount)
	}
	return total
}

// Recompute refreshes the cached total and remaining amounts.
func (p *FeePlan) Recompute(templates []FeeTemplate) {
	p.TotalAmount = Total(templates)
	p.RemainingAmount = p.TotalAmount.Sub(p.Discount)
}
