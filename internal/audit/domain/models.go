package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is one immutable record of a fee ledger mutation.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `gorm:"not null;index" json:"action"`
	TargetType string            `gorm:"not null;index:ix_audit_logs_target" json:"target_type"`
	TargetID   string            `gorm:"not null;index:ix_audit_logs_target" json:"target_id"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

const (
	ActionPlanCreated         = "fee_plan.created"
	ActionPlanTemplatesSaved  = "fee_plan.templates_replaced"
	ActionPlanDiscountChanged = "fee_plan.discount_changed"
	ActionScheduleGenerated   = "fee_schedule.generated"
	ActionScheduleEdited      = "fee_schedule.edited"
	ActionPaymentAllocated    = "fee_payment.allocated"
	ActionStatusGridSaved     = "fee_installments.status_saved"
	ActionAccountDiscount     = "fee_account.discount_changed"
	ActionAccountReconciled   = "fee_account.reconciled"
	ActionAccountCreated      = "fee_account.created"
)

const (
	TargetFeePlan = "fee_plan"
	TargetAccount = "student_fee_account"
)
