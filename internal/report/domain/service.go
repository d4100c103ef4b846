package domain

import (
	"context"
	"errors"
)

type ReportRequest struct {
	FranchiseID string `form:"franchise_id" json:"franchise_id"`
	BatchID     string `form:"batch_id" json:"batch_id"`
	// Month is YYYY-MM.
	Month string `form:"month" json:"month"`
}

type ReminderRequest struct {
	FranchiseID string `form:"franchise_id" json:"franchise_id"`
	BatchID     string `form:"batch_id" json:"batch_id"`
}

type Service interface {
	Aggregate(context.Context, ReportRequest) (Report, error)
	Reminders(context.Context, ReminderRequest) (Reminders, error)
}

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidMonth = errors.New("invalid_month")
)
