package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"github.com/smallbiznis/feeledger/internal/fee/engine"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

const MonthLayout = "2006-01"

// Filter restricts a report. Zero values mean no restriction on that
// dimension.
type Filter struct {
	FranchiseID snowflake.ID `json:"franchise_id,omitempty"`
	BatchID     snowflake.ID `json:"batch_id,omitempty"`
	// Month is the first day of the selected due-date month.
	Month time.Time `json:"-"`
}

func (f Filter) HasMonth() bool {
	return !f.Month.IsZero()
}

// Line is one installment with the enrollment it belongs to.
type Line struct {
	Scope       enrollmentdomain.Scope
	Installment feedomain.Installment
}

// Dataset is the read snapshot a report is computed from. Lines and
// Enrollments may already be narrowed to the franchise and batch filter.
// Global carries the all-franchise totals when Lines is narrowed; when nil
// the global totals are summed from Lines.
type Dataset struct {
	Franchises  []enrollmentdomain.Franchise
	Batches     []enrollmentdomain.BatchRef
	Enrollments []enrollmentdomain.Scope
	Lines       []Line
	Global      *engine.Totals
}

type BatchSummary struct {
	BatchID   snowflake.ID `json:"batch_id"`
	BatchName string       `json:"batch_name"`
	engine.Totals
}

type FranchiseSummary struct {
	FranchiseID   snowflake.ID   `json:"franchise_id"`
	FranchiseName string         `json:"franchise_name"`
	Batches       []BatchSummary `json:"batches"`
	engine.Totals
}

type StudentSummary struct {
	StudentID          snowflake.ID `json:"student_id"`
	StudentName        string       `json:"student_name"`
	RegistrationNumber string       `json:"registration_number"`
	Enrollments        int          `json:"enrollments"`
	engine.Totals
}

type MonthlyPoint struct {
	Month     string      `json:"month"`
	Due       money.Money `json:"due"`
	Collected money.Money `json:"collected"`
}

type AgingTotal struct {
	Label        string      `json:"label"`
	Installments int         `json:"installments"`
	Amount       money.Money `json:"amount"`
}

type Report struct {
	Month      string             `json:"month,omitempty"`
	Today      time.Time          `json:"today"`
	Global     engine.Totals      `json:"global"`
	Filtered   engine.Totals      `json:"filtered"`
	Franchises []FranchiseSummary `json:"franchises"`
	Students   []StudentSummary   `json:"students"`
	Monthly    []MonthlyPoint     `json:"monthly"`
	Aging      []AgingTotal       `json:"aging"`
}

type ReminderLine struct {
	InstallmentID      snowflake.ID `json:"installment_id"`
	AccountID          snowflake.ID `json:"account_id"`
	EnrollmentID       snowflake.ID `json:"enrollment_id"`
	StudentID          snowflake.ID `json:"student_id"`
	StudentName        string       `json:"student_name"`
	RegistrationNumber string       `json:"registration_number"`
	BatchID            snowflake.ID `json:"batch_id"`
	BatchName          string       `json:"batch_name"`
	FranchiseName      string       `json:"franchise_name"`
	DueDate            time.Time    `json:"due_date"`
	Amount             money.Money  `json:"amount"`
	Outstanding        money.Money  `json:"outstanding"`
	DaysOverdue        int          `json:"days_overdue"`
}

type Reminders struct {
	Today      time.Time      `json:"today"`
	WindowDays int            `json:"window_days"`
	Upcoming   []ReminderLine `json:"upcoming"`
	Overdue    []ReminderLine `json:"overdue"`
}
