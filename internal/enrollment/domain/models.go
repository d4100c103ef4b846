package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Franchise is a physical location that runs batches.
type Franchise struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// Batch is a cohort of students inside one franchise. Each batch owns at most
// one fee plan.
type Batch struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	FranchiseID snowflake.ID `gorm:"not null;index" json:"franchise_id"`
	Name        string       `gorm:"not null" json:"name"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// Enrollment is one student-in-batch relation. RegisteredAt anchors the
// student's installment schedule.
type Enrollment struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	StudentID          snowflake.ID `gorm:"not null;uniqueIndex:ux_enrollments_student_batch" json:"student_id"`
	StudentName        string       `gorm:"not null" json:"student_name"`
	BatchID            snowflake.ID `gorm:"not null;uniqueIndex:ux_enrollments_student_batch;index" json:"batch_id"`
	RegistrationNumber string       `gorm:"not null" json:"registration_number"`
	RegisteredAt       time.Time    `gorm:"not null" json:"registered_at"`
	CreatedAt          time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null" json:"updated_at"`
}

// Scope is an enrollment joined with its batch and franchise, used wherever
// fee data needs to be grouped by location.
type Scope struct {
	EnrollmentID       snowflake.ID `json:"enrollment_id"`
	StudentID          snowflake.ID `json:"student_id"`
	StudentName        string       `json:"student_name"`
	RegistrationNumber string       `json:"registration_number"`
	RegisteredAt       time.Time    `json:"registered_at"`
	BatchID            snowflake.ID `json:"batch_id"`
	BatchName          string       `json:"batch_name"`
	FranchiseID        snowflake.ID `json:"franchise_id"`
	FranchiseName      string       `json:"franchise_name"`
}

// BatchRef is a batch with its franchise name.
type BatchRef struct {
	BatchID       snowflake.ID `json:"batch_id"`
	BatchName     string       `json:"batch_name"`
	FranchiseID   snowflake.ID `json:"franchise_id"`
	FranchiseName string       `json:"franchise_name"`
}
