package domain

import (
	"context"
	"errors"
	"time"
)

type CreateFranchiseRequest struct {
	Name string `json:"name"`
}

type CreateBatchRequest struct {
	FranchiseID string `json:"franchise_id"`
	Name        string `json:"name"`
}

type EnrollRequest struct {
	StudentID          string    `json:"student_id"`
	StudentName        string    `json:"student_name"`
	BatchID            string    `json:"batch_id"`
	RegistrationNumber string    `json:"registration_number"`
	RegisteredAt       time.Time `json:"registered_at"`
}

type Service interface {
	CreateFranchise(context.Context, CreateFranchiseRequest) (Franchise, error)
	CreateBatch(context.Context, CreateBatchRequest) (Batch, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
	Enroll(context.Context, EnrollRequest) (Enrollment, error)
	GetEnrollment(ctx context.Context, id string) (Enrollment, error)
	ListEnrollments(ctx context.Context, batchID string) ([]Enrollment, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidDate        = errors.New("invalid_registration_date")
	ErrFranchiseNotFound  = errors.New("franchise_not_found")
	ErrBatchNotFound      = errors.New("batch_not_found")
	ErrEnrollmentNotFound = errors.New("enrollment_not_found")
	ErrAlreadyEnrolled    = errors.New("already_enrolled")
)
