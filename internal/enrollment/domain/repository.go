package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertFranchise(ctx context.Context, db *gorm.DB, franchise *Franchise) error
	FindFranchise(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Franchise, error)
	ListFranchises(ctx context.Context, db *gorm.DB) ([]Franchise, error)

	InsertBatch(ctx context.Context, db *gorm.DB, batch *Batch) error
	FindBatch(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Batch, error)
	// ListBatchRefs returns batches with franchise names. Zero ids mean no
	// restriction.
	ListBatchRefs(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) ([]BatchRef, error)

	InsertEnrollment(ctx context.Context, db *gorm.DB, enrollment *Enrollment) error
	FindEnrollment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	ListEnrollmentsByBatch(ctx context.Context, db *gorm.DB, batchID snowflake.ID) ([]Enrollment, error)

	// ListScopes returns enrollments joined with batch and franchise names.
	// Zero ids mean no restriction.
	ListScopes(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) ([]Scope, error)
	FindScope(ctx context.Context, db *gorm.DB, enrollmentID snowflake.ID) (*Scope, error)
}
