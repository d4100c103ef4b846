package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertFranchise(ctx context.Context, db *gorm.DB, franchise *domain.Franchise) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO franchises (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		franchise.ID,
		franchise.Name,
		franchise.CreatedAt,
		franchise.UpdatedAt,
	).Error
}

func (r *repo) FindFranchise(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Franchise, error) {
	var franchise domain.Franchise
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, created_at, updated_at FROM franchises WHERE id = ?`,
		id,
	).Scan(&franchise).Error
	if err != nil {
		return nil, err
	}
	if franchise.ID == 0 {
		return nil, nil
	}
	return &franchise, nil
}

func (r *repo) ListFranchises(ctx context.Context, db *gorm.DB) ([]domain.Franchise, error) {
	var items []domain.Franchise
	err := db.WithContext(ctx).
		Model(&domain.Franchise{}).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, batch *domain.Batch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO batches (id, franchise_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		batch.ID,
		batch.FranchiseID,
		batch.Name,
		batch.CreatedAt,
		batch.UpdatedAt,
	).Error
}

func (r *repo) FindBatch(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Batch, error) {
	var batch domain.Batch
	err := db.WithContext(ctx).Raw(
		`SELECT id, franchise_id, name, created_at, updated_at FROM batches WHERE id = ?`,
		id,
	).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	return &batch, nil
}

func (r *repo) ListBatchRefs(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) ([]domain.BatchRef, error) {
	stmt := db.WithContext(ctx).
		Table("batches AS b").
		Select("b.id AS batch_id, b.name AS batch_name, f.id AS franchise_id, f.name AS franchise_name").
		Joins("JOIN franchises AS f ON f.id = b.franchise_id")
	if franchiseID != 0 {
		stmt = stmt.Where("b.franchise_id = ?", franchiseID)
	}
	if batchID != 0 {
		stmt = stmt.Where("b.id = ?", batchID)
	}

	var refs []domain.BatchRef
	if err := stmt.Order("f.id asc, b.id asc").Scan(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *repo) InsertEnrollment(ctx context.Context, db *gorm.DB, enrollment *domain.Enrollment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO enrollments (id, student_id, student_name, batch_id, registration_number, registered_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		enrollment.ID,
		enrollment.StudentID,
		enrollment.StudentName,
		enrollment.BatchID,
		enrollment.RegistrationNumber,
		enrollment.RegisteredAt,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	).Error
}

func (r *repo) FindEnrollment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT id, student_id, student_name, batch_id, registration_number, registered_at, created_at, updated_at
		 FROM enrollments WHERE id = ?`,
		id,
	).Scan(&enrollment).Error
	if err != nil {
		return nil, err
	}
	if enrollment.ID == 0 {
		return nil, nil
	}
	return &enrollment, nil
}

func (r *repo) ListEnrollmentsByBatch(ctx context.Context, db *gorm.DB, batchID snowflake.ID) ([]domain.Enrollment, error) {
	var items []domain.Enrollment
	err := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("batch_id = ?", batchID).
		Order("registered_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListScopes(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) ([]domain.Scope, error) {
	stmt := scopeQuery(ctx, db)
	if franchiseID != 0 {
		stmt = stmt.Where("b.franchise_id = ?", franchiseID)
	}
	if batchID != 0 {
		stmt = stmt.Where("e.batch_id = ?", batchID)
	}

	var scopes []domain.Scope
	if err := stmt.Order("f.id asc, b.id asc, e.id asc").Scan(&scopes).Error; err != nil {
		return nil, err
	}
	return scopes, nil
}

func (r *repo) FindScope(ctx context.Context, db *gorm.DB, enrollmentID snowflake.ID) (*domain.Scope, error) {
	var scope domain.Scope
	err := scopeQuery(ctx, db).Where("e.id = ?", enrollmentID).Limit(1).Scan(&scope).Error
	if err != nil {
		return nil, err
	}
	if scope.EnrollmentID == 0 {
		return nil, nil
	}
	return &scope, nil
}

func scopeQuery(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Table("enrollments AS e").
		Select(`e.id AS enrollment_id, e.student_id, e.student_name, e.registration_number, e.registered_at,
			b.id AS batch_id, b.name AS batch_name, f.id AS franchise_id, f.name AS franchise_name`).
		Joins("JOIN batches AS b ON b.id = e.batch_id").
		Joins("JOIN franchises AS f ON f.id = b.franchise_id")
}
