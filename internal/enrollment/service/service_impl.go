package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"github.com/smallbiznis/feeledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("enrollment.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateFranchise(ctx context.Context, req domain.CreateFranchiseRequest) (domain.Franchise, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Franchise{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	franchise := domain.Franchise{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertFranchise(ctx, s.db, &franchise); err != nil {
		return domain.Franchise{}, err
	}
	return franchise, nil
}

func (s *Service) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (domain.Batch, error) {
	franchiseID, err := parseID(req.FranchiseID)
	if err != nil {
		return domain.Batch{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Batch{}, domain.ErrInvalidName
	}

	franchise, err := s.repo.FindFranchise(ctx, s.db, franchiseID)
	if err != nil {
		return domain.Batch{}, err
	}
	if franchise == nil {
		return domain.Batch{}, domain.ErrFranchiseNotFound
	}

	now := s.clock.Now()
	batch := domain.Batch{
		ID:          s.genID.Generate(),
		FranchiseID: franchise.ID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertBatch(ctx, s.db, &batch); err != nil {
		return domain.Batch{}, err
	}
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	batchID, err := parseID(id)
	if err != nil {
		return domain.Batch{}, err
	}
	batch, err := s.repo.FindBatch(ctx, s.db, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if batch == nil {
		return domain.Batch{}, domain.ErrBatchNotFound
	}
	return *batch, nil
}

// Enroll records a student-in-batch relation. The fee account and schedule
// are created later, on first access to the student's fee data.
func (s *Service) Enroll(ctx context.Context, req domain.EnrollRequest) (domain.Enrollment, error) {
	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	name := strings.TrimSpace(req.StudentName)
	if name == "" {
		return domain.Enrollment{}, domain.ErrInvalidName
	}

	batch, err := s.repo.FindBatch(ctx, s.db, batchID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if batch == nil {
		return domain.Enrollment{}, domain.ErrBatchNotFound
	}

	now := s.clock.Now()
	registeredAt := req.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = now
	}
	if registeredAt.After(now.Add(24 * time.Hour)) {
		return domain.Enrollment{}, domain.ErrInvalidDate
	}

	enrollment := domain.Enrollment{
		ID:                 s.genID.Generate(),
		StudentID:          studentID,
		StudentName:        name,
		BatchID:            batch.ID,
		RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
		RegisteredAt:       clock.Date(registeredAt),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertEnrollment(ctx, s.db, &enrollment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Enrollment{}, domain.ErrAlreadyEnrolled
		}
		return domain.Enrollment{}, err
	}

	s.log.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("batch_id", batch.ID.String()),
	)
	return enrollment, nil
}

func (s *Service) GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error) {
	enrollmentID, err := parseID(id)
	if err != nil {
		return domain.Enrollment{}, err
	}
	enrollment, err := s.repo.FindEnrollment(ctx, s.db, enrollmentID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if enrollment == nil {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return *enrollment, nil
}

func (s *Service) ListEnrollments(ctx context.Context, batchID string) ([]domain.Enrollment, error) {
	id, err := parseID(batchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListEnrollmentsByBatch(ctx, s.db, id)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
