package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/clock"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"github.com/smallbiznis/feeledger/pkg/db"
	"github.com/smallbiznis/feeledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	EnrollmentRepo enrollmentdomain.Repository
	AuditSvc       auditdomain.Service
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	enrollmentRepo enrollmentdomain.Repository
	auditSvc       auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("feeplan.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		enrollmentRepo: p.EnrollmentRepo,
		auditSvc:       p.AuditSvc,
	}
}

func (s *Service) CreatePlan(ctx context.Context, req domain.SavePlanRequest) (domain.Plan, error) {
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return domain.Plan{}, err
	}
	if err := domain.ValidateTemplates(req.Templates); err != nil {
		return domain.Plan{}, err
	}

	var plan domain.Plan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureBatch(ctx, tx, batchID); err != nil {
			return err
		}
		existing, err := s.repo.LockPlanByBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrPlanExists
		}
		plan, err = s.createPlan(ctx, tx, batchID, req.Discount, req.Templates)
		return err
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Plan{}, domain.ErrPlanExists
		}
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) SavePlan(ctx context.Context, req domain.SavePlanRequest) (domain.ReplaceResult, error) {
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return domain.ReplaceResult{}, err
	}
	if err := domain.ValidateTemplates(req.Templates); err != nil {
		return domain.ReplaceResult{}, err
	}

	var result domain.ReplaceResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureBatch(ctx, tx, batchID); err != nil {
			return err
		}
		existing, err := s.repo.LockPlanByBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if existing == nil {
			plan, err := s.createPlan(ctx, tx, batchID, req.Discount, req.Templates)
			if err != nil {
				return err
			}
			result = domain.ReplaceResult{Plan: plan, Inserted: len(plan.Templates)}
			return nil
		}
		existing.Discount = req.Discount
		result, err = s.replaceTemplates(ctx, tx, existing, req.Templates)
		return err
	})
	if err != nil {
		return domain.ReplaceResult{}, err
	}
	return result, nil
}

func (s *Service) GetPlan(ctx context.Context, batchID string) (domain.Plan, error) {
	id, err := parseID(batchID)
	if err != nil {
		return domain.Plan{}, err
	}
	plan, err := s.repo.FindPlanByBatch(ctx, s.db, id)
	if err != nil {
		return domain.Plan{}, err
	}
	if plan == nil {
		return domain.Plan{}, domain.ErrPlanNotFound
	}
	templates, err := s.repo.ListTemplates(ctx, s.db, plan.ID)
	if err != nil {
		return domain.Plan{}, err
	}
	return domain.Plan{FeePlan: *plan, Templates: templates}, nil
}

// UpdateDiscount changes the plan discount. Existing student accounts keep
// the discount they were seeded with.
func (s *Service) UpdateDiscount(ctx context.Context, req domain.UpdateDiscountRequest) (domain.Plan, error) {
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return domain.Plan{}, err
	}

	var plan domain.Plan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.LockPlanByBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrPlanNotFound
		}
		templates, err := s.repo.ListTemplates(ctx, tx, existing.ID)
		if err != nil {
			return err
		}

		previous := existing.Discount
		existing.Discount = req.Discount
		existing.Recompute(templates)
		if err := validateDiscount(*existing); err != nil {
			return err
		}
		existing.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdatePlan(ctx, tx, existing); err != nil {
			return err
		}

		plan = domain.Plan{FeePlan: *existing, Templates: templates}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionPlanDiscountChanged,
			TargetType: auditdomain.TargetFeePlan,
			TargetID:   existing.ID.String(),
			Metadata: map[string]any{
				"previous": previous.String(),
				"discount": existing.Discount.String(),
			},
		})
	})
	if err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) ReplaceTemplates(ctx context.Context, req domain.ReplaceTemplatesRequest) (domain.ReplaceResult, error) {
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return domain.ReplaceResult{}, err
	}
	if err := domain.ValidateTemplates(req.Templates); err != nil {
		return domain.ReplaceResult{}, err
	}

	var result domain.ReplaceResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.LockPlanByBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrPlanNotFound
		}
		result, err = s.replaceTemplates(ctx, tx, existing, req.Templates)
		return err
	})
	if err != nil {
		return domain.ReplaceResult{}, err
	}
	return result, nil
}

func (s *Service) createPlan(ctx context.Context, tx *gorm.DB, batchID snowflake.ID, discount money.Money, inputs []domain.TemplateInput) (domain.Plan, error) {
	now := s.clock.Now()
	plan := domain.FeePlan{
		ID:        s.genID.Generate(),
		BatchID:   batchID,
		Discount:  discount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	templates := s.newTemplates(plan.ID, inputs)
	plan.Recompute(templates)
	if err := validateDiscount(plan); err != nil {
		return domain.Plan{}, err
	}

	if err := s.repo.InsertPlan(ctx, tx, &plan); err != nil {
		return domain.Plan{}, err
	}
	if err := s.repo.InsertTemplates(ctx, tx, templates); err != nil {
		return domain.Plan{}, err
	}
	if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     auditdomain.ActionPlanCreated,
		TargetType: auditdomain.TargetFeePlan,
		TargetID:   plan.ID.String(),
		Metadata: map[string]any{
			"batch_id":  batchID.String(),
			"templates": len(templates),
			"total":     plan.TotalAmount.String(),
			"discount":  plan.Discount.String(),
		},
	}); err != nil {
		return domain.Plan{}, err
	}

	s.log.Info("fee plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("batch_id", batchID.String()),
		zap.Int("templates", len(templates)),
	)
	return domain.Plan{FeePlan: plan, Templates: templates}, nil
}

// replaceTemplates applies the positional diff and refreshes cached totals.
// Student schedules that were already generated are not touched.
func (s *Service) replaceTemplates(ctx context.Context, tx *gorm.DB, plan *domain.FeePlan, inputs []domain.TemplateInput) (domain.ReplaceResult, error) {
	existing, err := s.repo.ListTemplates(ctx, tx, plan.ID)
	if err != nil {
		return domain.ReplaceResult{}, err
	}

	now := s.clock.Now()
	diff := domain.DiffTemplates(existing, inputs)
	for i := range diff.Update {
		diff.Update[i].UpdatedAt = now
		if err := s.repo.UpdateTemplate(ctx, tx, &diff.Update[i]); err != nil {
			return domain.ReplaceResult{}, err
		}
	}
	if err := s.repo.DeleteTemplates(ctx, tx, diff.Delete); err != nil {
		return domain.ReplaceResult{}, err
	}
	if err := s.repo.InsertTemplates(ctx, tx, s.newTemplates(plan.ID, diff.Insert)); err != nil {
		return domain.ReplaceResult{}, err
	}

	templates, err := s.repo.ListTemplates(ctx, tx, plan.ID)
	if err != nil {
		return domain.ReplaceResult{}, err
	}
	plan.Recompute(templates)
	if err := validateDiscount(*plan); err != nil {
		return domain.ReplaceResult{}, err
	}
	plan.UpdatedAt = now
	if err := s.repo.UpdatePlan(ctx, tx, plan); err != nil {
		return domain.ReplaceResult{}, err
	}

	result := domain.ReplaceResult{
		Plan:      domain.Plan{FeePlan: *plan, Templates: templates},
		Updated:   len(diff.Update),
		Inserted:  len(diff.Insert),
		Deleted:   len(diff.Delete),
		Unchanged: diff.Unchanged,
	}
	if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     auditdomain.ActionPlanTemplatesSaved,
		TargetType: auditdomain.TargetFeePlan,
		TargetID:   plan.ID.String(),
		Metadata: map[string]any{
			"updated":  result.Updated,
			"inserted": result.Inserted,
			"deleted":  result.Deleted,
			"total":    plan.TotalAmount.String(),
		},
	}); err != nil {
		return domain.ReplaceResult{}, err
	}
	return result, nil
}

func (s *Service) newTemplates(planID snowflake.ID, inputs []domain.TemplateInput) []domain.FeeTemplate {
	now := s.clock.Now()
	out := make([]domain.FeeTemplate, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, domain.FeeTemplate{
			ID:                  s.genID.Generate(),
			PlanID:              planID,
			Amount:              in.Amount,
			RepaymentPeriodDays: in.RepaymentPeriodDays,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}
	return out
}

func (s *Service) ensureBatch(ctx context.Context, tx *gorm.DB, batchID snowflake.ID) error {
	batch, err := s.enrollmentRepo.FindBatch(ctx, tx, batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return domain.ErrBatchNotFound
	}
	return nil
}

func validateDiscount(plan domain.FeePlan) error {
	if plan.Discount.IsNegative() || plan.Discount.GreaterThan(plan.TotalAmount) {
		return domain.ErrInvalidDiscount
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
