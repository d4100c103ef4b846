package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"github.com/smallbiznis/feeledger/internal/receipt/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Store          domain.Store
	Renderer       domain.Renderer
	EnrollmentRepo enrollmentdomain.Repository
	FeeConfig      *config.FeeConfigHolder
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	store          domain.Store
	renderer       domain.Renderer
	enrollmentRepo enrollmentdomain.Repository
	feeConfig      *config.FeeConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("receipt.service"),
		clock:          p.Clock,
		store:          p.Store,
		renderer:       p.Renderer,
		enrollmentRepo: p.EnrollmentRepo,
		feeConfig:      p.FeeConfig,
	}
}

// Issue snapshots a committed payment. A failure here never affects the
// payment itself.
func (s *Service) Issue(ctx context.Context, payment feedomain.PaymentResult) (domain.Receipt, error) {
	ctx, span := tracing.StartSpan(ctx, "receipt.Issue",
		attribute.String("account.id", payment.Account.ID.String()),
	)
	defer span.End()

	if payment.Account.ID == 0 || !payment.Applied.IsPositive() {
		return domain.Receipt{}, domain.ErrEmptyPayment
	}

	cfg := s.feeConfig.Get()
	now := s.clock.Now().UTC()

	receipt := domain.Receipt{
		Token:           ulid.Make().String(),
		AccountID:       payment.Account.ID,
		EnrollmentID:    payment.Account.EnrollmentID,
		Currency:        cfg.Currency,
		Amount:          payment.Amount,
		Applied:         payment.Applied,
		Leftover:        payment.Leftover,
		RemainingAmount: payment.Account.RemainingAmount,
		InstallmentIDs:  append([]snowflake.ID(nil), payment.InstallmentIDs...),
		Lines:           linesFor(payment),
		PaymentDate:     payment.PaymentDate,
		IssuedAt:        now,
		ExpiresAt:       now.Add(cfg.ReceiptTTL),
	}

	scope, err := s.enrollmentRepo.FindScope(ctx, s.db.WithContext(ctx), payment.Account.EnrollmentID)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return domain.Receipt{}, err
	}
	if scope != nil {
		receipt.StudentName = scope.StudentName
		receipt.RegistrationNumber = scope.RegistrationNumber
		receipt.BatchName = scope.BatchName
		receipt.FranchiseName = scope.FranchiseName
	}

	if err := s.store.Put(ctx, receipt, cfg.ReceiptTTL); err != nil {
		span.RecordError(tracing.SafeError(err))
		s.log.Warn("failed to store receipt", zap.String("account_id", receipt.AccountID.String()), zap.Error(err))
		return domain.Receipt{}, err
	}
	return receipt, nil
}

func (s *Service) Get(ctx context.Context, token string) (domain.Receipt, error) {
	token = strings.TrimSpace(token)
	if _, err := ulid.ParseStrict(token); err != nil {
		return domain.Receipt{}, domain.ErrInvalidToken
	}
	receipt, err := s.store.Get(ctx, token)
	if err != nil {
		return domain.Receipt{}, err
	}
	if receipt == nil {
		return domain.Receipt{}, domain.ErrReceiptNotFound
	}
	return *receipt, nil
}

func (s *Service) Clear(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if _, err := ulid.ParseStrict(token); err != nil {
		return domain.ErrInvalidToken
	}
	return s.store.Delete(ctx, token)
}

func (s *Service) RenderPDF(ctx context.Context, token string) ([]byte, error) {
	receipt, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "receipt.RenderPDF")
	defer span.End()

	doc, err := s.renderer.Render(ctx, receipt)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return nil, err
	}
	return doc, nil
}

func linesFor(payment feedomain.PaymentResult) []domain.Line {
	touched := make(map[snowflake.ID]struct{}, len(payment.InstallmentIDs))
	for _, id := range payment.InstallmentIDs {
		touched[id] = struct{}{}
	}
	lines := make([]domain.Line, 0, len(touched))
	for _, view := range payment.Account.Installments {
		if _, ok := touched[view.ID]; !ok {
			continue
		}
		lines = append(lines, domain.Line{
			InstallmentID: view.ID,
			DueDate:       view.DueDate,
			Amount:        view.Amount,
			PayedAmount:   view.PayedAmount,
			Status:        view.Status,
		})
	}
	return lines
}
