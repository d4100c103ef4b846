package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/clock"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/fee/engine"
	feeplandomain "github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"github.com/smallbiznis/feeledger/internal/lock"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"github.com/smallbiznis/feeledger/pkg/db"
	"github.com/smallbiznis/feeledger/pkg/money"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const accountLockTTL = 30 * time.Second

const (
	sourceEnrollment = "enrollment"
	sourceManual     = "manual"

	triggerPayment      = "payment"
	triggerStatusGrid   = "status_grid"
	triggerScheduleEdit = "schedule_edit"
	triggerDiscount     = "discount"
	triggerGenerate     = "generate"
	triggerExplicit     = "explicit"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	PlanRepo       feeplandomain.Repository
	EnrollmentRepo enrollmentdomain.Repository
	AuditSvc       auditdomain.Service
	Locker         lock.Locker            `optional:"true"`
	Metrics        *metrics.Metrics       `optional:"true"`
	LedgerMetrics  *metrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	planRepo       feeplandomain.Repository
	enrollmentRepo enrollmentdomain.Repository
	auditSvc       auditdomain.Service
	locker         lock.Locker
	metrics        *metrics.Metrics
	ledger         *metrics.LedgerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("fee.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		planRepo:       p.PlanRepo,
		enrollmentRepo: p.EnrollmentRepo,
		auditSvc:       p.AuditSvc,
		locker:         p.Locker,
		metrics:        p.Metrics,
		ledger:         p.LedgerMetrics,
	}
}

// accountState is everything a mutation needs, loaded under the account lock.
type accountState struct {
	account      *domain.StudentFeeAccount
	plan         *feeplandomain.FeePlan
	installments []domain.Installment
}

func (s *Service) EnsureAccount(ctx context.Context, enrollmentID string) (account domain.Account, err error) {
	ctx, span, started := s.begin(ctx, "fee.EnsureAccount")
	defer func() { s.finish(span, metrics.OperationGenerateSchedule, started, err) }()

	id, err := parseID(enrollmentID)
	if err != nil {
		return domain.Account{}, err
	}
	account, err = s.ensureAccount(ctx, id)
	if err != nil && db.IsDuplicateKeyErr(err) {
		// lost the creation race; the other caller's account is now visible
		account, err = s.ensureAccount(ctx, id)
	}
	return account, err
}

func (s *Service) ensureAccount(ctx context.Context, enrollmentID snowflake.ID) (domain.Account, error) {
	var out domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.enrollmentRepo.FindEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			return domain.NewLedgerError(domain.ErrEnrollmentNotFound, 0,
				fmt.Sprintf("enrollment %s not found", enrollmentID))
		}
		plan, err := s.planRepo.FindPlanByBatch(ctx, tx, enrollment.BatchID)
		if err != nil {
			return err
		}
		if plan == nil {
			return domain.NewLedgerError(domain.ErrPlanNotFound, 0,
				fmt.Sprintf("batch %s has no fee plan", enrollment.BatchID))
		}

		account, err := s.repo.FindAccountByEnrollment(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if account == nil {
			account, err = s.createAccount(ctx, tx, enrollmentID, plan)
			if err != nil {
				return err
			}
		} else {
			account, err = s.lockAccount(ctx, tx, account.ID)
			if err != nil {
				return err
			}
		}

		st := &accountState{account: account, plan: plan}
		st.installments, err = s.repo.ListInstallments(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		if len(st.installments) == 0 {
			st.installments, err = s.generate(ctx, tx, st, enrollment.RegisteredAt, sourceEnrollment)
			if err != nil {
				return err
			}
			if _, err := s.reconcile(ctx, tx, st, triggerGenerate); err != nil {
				return err
			}
		}
		out = s.view(st)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return out, nil
}

func (s *Service) createAccount(ctx context.Context, tx *gorm.DB, enrollmentID snowflake.ID, plan *feeplandomain.FeePlan) (*domain.StudentFeeAccount, error) {
	now := s.clock.Now()
	account := &domain.StudentFeeAccount{
		ID:              s.genID.Generate(),
		EnrollmentID:    enrollmentID,
		PlanID:          plan.ID,
		Discount:        plan.Discount,
		RemainingAmount: plan.RemainingAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.InsertAccount(ctx, tx, account); err != nil {
		return nil, err
	}
	if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     auditdomain.ActionAccountCreated,
		TargetType: auditdomain.TargetAccount,
		TargetID:   account.ID.String(),
		Metadata: map[string]any{
			"enrollment_id": enrollmentID.String(),
			"plan_id":       plan.ID.String(),
			"discount":      account.Discount.String(),
		},
	}); err != nil {
		return nil, err
	}
	s.log.Info("fee account created",
		zap.String("account_id", account.ID.String()),
		zap.String("enrollment_id", enrollmentID.String()),
	)
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	id, err := parseID(accountID)
	if err != nil {
		return domain.Account{}, err
	}
	st, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, err
	}
	return s.view(st), nil
}

func (s *Service) GenerateSchedule(ctx context.Context, accountID string) (account domain.Account, err error) {
	ctx, span, started := s.begin(ctx, "fee.GenerateSchedule")
	defer func() { s.finish(span, metrics.OperationGenerateSchedule, started, err) }()

	id, err := parseID(accountID)
	if err != nil {
		return domain.Account{}, err
	}
	err = s.mutate(ctx, id, func(tx *gorm.DB, st *accountState) error {
		if len(st.installments) > 0 {
			return domain.NewLedgerError(domain.ErrDuplicateSchedule, 0,
				fmt.Sprintf("account %s already has %d installments", id, len(st.installments)))
		}
		enrollment, err := s.findEnrollment(ctx, tx, st.account.EnrollmentID)
		if err != nil {
			return err
		}
		st.installments, err = s.generate(ctx, tx, st, enrollment.RegisteredAt, sourceManual)
		if err != nil {
			return err
		}
		if _, err := s.reconcile(ctx, tx, st, triggerGenerate); err != nil {
			return err
		}
		account = s.view(st)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (s *Service) generate(ctx context.Context, tx *gorm.DB, st *accountState, registeredAt time.Time, source string) ([]domain.Installment, error) {
	templates, err := s.planRepo.ListTemplates(ctx, tx, st.plan.ID)
	if err != nil {
		return nil, err
	}
	steps := make([]engine.Step, 0, len(templates))
	for _, t := range templates {
		steps = append(steps, engine.Step{Amount: t.Amount, RepaymentPeriodDays: t.RepaymentPeriodDays})
	}
	rows, err := engine.Generate(steps, registeredAt)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for i := range rows {
		rows[i].ID = s.genID.Generate()
		rows[i].AccountID = st.account.ID
		rows[i].CreatedAt = now
		rows[i].UpdatedAt = now
	}
	if err := s.repo.InsertInstallments(ctx, tx, rows); err != nil {
		return nil, err
	}
	if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     auditdomain.ActionScheduleGenerated,
		TargetType: auditdomain.TargetAccount,
		TargetID:   st.account.ID.String(),
		Metadata: map[string]any{
			"installments":      len(rows),
			"source":            source,
			"registration_date": clock.Date(registeredAt).Format(time.DateOnly),
		},
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordScheduleGenerated(ctx, source, len(rows))
	logger.WithContext(ctx, s.log).Info("fee schedule generated",
		zap.String("account_id", st.account.ID.String()),
		zap.Int("installments", len(rows)),
		zap.String("source", source),
	)
	return rows, nil
}

func (s *Service) AllocatePayment(ctx context.Context, req domain.AllocatePaymentRequest) (result domain.PaymentResult, err error) {
	ctx, span, started := s.begin(ctx, "fee.AllocatePayment")
	defer func() { s.finish(span, metrics.OperationAllocatePayment, started, err) }()

	id, err := parseID(req.AccountID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.PaymentResult{}, domain.NewLedgerError(domain.ErrInvalidAmount, 0,
			"Payment amount must be greater than zero.")
	}

	today := clock.Today(s.clock)
	err = s.mutate(ctx, id, func(tx *gorm.DB, st *accountState) error {
		alloc, err := engine.Allocate(st.installments, req.Amount, today)
		if err != nil {
			return err
		}
		if req.RejectLeftover && alloc.Leftover.IsPositive() {
			return domain.NewLedgerError(domain.ErrOverpayment, 0,
				fmt.Sprintf("payment exceeds the outstanding balance by %s", alloc.Leftover))
		}
		if err := s.saveRows(ctx, tx, alloc.Installments, alloc.Touched); err != nil {
			return err
		}
		st.installments = alloc.Installments
		if _, err := s.reconcile(ctx, tx, st, triggerPayment); err != nil {
			return err
		}

		ids := make([]string, 0, len(alloc.Touched))
		for _, touched := range alloc.Touched {
			ids = append(ids, touched.String())
		}
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionPaymentAllocated,
			TargetType: auditdomain.TargetAccount,
			TargetID:   st.account.ID.String(),
			Metadata: map[string]any{
				"amount":          req.Amount.String(),
				"applied":         alloc.Applied.String(),
				"leftover":        alloc.Leftover.String(),
				"installment_ids": ids,
			},
		}); err != nil {
			return err
		}

		result = domain.PaymentResult{
			Account:        s.view(st),
			Amount:         req.Amount,
			Applied:        alloc.Applied,
			Leftover:       alloc.Leftover,
			InstallmentIDs: alloc.Touched,
			PaymentDate:    today,
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordPayment(ctx, "rejected", req.Amount.Float64())
		return domain.PaymentResult{}, err
	}

	s.metrics.RecordPayment(ctx, "applied", result.Applied.Float64())
	if result.Leftover.IsPositive() {
		s.metrics.RecordPayment(ctx, "leftover", result.Leftover.Float64())
	}
	s.ledger.AddAllocated(result.Applied.Float64(), result.Leftover.Float64())
	logger.WithContext(ctx, s.log).Info("payment allocated",
		zap.String("account_id", id.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("leftover", result.Leftover.String()),
		zap.Int("installments", len(result.InstallmentIDs)),
	)
	return result, nil
}

func (s *Service) ApplyManualStatusEdits(ctx context.Context, req domain.StatusEditsRequest) (account domain.Account, err error) {
	ctx, span, started := s.begin(ctx, "fee.ApplyManualStatusEdits")
	defer func() { s.finish(span, metrics.OperationManualEdit, started, err) }()

	id, err := parseID(req.AccountID)
	if err != nil {
		return domain.Account{}, err
	}

	today := clock.Today(s.clock)
	err = s.mutate(ctx, id, func(tx *gorm.DB, st *accountState) error {
		res, err := engine.ApplyStatusEdits(st.installments, req.Edits, today)
		if err != nil {
			return err
		}
		if err := s.saveRows(ctx, tx, res.Installments, res.Changed); err != nil {
			return err
		}
		st.installments = res.Installments
		if _, err := s.reconcile(ctx, tx, st, triggerStatusGrid); err != nil {
			return err
		}
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionStatusGridSaved,
			TargetType: auditdomain.TargetAccount,
			TargetID:   st.account.ID.String(),
			Metadata: map[string]any{
				"submitted": len(req.Edits),
				"changed":   len(res.Changed),
			},
		}); err != nil {
			return err
		}
		account = s.view(st)
		return nil
	})
	if err != nil {
		s.metrics.RecordManualEdit(ctx, "rejected")
		return domain.Account{}, err
	}
	s.metrics.RecordManualEdit(ctx, "applied")
	return account, nil
}

func (s *Service) ReconcileBalance(ctx context.Context, accountID string) (account domain.Account, err error) {
	ctx, span, started := s.begin(ctx, "fee.ReconcileBalance")
	defer func() { s.finish(span, metrics.OperationReconcile, started, err) }()

	id, err := parseID(accountID)
	if err != nil {
		return domain.Account{}, err
	}
	err = s.mutate(ctx, id, func(tx *gorm.DB, st *accountState) error {
		previous := st.account.RemainingAmount
		drifted, err := s.reconcile(ctx, tx, st, triggerExplicit)
		if err != nil {
			return err
		}
		account = s.view(st)
		if !drifted {
			return nil
		}
		s.ledger.IncReconcileDrift()
		logger.WithContext(ctx, s.log).Warn("fee account balance drifted",
			zap.String("account_id", id.String()),
			zap.String("stored", previous.String()),
			zap.String("derived", st.account.RemainingAmount.String()),
		)
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionAccountReconciled,
			TargetType: auditdomain.TargetAccount,
			TargetID:   st.account.ID.String(),
			Metadata: map[string]any{
				"previous":  previous.String(),
				"remaining": st.account.RemainingAmount.String(),
			},
		})
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (s *Service) EditSchedule(ctx context.Context, req domain.EditScheduleRequest) (result domain.EditScheduleResult, err error) {
	ctx, span, started := s.begin(ctx, "fee.EditSchedule")
	defer func() { s.finish(span, metrics.OperationEditSchedule, started, err) }()

	id, err := parseID(req.AccountID)
	if err != nil {
		return domain.EditScheduleResult{}, err
	}

	today := clock.Today(s.clock)
	err = s.mutate(ctx, id, func(tx *gorm.DB, st *accountState) error {
		enrollment, err := s.findEnrollment(ctx, tx, st.account.EnrollmentID)
		if err != nil {
			return err
		}
		edit, err := engine.EditSchedule(st.installments, req.Rows, enrollment.RegisteredAt, today)
		if err != nil {
			return err
		}
		if err := s.saveRows(ctx, tx, edit.Rows, edit.Changed); err != nil {
			return err
		}

		now := s.clock.Now()
		var added []domain.Installment
		for i := range edit.Rows {
			if edit.Rows[i].ID != 0 {
				continue
			}
			edit.Rows[i].ID = s.genID.Generate()
			edit.Rows[i].AccountID = st.account.ID
			edit.Rows[i].CreatedAt = now
			edit.Rows[i].UpdatedAt = now
			added = append(added, edit.Rows[i])
		}
		if err := s.repo.InsertInstallments(ctx, tx, added); err != nil {
			return err
		}

		st.installments = edit.Rows
		engine.SortByDueDate(st.installments)
		if _, err := s.reconcile(ctx, tx, st, triggerScheduleEdit); err != nil {
			return err
		}

		scheduled := money.Zero
		for _, inst := range st.installments {
			scheduled = scheduled.Add(inst.Amount)
		}
		unscheduled := st.plan.TotalAmount.Sub(st.account.Discount).Sub(scheduled)

		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionScheduleEdited,
			TargetType: auditdomain.TargetAccount,
			TargetID:   st.account.ID.String(),
			Metadata: map[string]any{
				"changed":     len(edit.Changed),
				"added":       len(added),
				"scheduled":   scheduled.String(),
				"unscheduled": unscheduled.String(),
			},
		}); err != nil {
			return err
		}

		result = domain.EditScheduleResult{Account: s.view(st), UnscheduledAmount: unscheduled}
		return nil
	})
	if err != nil {
		return domain.EditScheduleResult{}, err
	}
	return result, nil
}

func (s *Service) UpdateAccountDiscount(ctx context.Context, req domain.UpdateDiscountRequest) (account domain.Account, err error) {
	ctx, span, started := s.begin(ctx, "fee.UpdateAccountDiscount")
	defer func() { s.finish(span, metrics.OperationReconcile, started, err) }()

	id, err := parseID(req.AccountID)
	if err != nil {
		return domain.Account{}, err
	}
	if req.Discount.IsNegative() {
		return domain.Account{}, domain.NewLedgerError(domain.ErrInvalidAmount, 0, "Discount cannot be negative.")
	}

	err = s.mutate(ctx, id, func(tx *gorm.DB, st *accountState) error {
		if req.Discount.GreaterThan(st.plan.TotalAmount) {
			return domain.NewLedgerError(domain.ErrInvalidAmount, 0,
				fmt.Sprintf("discount %s exceeds the plan total %s", req.Discount, st.plan.TotalAmount))
		}
		previous := st.account.Discount
		st.account.Discount = req.Discount
		st.account.RemainingAmount = engine.Reconcile(st.plan.TotalAmount, st.account.Discount, st.installments)
		st.account.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateAccount(ctx, tx, st.account); err != nil {
			return err
		}
		s.metrics.RecordReconciliation(ctx, triggerDiscount)
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionAccountDiscount,
			TargetType: auditdomain.TargetAccount,
			TargetID:   st.account.ID.String(),
			Metadata: map[string]any{
				"previous":  previous.String(),
				"discount":  st.account.Discount.String(),
				"remaining": st.account.RemainingAmount.String(),
			},
		}); err != nil {
			return err
		}
		account = s.view(st)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (s *Service) Statement(ctx context.Context, enrollmentID string) (domain.Statement, error) {
	id, err := parseID(enrollmentID)
	if err != nil {
		return domain.Statement{}, err
	}
	account, err := s.repo.FindAccountByEnrollment(ctx, s.db, id)
	if err != nil {
		return domain.Statement{}, err
	}
	if account == nil {
		return domain.Statement{}, domain.NewLedgerError(domain.ErrAccountNotFound, 0,
			fmt.Sprintf("enrollment %s has no fee account", id))
	}
	st, err := s.load(ctx, s.db, account.ID)
	if err != nil {
		return domain.Statement{}, err
	}

	today := clock.Today(s.clock)
	totals := engine.Summarize(st.installments, today)
	paid := money.Zero
	var last *time.Time
	for _, inst := range st.installments {
		if inst.IsPaid() {
			paid = paid.Add(inst.PayedAmount)
		}
		if inst.PaymentDate != nil && (last == nil || inst.PaymentDate.After(*last)) {
			d := *inst.PaymentDate
			last = &d
		}
	}

	return domain.Statement{
		AccountID:       st.account.ID,
		EnrollmentID:    st.account.EnrollmentID,
		TotalAmount:     totals.Fees,
		TotalPaid:       paid,
		TotalPending:    totals.Pending,
		TotalOverdue:    totals.Overdue,
		Discount:        st.account.Discount,
		RemainingAmount: st.account.RemainingAmount,
		LastPaymentDate: last,
		Installments:    engine.Views(st.installments, today),
	}, nil
}

// mutate runs fn in one transaction with the account row locked. When a
// Locker is configured a held advisory lock fails fast with ErrAccountBusy.
func (s *Service) mutate(ctx context.Context, accountID snowflake.ID, fn func(tx *gorm.DB, st *accountState) error) error {
	release, err := s.acquire(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		st, err := s.loadState(ctx, tx, account)
		if err != nil {
			return err
		}
		return fn(tx, st)
	})
}

func (s *Service) acquire(ctx context.Context, accountID snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := "feeledger:account:" + accountID.String()
	token, ok, err := s.locker.TryLock(ctx, key, accountLockTTL)
	if err != nil {
		// the row lock still serializes writers
		s.log.Warn("advisory lock unavailable", zap.String("key", key), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, domain.NewLedgerError(domain.ErrAccountBusy, 0,
			"another fee operation is in progress for this account")
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release advisory lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) lockAccount(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (*domain.StudentFeeAccount, error) {
	waitStart := time.Now()
	account, err := s.repo.LockAccount(ctx, tx, accountID)
	s.ledger.ObserveLockWait(metrics.LockResourceAccount, time.Since(waitStart))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewLedgerError(domain.ErrAccountNotFound, 0,
			fmt.Sprintf("fee account %s not found", accountID))
	}
	return account, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (*accountState, error) {
	account, err := s.repo.FindAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewLedgerError(domain.ErrAccountNotFound, 0,
			fmt.Sprintf("fee account %s not found", accountID))
	}
	return s.loadState(ctx, tx, account)
}

func (s *Service) loadState(ctx context.Context, tx *gorm.DB, account *domain.StudentFeeAccount) (*accountState, error) {
	plan, err := s.planRepo.FindPlan(ctx, tx, account.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.NewLedgerError(domain.ErrPlanNotFound, 0,
			fmt.Sprintf("fee plan %s not found", account.PlanID))
	}
	installments, err := s.repo.ListInstallments(ctx, tx, account.ID)
	if err != nil {
		return nil, err
	}
	return &accountState{account: account, plan: plan, installments: installments}, nil
}

func (s *Service) findEnrollment(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*enrollmentdomain.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.FindEnrollment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, domain.NewLedgerError(domain.ErrEnrollmentNotFound, 0,
			fmt.Sprintf("enrollment %s not found", id))
	}
	return enrollment, nil
}

// saveRows persists the rows whose ids are listed in changed.
func (s *Service) saveRows(ctx context.Context, tx *gorm.DB, rows []domain.Installment, changed []snowflake.ID) error {
	if len(changed) == 0 {
		return nil
	}
	set := make(map[snowflake.ID]bool, len(changed))
	for _, id := range changed {
		set[id] = true
	}
	now := s.clock.Now()
	for i := range rows {
		if !set[rows[i].ID] {
			continue
		}
		rows[i].UpdatedAt = now
		if err := s.repo.UpdateInstallment(ctx, tx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// reconcile rebuilds the cached remaining amount and reports whether the
// stored value changed.
func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, st *accountState, trigger string) (bool, error) {
	s.metrics.RecordReconciliation(ctx, trigger)
	remaining := engine.Reconcile(st.plan.TotalAmount, st.account.Discount, st.installments)
	if remaining.Equal(st.account.RemainingAmount) {
		return false, nil
	}
	st.account.RemainingAmount = remaining
	st.account.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateAccount(ctx, tx, st.account); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) view(st *accountState) domain.Account {
	rows := make([]domain.Installment, len(st.installments))
	copy(rows, st.installments)
	engine.SortByDueDate(rows)
	return domain.Account{
		StudentFeeAccount: *st.account,
		PlanTotal:         st.plan.TotalAmount,
		Installments:      engine.Views(rows, clock.Today(s.clock)),
	}
}

func (s *Service) begin(ctx context.Context, name string) (context.Context, trace.Span, time.Time) {
	ctx, span := tracing.StartSpan(ctx, name, attribute.String("component", "fee"))
	return ctx, span, time.Now()
}

func (s *Service) finish(span trace.Span, operation string, started time.Time, err error) {
	s.ledger.ObserveOperation(operation, started, err)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, metrics.ClassifyReason(err))
	}
	span.End()
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.NewLedgerError(domain.ErrInvalidID, 0, fmt.Sprintf("invalid id %q", value))
	}
	return id, nil
}
