package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/fee/engine"
	"github.com/smallbiznis/feeledger/internal/report/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type lineRow struct {
	EnrollmentID        snowflake.ID
	StudentID           snowflake.ID
	StudentName         string
	RegistrationNumber  string
	RegisteredAt        time.Time
	BatchID             snowflake.ID
	BatchName           string
	FranchiseID         snowflake.ID
	FranchiseName       string
	InstallmentID       snowflake.ID
	AccountID           snowflake.ID
	DueDate             time.Time
	Amount              money.Money
	PayedAmount         money.Money
	Status              string
	PaymentDate         *time.Time
	RepaymentPeriodDays int
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) ([]domain.Line, error) {
	return r.list(lineQuery(ctx, db, franchiseID, batchID))
}

func (r *repo) ListPendingDueBy(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID, until time.Time) ([]domain.Line, error) {
	stmt := lineQuery(ctx, db, franchiseID, batchID).
		Where("i.status = ?", feedomain.StatusPending).
		Where("i.due_date <= ?", until)
	return r.list(stmt)
}

func (r *repo) list(stmt *gorm.DB) ([]domain.Line, error) {
	var rows []lineRow
	if err := stmt.Order("i.due_date asc, i.id asc").Scan(&rows).Error; err != nil {
		return nil, err
	}

	lines := make([]domain.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.Line{
			Scope: enrollmentdomain.Scope{
				EnrollmentID:       row.EnrollmentID,
				StudentID:          row.StudentID,
				StudentName:        row.StudentName,
				RegistrationNumber: row.RegistrationNumber,
				RegisteredAt:       row.RegisteredAt,
				BatchID:            row.BatchID,
				BatchName:          row.BatchName,
				FranchiseID:        row.FranchiseID,
				FranchiseName:      row.FranchiseName,
			},
			Installment: feedomain.Installment{
				ID:                  row.InstallmentID,
				AccountID:           row.AccountID,
				DueDate:             row.DueDate,
				Amount:              row.Amount,
				PayedAmount:         row.PayedAmount,
				Status:              feedomain.InstallmentStatus(row.Status),
				PaymentDate:         row.PaymentDate,
				RepaymentPeriodDays: row.RepaymentPeriodDays,
			},
		})
	}
	return lines, nil
}

type totalsRow struct {
	Fees     money.Money
	Received money.Money
	Pending  money.Money
	Overdue  money.Money
}

func (r *repo) SumTotals(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID, today time.Time) (engine.Totals, error) {
	var row totalsRow
	err := installmentsInScope(ctx, db, franchiseID, batchID).
		Select(`COALESCE(SUM(i.amount), 0) AS fees,
			COALESCE(SUM(i.payed_amount), 0) AS received,
			COALESCE(SUM(i.amount - i.payed_amount), 0) AS pending,
			COALESCE(SUM(CASE WHEN i.status = ? AND i.due_date < ? THEN i.amount - i.payed_amount ELSE 0 END), 0) AS overdue`,
			feedomain.StatusPending, clock.Date(today)).
		Scan(&row).Error
	if err != nil {
		return engine.Totals{}, err
	}
	return engine.Totals{
		Fees:     row.Fees,
		Received: row.Received,
		Pending:  row.Pending,
		Overdue:  row.Overdue,
	}, nil
}

func lineQuery(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) *gorm.DB {
	return installmentsInScope(ctx, db, franchiseID, batchID).
		Select(`e.id AS enrollment_id, e.student_id, e.student_name, e.registration_number, e.registered_at,
			b.id AS batch_id, b.name AS batch_name, f.id AS franchise_id, f.name AS franchise_name,
			i.id AS installment_id, i.account_id, i.due_date, i.amount, i.payed_amount, i.status,
			i.payment_date, i.repayment_period_days`)
}

func installmentsInScope(ctx context.Context, db *gorm.DB, franchiseID, batchID snowflake.ID) *gorm.DB {
	stmt := db.WithContext(ctx).
		Table("installments AS i").
		Joins("JOIN student_fee_accounts AS a ON a.id = i.account_id").
		Joins("JOIN enrollments AS e ON e.id = a.enrollment_id").
		Joins("JOIN batches AS b ON b.id = e.batch_id").
		Joins("JOIN franchises AS f ON f.id = b.franchise_id")
	if franchiseID != 0 {
		stmt = stmt.Where("f.id = ?", franchiseID)
	}
	if batchID != 0 {
		stmt = stmt.Where("b.id = ?", batchID)
	}
	return stmt
}
