package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/cache"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	feeplandomain "github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"github.com/smallbiznis/feeledger/internal/lock"
	"github.com/smallbiznis/feeledger/internal/migration"
	"github.com/smallbiznis/feeledger/internal/observability"
	receiptdomain "github.com/smallbiznis/feeledger/internal/receipt/domain"
	reportdomain "github.com/smallbiznis/feeledger/internal/report/domain"
	"github.com/smallbiznis/feeledger/internal/scheduler"
	"github.com/smallbiznis/feeledger/internal/server"
	"github.com/smallbiznis/feeledger/pkg/db"
	"github.com/smallbiznis/feeledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fx.App
	server    *server.Server
	db        *gorm.DB
	scheduler *scheduler.Scheduler
	baseURL   string
	httpSrv   *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_FeeLifecycle(t *testing.T) {
	fixture := createFeeFixture(t, "North", "Morning")

	var account feedomain.Account
	resp, body := doJSON(t, http.MethodPost, "/v1/enrollments/"+fixture.EnrollmentID+"/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &account)
	require.Len(t, account.Installments, 2)
	assert.True(t, account.RemainingAmount.Equal(money.FromInt(300)))
	assert.True(t, account.Installments[0].DueDate.Before(account.Installments[1].DueDate))

	accountID := account.ID.String()

	var payment struct {
		Payment feedomain.PaymentResult `json:"payment"`
		Receipt *receiptdomain.Receipt  `json:"receipt"`
	}
	resp, body = doJSON(t, http.MethodPost, "/v1/accounts/"+accountID+"/payments", map[string]any{"amount": "150"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &payment)

	assert.True(t, payment.Payment.Applied.Equal(money.FromInt(150)))
	assert.True(t, payment.Payment.Leftover.IsZero())
	assert.Equal(t, feedomain.StatusPaid, payment.Payment.Account.Installments[0].Status)
	assert.True(t, payment.Payment.Account.Installments[1].PayedAmount.Equal(money.FromInt(50)))
	assert.True(t, payment.Payment.Account.RemainingAmount.Equal(money.FromInt(150)))

	require.NotNil(t, payment.Receipt)
	assert.Equal(t, "Asha", payment.Receipt.StudentName)
	assert.Equal(t, "Morning", payment.Receipt.BatchName)
	assert.Equal(t, "North", payment.Receipt.FranchiseName)
	assert.Len(t, payment.Receipt.Lines, 2)

	resp, body = doJSON(t, http.MethodGet, "/v1/receipts/"+payment.Receipt.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodGet, "/v1/receipts/"+payment.Receipt.Token+"/pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp, _ = doJSON(t, http.MethodDelete, "/v1/receipts/"+payment.Receipt.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, "/v1/receipts/"+payment.Receipt.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var statement feedomain.Statement
	resp, body = doJSON(t, http.MethodGet, "/v1/enrollments/"+fixture.EnrollmentID+"/statement", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &statement)
	assert.True(t, statement.TotalAmount.Equal(money.FromInt(300)))
	// only fully paid rows count as paid; the partial 50 stays pending
	assert.True(t, statement.TotalPaid.Equal(money.FromInt(100)))
	assert.True(t, statement.TotalPending.Equal(money.FromInt(150)))
	require.NotNil(t, statement.LastPaymentDate)

	var report reportdomain.Report
	resp, body = doJSON(t, http.MethodGet, "/v1/reports/fees?batch_id="+fixture.BatchID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &report)
	assert.True(t, report.Filtered.Fees.Equal(money.FromInt(300)))
	assert.True(t, report.Filtered.Received.Equal(money.FromInt(150)))
	assert.True(t, report.Filtered.Pending.Equal(money.FromInt(150)))
	assert.True(t, report.Filtered.Overdue.IsZero())

	var logs []auditdomain.AuditLog
	resp, body = doJSON(t, http.MethodGet, "/v1/audit-logs?target_type="+auditdomain.TargetAccount+"&target_id="+accountID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &logs)
	actions := make([]string, 0, len(logs))
	for _, entry := range logs {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, auditdomain.ActionAccountCreated)
	assert.Contains(t, actions, auditdomain.ActionScheduleGenerated)
}

func TestE2E_PaidInstallmentIsLocked(t *testing.T) {
	fixture := createFeeFixture(t, "South", "Evening")

	var account feedomain.Account
	resp, body := doJSON(t, http.MethodPost, "/v1/enrollments/"+fixture.EnrollmentID+"/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &account)
	accountID := account.ID.String()

	resp, body = doJSON(t, http.MethodPost, "/v1/accounts/"+accountID+"/payments", map[string]any{"amount": 100})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPut, "/v1/accounts/"+accountID+"/installments", map[string]any{
		"edits": []map[string]any{{
			"installment_id": account.Installments[0].ID.String(),
			"status":         "pending",
			"payed_amount":   "0",
		}},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "locked_installment")

	resp, body = doJSON(t, http.MethodPost, "/v1/accounts/"+accountID+"/payments", map[string]any{
		"amount":          "500",
		"reject_leftover": true,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "overpayment")
}

func TestE2E_ReconcileSweep(t *testing.T) {
	fixture := createFeeFixture(t, "East", "Weekend")

	var account feedomain.Account
	resp, body := doJSON(t, http.MethodPost, "/v1/enrollments/"+fixture.EnrollmentID+"/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &account)

	// drift the stored balance behind the ledger's back
	require.NoError(t, env.db.Model(&feedomain.StudentFeeAccount{}).
		Where("id = ?", account.ID).
		Update("remaining_amount", money.FromInt(1)).Error)

	require.NoError(t, env.scheduler.ReconcileSweepJob(context.Background()))

	resp, body = doJSON(t, http.MethodGet, "/v1/accounts/"+account.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &account)
	assert.True(t, account.RemainingAmount.Equal(money.FromInt(300)))
}

func TestE2E_UnknownEnrollment(t *testing.T) {
	resp, body := doJSON(t, http.MethodPost, "/v1/enrollments/12345/account", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}

type feeFixture struct {
	FranchiseID  string
	BatchID      string
	EnrollmentID string
}

// createFeeFixture registers one student in a fresh batch whose plan has two
// templates: 100 due after 30 days, then 200 due 60 days later.
func createFeeFixture(t *testing.T, franchiseName, batchName string) feeFixture {
	t.Helper()

	var franchise enrollmentdomain.Franchise
	resp, body := doJSON(t, http.MethodPost, "/v1/franchises", map[string]any{"name": franchiseName})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	decodeData(t, body, &franchise)

	var batch enrollmentdomain.Batch
	resp, body = doJSON(t, http.MethodPost, "/v1/batches", map[string]any{
		"franchise_id": franchise.ID.String(),
		"name":         batchName,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	decodeData(t, body, &batch)

	var plan feeplandomain.Plan
	resp, body = doJSON(t, http.MethodPut, "/v1/batches/"+batch.ID.String()+"/fee-plan", map[string]any{
		"discount": "0",
		"templates": []map[string]any{
			{"amount": "100", "repayment_period_days": 30},
			{"amount": "200", "repayment_period_days": 60},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeData(t, body, &plan)
	require.Len(t, plan.Templates, 2)

	var enrollment enrollmentdomain.Enrollment
	resp, body = doJSON(t, http.MethodPost, "/v1/enrollments", map[string]any{
		"student_id":          mustNewID(t).String(),
		"student_name":        "Asha",
		"batch_id":            batch.ID.String(),
		"registration_number": "REG-" + batchName,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	decodeData(t, body, &enrollment)

	return feeFixture{
		FranchiseID:  franchise.ID.String(),
		BatchID:      batch.ID.String(),
		EnrollmentID: enrollment.ID.String(),
	}
}

func startEnv() (*testEnv, error) {
	var (
		srv         *server.Server
		dbConn      *gorm.DB
		schedulerSv *scheduler.Scheduler
	)

	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(1)
		}),
		db.Module,
		clock.Module,
		cache.Module,
		lock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
		fx.Populate(&srv, &dbConn, &schedulerSv),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:       app,
		server:    srv,
		db:        dbConn,
		scheduler: schedulerSv,
		baseURL:   httpSrv.URL,
		httpSrv:   httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

// setDefaultEnv points the app at a private in-memory database. A single
// connection keeps the shared-cache database alive and serializes writers.
func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("HTTP_ADDR", "127.0.0.1:0")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_NAME", "file:feeledger_e2e?mode=memory&cache=shared")
	setEnvIfEmpty("DATABASE_AUTO_MIGRATE", "true")
	setEnvIfEmpty("DATABASE_MAX_OPEN_CONN", "1")
	setEnvIfEmpty("DATABASE_CONN_MAX_LIFETIME", "0")
	setEnvIfEmpty("DATABASE_CONN_MAX_IDLE_TIME", "0")
	setEnvIfEmpty("SCHEDULER_ENABLED", "false")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

var idNode *snowflake.Node

func mustNewID(t *testing.T) snowflake.ID {
	t.Helper()
	if idNode == nil {
		node, err := snowflake.NewNode(2)
		require.NoError(t, err)
		idNode = node
	}
	return idNode.Generate()
}

func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(body, &envelope), string(body))
	require.NoError(t, json.Unmarshal(envelope.Data, out), string(envelope.Data))
}

func doJSON(t *testing.T, method, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.baseURL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}
