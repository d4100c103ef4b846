package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/feeledger/internal/audit"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/internal/enrollment"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"github.com/smallbiznis/feeledger/internal/fee"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/feeplan"
	feeplandomain "github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"github.com/smallbiznis/feeledger/internal/observability"
	obslogger "github.com/smallbiznis/feeledger/internal/observability/logger"
	obstracing "github.com/smallbiznis/feeledger/internal/observability/tracing"
	"github.com/smallbiznis/feeledger/internal/receipt"
	receiptdomain "github.com/smallbiznis/feeledger/internal/receipt/domain"
	"github.com/smallbiznis/feeledger/internal/report"
	reportdomain "github.com/smallbiznis/feeledger/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	enrollment.Module,
	feeplan.Module,
	fee.Module,
	report.Module,
	receipt.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	log           *zap.Logger
	auditSvc      auditdomain.Service
	enrollmentSvc enrollmentdomain.Service
	feePlanSvc    feeplandomain.Service
	feeSvc        feedomain.Service
	reportSvc     reportdomain.Service
	receiptSvc    receiptdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Log           *zap.Logger
	AuditSvc      auditdomain.Service
	EnrollmentSvc enrollmentdomain.Service
	FeePlanSvc    feeplandomain.Service
	FeeSvc        feedomain.Service
	ReportSvc     reportdomain.Service
	ReceiptSvc    receiptdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		log:           p.Log.Named("http.server"),
		auditSvc:      p.AuditSvc,
		enrollmentSvc: p.EnrollmentSvc,
		feePlanSvc:    p.FeePlanSvc,
		feeSvc:        p.FeeSvc,
		reportSvc:     p.ReportSvc,
		receiptSvc:    p.ReceiptSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Reference data --------
	api.POST("/franchises", s.CreateFranchise)
	api.POST("/batches", s.CreateBatch)
	api.GET("/batches/:id", s.GetBatch)
	api.GET("/batches/:id/enrollments", s.ListEnrollments)
	api.POST("/enrollments", s.Enroll)
	api.GET("/enrollments/:id", s.GetEnrollment)

	// -------- Fee plans --------
	api.PUT("/batches/:id/fee-plan", s.SaveFeePlan)
	api.GET("/batches/:id/fee-plan", s.GetFeePlan)
	api.PATCH("/batches/:id/fee-plan/discount", s.UpdateFeePlanDiscount)
	api.PUT("/batches/:id/fee-plan/templates", s.ReplaceFeeTemplates)

	// -------- Accounts --------
	api.POST("/enrollments/:id/account", s.EnsureAccount)
	api.GET("/enrollments/:id/statement", s.GetStatement)
	api.GET("/accounts/:id", s.GetAccount)
	api.POST("/accounts/:id/schedule", s.GenerateSchedule)
	api.PUT("/accounts/:id/schedule", s.EditSchedule)
	api.POST("/accounts/:id/payments", s.AllocatePayment)
	api.PUT("/accounts/:id/installments", s.ApplyStatusEdits)
	api.POST("/accounts/:id/reconcile", s.ReconcileAccount)
	api.PATCH("/accounts/:id/discount", s.UpdateAccountDiscount)

	// -------- Reports --------
	api.GET("/reports/fees", s.GetFeeReport)
	api.GET("/reports/reminders", s.GetFeeReminders)

	// -------- Receipts --------
	api.GET("/receipts/:token", s.GetReceipt)
	api.GET("/receipts/:token/pdf", s.GetReceiptPDF)
	api.DELETE("/receipts/:token", s.ClearReceipt)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
