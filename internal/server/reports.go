package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/feeledger/internal/observability/context"
	reportdomain "github.com/smallbiznis/feeledger/internal/report/domain"
)

type feeReportQuery struct {
	FranchiseID string `form:"franchise_id"`
	BatchID     string `form:"batch_id"`
	Month       string `form:"month"`
}

func (s *Server) GetFeeReport(c *gin.Context) {
	var query feeReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	franchiseID := strings.TrimSpace(query.FranchiseID)
	resp, err := s.reportSvc.Aggregate(franchiseContext(c, franchiseID), reportdomain.ReportRequest{
		FranchiseID: franchiseID,
		BatchID:     strings.TrimSpace(query.BatchID),
		Month:       strings.TrimSpace(query.Month),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFeeReminders(c *gin.Context) {
	var query reportdomain.ReminderRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	franchiseID := strings.TrimSpace(query.FranchiseID)
	resp, err := s.reportSvc.Reminders(franchiseContext(c, franchiseID), reportdomain.ReminderRequest{
		FranchiseID: franchiseID,
		BatchID:     strings.TrimSpace(query.BatchID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// franchiseContext tags the request context so service logs carry the
// franchise being reported on.
func franchiseContext(c *gin.Context, franchiseID string) context.Context {
	ctx := c.Request.Context()
	if franchiseID == "" {
		return ctx
	}
	return obscontext.WithFranchiseID(ctx, franchiseID)
}
