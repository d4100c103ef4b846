package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	feeplandomain "github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

type saveFeePlanRequest struct {
	Discount  money.Money                   `json:"discount"`
	Templates []feeplandomain.TemplateInput `json:"templates"`
}

// SaveFeePlan creates the batch plan or replaces its discount and templates.
func (s *Server) SaveFeePlan(c *gin.Context) {
	var req saveFeePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.feePlanSvc.SavePlan(c.Request.Context(), feeplandomain.SavePlanRequest{
		BatchID:   strings.TrimSpace(c.Param("id")),
		Discount:  req.Discount,
		Templates: req.Templates,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFeePlan(c *gin.Context) {
	resp, err := s.feePlanSvc.GetPlan(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type discountRequest struct {
	Discount money.Money `json:"discount"`
}

func (s *Server) UpdateFeePlanDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.feePlanSvc.UpdateDiscount(c.Request.Context(), feeplandomain.UpdateDiscountRequest{
		BatchID:  strings.TrimSpace(c.Param("id")),
		Discount: req.Discount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type replaceTemplatesRequest struct {
	Templates []feeplandomain.TemplateInput `json:"templates"`
}

func (s *Server) ReplaceFeeTemplates(c *gin.Context) {
	var req replaceTemplatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.feePlanSvc.ReplaceTemplates(c.Request.Context(), feeplandomain.ReplaceTemplatesRequest{
		BatchID:   strings.TrimSpace(c.Param("id")),
		Templates: req.Templates,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
