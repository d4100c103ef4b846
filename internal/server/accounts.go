package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	receiptdomain "github.com/smallbiznis/feeledger/internal/receipt/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
	"go.uber.org/zap"
)

func (s *Server) EnsureAccount(c *gin.Context) {
	resp, err := s.feeSvc.EnsureAccount(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStatement(c *gin.Context) {
	resp, err := s.feeSvc.Statement(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAccount(c *gin.Context) {
	resp, err := s.feeSvc.GetAccount(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateSchedule(c *gin.Context) {
	resp, err := s.feeSvc.GenerateSchedule(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type editScheduleRequest struct {
	Rows []feedomain.ScheduleRow `json:"rows"`
}

func (s *Server) EditSchedule(c *gin.Context) {
	var req editScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.feeSvc.EditSchedule(c.Request.Context(), feedomain.EditScheduleRequest{
		AccountID: strings.TrimSpace(c.Param("id")),
		Rows:      req.Rows,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type allocatePaymentRequest struct {
	Amount         money.Money `json:"amount"`
	RejectLeftover bool        `json:"reject_leftover"`
}

type paymentResponse struct {
	Payment feedomain.PaymentResult `json:"payment"`
	Receipt *receiptdomain.Receipt  `json:"receipt,omitempty"`
}

// AllocatePayment commits the payment first. A receipt that cannot be issued
// is logged and omitted from the response.
func (s *Server) AllocatePayment(c *gin.Context) {
	var req allocatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	payment, err := s.feeSvc.AllocatePayment(ctx, feedomain.AllocatePaymentRequest{
		AccountID:      strings.TrimSpace(c.Param("id")),
		Amount:         req.Amount,
		RejectLeftover: req.RejectLeftover,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := paymentResponse{Payment: payment}
	if s.receiptSvc != nil && payment.Applied.IsPositive() {
		receipt, err := s.receiptSvc.Issue(ctx, payment)
		if err != nil {
			s.log.Warn("receipt not issued", zap.String("account_id", payment.Account.ID.String()), zap.Error(err))
		} else {
			resp.Receipt = &receipt
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type statusEditsRequest struct {
	Edits []feedomain.StatusEdit `json:"edits"`
}

func (s *Server) ApplyStatusEdits(c *gin.Context) {
	var req statusEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.feeSvc.ApplyManualStatusEdits(c.Request.Context(), feedomain.StatusEditsRequest{
		AccountID: strings.TrimSpace(c.Param("id")),
		Edits:     req.Edits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileAccount(c *gin.Context) {
	resp, err := s.feeSvc.ReconcileBalance(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAccountDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.feeSvc.UpdateAccountDiscount(c.Request.Context(), feedomain.UpdateDiscountRequest{
		AccountID: strings.TrimSpace(c.Param("id")),
		Discount:  req.Discount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
