package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetReceipt(c *gin.Context) {
	resp, err := s.receiptSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReceiptPDF(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	receipt, err := s.receiptSvc.Get(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	doc, err := s.receiptSvc.RenderPDF(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+receipt.FileName()+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) ClearReceipt(c *gin.Context) {
	if err := s.receiptSvc.Clear(c.Request.Context(), strings.TrimSpace(c.Param("token"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
