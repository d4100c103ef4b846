package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
)

const dateOnlyLayout = "2006-01-02"

type createFranchiseRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateFranchise(c *gin.Context) {
	var req createFranchiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.enrollmentSvc.CreateFranchise(c.Request.Context(), enrollmentdomain.CreateFranchiseRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type createBatchRequest struct {
	FranchiseID string `json:"franchise_id"`
	Name        string `json:"name"`
}

func (s *Server) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.enrollmentSvc.CreateBatch(c.Request.Context(), enrollmentdomain.CreateBatchRequest{
		FranchiseID: strings.TrimSpace(req.FranchiseID),
		Name:        strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetBatch(c *gin.Context) {
	resp, err := s.enrollmentSvc.GetBatch(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEnrollments(c *gin.Context) {
	resp, err := s.enrollmentSvc.ListEnrollments(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type enrollRequest struct {
	StudentID          string `json:"student_id"`
	StudentName        string `json:"student_name"`
	BatchID            string `json:"batch_id"`
	RegistrationNumber string `json:"registration_number"`
	// RegisteredAt accepts RFC 3339 or a plain date.
	RegisteredAt string `json:"registered_at"`
}

func (s *Server) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	registeredAt, err := parseDate(req.RegisteredAt)
	if err != nil {
		AbortWithError(c, newValidationError("registered_at", "invalid_registered_at", "invalid registered_at"))
		return
	}

	resp, err := s.enrollmentSvc.Enroll(c.Request.Context(), enrollmentdomain.EnrollRequest{
		StudentID:          strings.TrimSpace(req.StudentID),
		StudentName:        strings.TrimSpace(req.StudentName),
		BatchID:            strings.TrimSpace(req.BatchID),
		RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
		RegisteredAt:       registeredAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetEnrollment(c *gin.Context) {
	resp, err := s.enrollmentSvc.GetEnrollment(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// parseDate returns the zero time for an empty value, which the service
// reads as today.
func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed, nil
	}
	return time.Parse(dateOnlyLayout, trimmed)
}
