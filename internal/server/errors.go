package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	feeplandomain "github.com/smallbiznis/feeledger/internal/feeplan/domain"
	receiptdomain "github.com/smallbiznis/feeledger/internal/receipt/domain"
	reportdomain "github.com/smallbiznis/feeledger/internal/report/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type          string            `json:"type"`
	Message       string            `json:"message"`
	InstallmentID string            `json:"installment_id,omitempty"`
	Errors        []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

// bindError maps a request body decode failure. Malformed amounts surface as
// invalid_amount so clients see the same code the ledger uses.
func bindError(err error) error {
	if errors.Is(err, money.ErrInvalidMoney) {
		return newValidationError("amount", feedomain.ErrInvalidAmount.Error(), "amount must be a decimal with at most two fractional digits")
	}
	return invalidRequestError()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:          "validation_error",
			Message:       "validation error",
			InstallmentID: installmentOf(err),
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: ledgerMessage(err, validationErrorMessage(code)),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:          errorCode(err, "conflict"),
			Message:       ledgerMessage(err, "conflict"),
			InstallmentID: installmentOf(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:          errorCode(err, "not_found"),
			Message:       ledgerMessage(err, "not found"),
			InstallmentID: installmentOf(err),
		}
	case errors.Is(err, feedomain.ErrInconsistentState):
		return http.StatusInternalServerError, errorPayload{
			Type:          "inconsistent_state",
			Message:       ledgerMessage(err, "inconsistent ledger state"),
			InstallmentID: installmentOf(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the same type and code
// the client receives.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", code
	case status == http.StatusConflict:
		return "conflict", code
	case status == http.StatusNotFound:
		return "not_found", code
	default:
		return "validation", code
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func asLedgerError(err error) *feedomain.LedgerError {
	var le *feedomain.LedgerError
	if errors.As(err, &le) && le != nil {
		return le
	}
	return nil
}

func ledgerMessage(err error, fallback string) string {
	if le := asLedgerError(err); le != nil && strings.TrimSpace(le.Message) != "" {
		return le.Message
	}
	return fallback
}

func installmentOf(err error) string {
	if le := asLedgerError(err); le != nil && le.InstallmentID != 0 {
		return le.InstallmentID.String()
	}
	return ""
}

func errorCode(err error, fallback string) string {
	if le := asLedgerError(err); le != nil && le.Code() != "" {
		return le.Code()
	}
	for _, sentinel := range conflictErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return fallback
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, feedomain.ErrInvalidID),
		errors.Is(err, feedomain.ErrInvalidAmount),
		errors.Is(err, feedomain.ErrInvalidPeriod),
		errors.Is(err, feedomain.ErrInvalidStatus),
		errors.Is(err, enrollmentdomain.ErrInvalidID),
		errors.Is(err, enrollmentdomain.ErrInvalidName),
		errors.Is(err, enrollmentdomain.ErrInvalidDate),
		errors.Is(err, feeplandomain.ErrInvalidID),
		errors.Is(err, feeplandomain.ErrInvalidAmount),
		errors.Is(err, feeplandomain.ErrInvalidPeriod),
		errors.Is(err, feeplandomain.ErrInvalidDiscount),
		errors.Is(err, reportdomain.ErrInvalidID),
		errors.Is(err, reportdomain.ErrInvalidMonth),
		errors.Is(err, receiptdomain.ErrInvalidToken),
		errors.Is(err, receiptdomain.ErrEmptyPayment),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

var conflictErrors = []error{
	ErrConflict,
	feedomain.ErrLockedInstallment,
	feedomain.ErrOutOfOrderPayment,
	feedomain.ErrDuplicateSchedule,
	feedomain.ErrOverpayment,
	feedomain.ErrAccountBusy,
	enrollmentdomain.ErrAlreadyEnrolled,
	feeplandomain.ErrPlanExists,
}

func isConflictError(err error) bool {
	for _, sentinel := range conflictErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, feedomain.ErrAccountNotFound),
		errors.Is(err, feedomain.ErrEnrollmentNotFound),
		errors.Is(err, feedomain.ErrPlanNotFound),
		errors.Is(err, feedomain.ErrInstallmentNotFound),
		errors.Is(err, enrollmentdomain.ErrFranchiseNotFound),
		errors.Is(err, enrollmentdomain.ErrBatchNotFound),
		errors.Is(err, enrollmentdomain.ErrEnrollmentNotFound),
		errors.Is(err, feeplandomain.ErrBatchNotFound),
		errors.Is(err, feeplandomain.ErrPlanNotFound),
		errors.Is(err, receiptdomain.ErrReceiptNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if le := asLedgerError(err); le != nil && le.Code() != "" {
		return le.Code()
	}
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
