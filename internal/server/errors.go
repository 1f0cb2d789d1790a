package server

import (
	"errors"
	"net/http"

	auditdomain "github.com/drivelane/paycore/internal/audit/domain"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	refunddomain "github.com/drivelane/paycore/internal/refund/domain"
	"github.com/gin-gonic/gin"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Errors     []ValidationError `json:"errors,omitempty"`
	Score      *int              `json:"score,omitempty"`
	Level      string            `json:"level,omitempty"`
	Indicators []string          `json:"indicators,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware converts errors attached to the gin context
// into a uniform JSON error body after the handler chain runs.
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

func newValidationError(field, code, message string) error {
	return &validationErrors{
		errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

type validationErrors struct {
	errors []ValidationError
}

func (v *validationErrors) Error() string {
	return "validation error"
}

func mapError(err error) (int, errorPayload) {
	var vErr *validationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.errors,
		}
	}

	var fraudErr *paymentdomain.FraudRejectedError
	if errors.As(err, &fraudErr) {
		score := fraudErr.Score
		return http.StatusUnprocessableEntity, errorPayload{
			Type:       "fraud_rejected",
			Message:    "payment rejected by fraud screening",
			Score:      &score,
			Level:      fraudErr.Level,
			Indicators: fraudErr.Indicators,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidPaymentData),
		errors.Is(err, refunddomain.ErrInvalidRefundData),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrPaymentNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "payment not found",
		}
	case errors.Is(err, refunddomain.ErrRefundNotEligible):
		return http.StatusConflict, errorPayload{
			Type:    "refund_not_eligible",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrProcessingFailed),
		errors.Is(err, refunddomain.ErrProcessingFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "processing_failed",
			Message: "processing failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
