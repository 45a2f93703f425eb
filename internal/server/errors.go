package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/netbill/internal/billingerr"
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
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Details map[string]any    `json:"details,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate_limited")
	ErrNotFound     = billingerr.New(billingerr.KindNotFound, "route_not_found", "not found")
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

// statusForKind maps ledger error kinds onto HTTP statuses.
func statusForKind(kind billingerr.Kind) int {
	switch kind {
	case billingerr.KindValidation:
		return http.StatusBadRequest
	case billingerr.KindForbidden:
		return http.StatusForbidden
	case billingerr.KindNotFound:
		return http.StatusNotFound
	case billingerr.KindOverpayment, billingerr.KindConflict:
		return http.StatusConflict
	case billingerr.KindIntegrity:
		return http.StatusLocked
	case billingerr.KindSequenceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    string(billingerr.KindInternal),
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    string(billingerr.KindValidation),
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	}

	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	}

	kind := billingerr.KindOf(err)
	payload := errorPayload{
		Type:    string(kind),
		Message: billingerr.Message(err),
	}

	var (
		sentinel    *billingerr.Error
		overpayment *billingerr.OverpaymentError
		integrity   *billingerr.IntegrityError
	)
	switch {
	case errors.As(err, &overpayment):
		payload.Code = "overpayment"
		payload.Details = map[string]any{
			"bill_id":          overpayment.BillID,
			"amount":           overpayment.Amount,
			"remaining_amount": overpayment.Remaining,
		}
	case errors.As(err, &integrity):
		payload.Code = "reconciliation_hold"
		payload.Details = map[string]any{
			"bill_id": integrity.BillID,
			"reason":  integrity.Reason,
		}
	case errors.As(err, &sentinel):
		payload.Code = sentinel.Code
	}
	if kind == billingerr.KindInternal {
		payload.Message = "internal server error"
	}
	return statusForKind(kind), payload
}

// classifyErrorForLog feeds the request logger.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return string(billingerr.KindValidation), "invalid_request"
	}
	if errors.Is(err, ErrUnauthorized) {
		return "unauthorized", "unauthorized"
	}
	if errors.Is(err, ErrRateLimited) {
		return "rate_limited", "rate_limited"
	}
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
