package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	jobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	statushookdomain "github.com/smallbiznis/orderbridge/internal/statushook/domain"
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
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
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

	if code, field, ok := validationCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: field, Code: code, Message: "invalid value"},
			},
		}
	}

	var authErr *partnerdomain.AuthError
	var apiErr *partnerdomain.APIRequestError
	var netErr *partnerdomain.TransientNetworkError
	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.As(err, &authErr), errors.As(err, &apiErr):
		return http.StatusBadGateway, errorPayload{
			Type:    "partner_error",
			Message: "partner rejected the request",
		}
	case errors.As(err, &netErr):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "partner_unavailable",
			Message: "partner unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationCode(err error) (code, field string, ok bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request", "request", true
	case errors.Is(err, statushookdomain.ErrInvalidJobID):
		return "invalid_job_id", "id", true
	case errors.Is(err, statushookdomain.ErrUnknownStatus):
		return "unknown_status", "status", true
	default:
		return "", "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, jobdomain.ErrNotFound),
		errors.Is(err, credentialdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, http.StatusText(status)
}
