package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/gapline/internal/config"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/smallbiznis/gapline/internal/observability/logger"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"go.uber.org/zap"
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
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrActionInProgress   = errors.New("action_in_progress")
	ErrServiceUnavailable = errors.New("service_unavailable")
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
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("error_type", payload.Type),
				zap.Error(lastErr.Err),
			)
		}
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

// errorRule maps a family of sentinel errors to one response shape. Rules are checked
// in order and the first match wins.
type errorRule struct {
	status  int
	kind    string
	message func(error) string
	targets []error
}

func fixed(message string) func(error) string {
	return func(error) string { return message }
}

var errorRules = []errorRule{
	{http.StatusUnauthorized, "unauthorized", fixed("unauthorized"), []error{ErrUnauthorized}},
	{http.StatusForbidden, "forbidden", fixed("forbidden"), []error{ErrForbidden}},
	{http.StatusConflict, "action_in_progress", fixed("the same action is already running for this tenant"), []error{ErrActionInProgress}},
	{http.StatusConflict, "conflict", conflictMessage, []error{
		ErrConflict,
		storedomain.ErrAlreadyEnrolled,
		storedomain.ErrCategoryExists,
		tenantdomain.ErrSlugTaken,
	}},
	{http.StatusNotFound, "not_found", fixed("not found"), []error{
		ErrNotFound,
		storedomain.ErrNotFound,
		tenantdomain.ErrNotFound,
		gorm.ErrRecordNotFound,
	}},
	{http.StatusTooManyRequests, "rate_limited", fixed("too many requests"), []error{ErrRateLimited}},
	{http.StatusServiceUnavailable, "service_unavailable", fixed("service unavailable"), []error{
		ErrServiceUnavailable,
		ratelimit.ErrUnavailable,
		creditdomain.ErrLedgerContention,
	}},
}

// validationTargets become a single-entry 400 whose code is the sentinel's text.
var validationTargets = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	storedomain.ErrInvalidKey,
	storedomain.ErrInvalidName,
	storedomain.ErrInvalidWeights,
	creditdomain.ErrInvalidAction,
	plandomain.ErrInvalidFeature,
	tenantdomain.ErrInvalidName,
	tenantdomain.ErrInvalidPlan,
	tenantdomain.ErrInvalidStatus,
	tenantdomain.ErrInvalidID,
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: "validation error", Errors: vErr.Errors}
	}

	// A plan the registry cannot resolve is our bug, never the caller's.
	if errors.Is(err, config.ErrConfiguration) {
		return http.StatusInternalServerError, errorPayload{Type: "configuration_error", Message: "configuration error"}
	}

	if target := firstMatch(err, validationTargets); target != nil {
		code := target.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: fieldFromCode(code), Code: code, Message: messageFromCode(code)}},
		}
	}

	for _, rule := range errorRules {
		if firstMatch(err, rule.targets) != nil {
			return rule.status, errorPayload{Type: rule.kind, Message: rule.message(err)}
		}
	}
	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}

func firstMatch(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, storedomain.ErrAlreadyEnrolled):
		return "account is already enrolled"
	case errors.Is(err, storedomain.ErrCategoryExists):
		return "category already exists"
	default:
		return "conflict"
	}
}

func fieldFromCode(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	return strings.TrimPrefix(code, "invalid_")
}

func messageFromCode(code string) string {
	if code == "invalid_request" {
		return "invalid request"
	}
	return "invalid value"
}
