package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	calldomain "github.com/cubridge/voiceline/internal/call/domain"
	eventdomain "github.com/cubridge/voiceline/internal/event/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
	ErrInternal        = errors.New("internal_error")
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

// mapError is the error taxonomy: tenant lookups that miss are terminal
// 404s, configuration and dispatch problems are 500s the caller cannot fix
// with a retry of the same request, and parse failures on the webhook are
// the one case the provider is told about.
func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, calldomain.ErrMissingTargetNumber):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, tenantdomain.ErrTenantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "tenant_not_found", Message: "tenant not found"}

	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{Type: "too_many_requests", Message: "call initiation rate exceeded"}

	case errors.Is(err, calldomain.ErrMissingProviderCredentials),
		errors.Is(err, tenantdomain.ErrMissingOutboundLine):
		return http.StatusInternalServerError, errorPayload{Type: "configuration_error", Message: err.Error()}

	case errors.Is(err, calldomain.ErrDispatchFailed):
		return http.StatusInternalServerError, errorPayload{Type: "dispatch_error", Message: err.Error()}

	case errors.Is(err, eventdomain.ErrEventParse):
		return http.StatusInternalServerError, errorPayload{Type: "event_parse_error", Message: err.Error()}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

// classifyErrorForLog feeds the request logger a stable (class, code) pair
// without leaking raw error text into log labels.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "server_error", payload.Type
	case status >= 400:
		return "client_error", payload.Type
	default:
		return "ok", payload.Type
	}
}
