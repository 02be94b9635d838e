// file: internal/server/error_handler.go
// version: 2.0.0
// guid: 5d6e7f8a-9b0c-1d2e-3f4a-5b6c7d8e9f0a

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metadata"
	"github.com/jdfalk/mediashare/internal/operations"
)

// ErrorResponse provides a consistent error response format
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status int    `json:"status"`
}

// RespondWithError sends a standardized error response and logs the error
func RespondWithError(c *gin.Context, statusCode int, message string, code string) {
	logErrorWithContext(c, statusCode, message)

	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:  message,
		Code:   code,
		Status: statusCode,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error response
func RespondWithBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, message, "BAD_REQUEST")
}

// RespondWithNotFound sends a 404 Not Found error response
func RespondWithNotFound(c *gin.Context, resourceType string, id string) {
	message := resourceType + " not found"
	if id != "" {
		message = message + ": " + id
	}
	RespondWithError(c, http.StatusNotFound, message, "NOT_FOUND")
}

// RespondWithInternalError sends a 500 Internal Server Error response
func RespondWithInternalError(c *gin.Context, message string) {
	RespondWithError(c, http.StatusInternalServerError, message, "INTERNAL_ERROR")
}

// RespondWithUnavailable sends a 503 when a bounded resource is saturated.
func RespondWithUnavailable(c *gin.Context, message string) {
	c.Header("Retry-After", "30")
	RespondWithError(c, http.StatusServiceUnavailable, message, "UNAVAILABLE")
}

// RespondWithConflict sends a 409 Conflict error response
func RespondWithConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, message, "CONFLICT")
}

// RespondWithForbidden sends a 403 Forbidden error response
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, message, "FORBIDDEN")
}

// RespondWithServiceError maps a domain error to its HTTP status. Unknown
// errors are 500s with a generic message; the detail only goes to the log.
func RespondWithServiceError(c *gin.Context, resource, id string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, archive.ErrSourceNotFound),
		errors.Is(err, archive.ErrJobNotFound),
		errors.Is(err, archive.ErrJobNotReady):
		RespondWithNotFound(c, resource, id)
	case errors.Is(err, catalog.ErrOutsideRoot):
		RespondWithForbidden(c, "path is outside the library")
	case errors.Is(err, catalog.ErrNoLibrary):
		RespondWithError(c, http.StatusConflict, "no library folder selected", "NO_LIBRARY")
	case errors.Is(err, metadata.ErrInvalidName):
		RespondWithBadRequest(c, err.Error())
	case errors.Is(err, operations.ErrQueueFull), errors.Is(err, operations.ErrQueueClosed):
		RespondWithUnavailable(c, "archive queue is full, try again later")
	default:
		logging.Error().Err(err).Str("path", c.Request.URL.Path).Str("request_id", RequestID(c)).Msg("unhandled service error")
		RespondWithInternalError(c, "internal error")
	}
}

// logErrorWithContext logs an error with request context for debugging
func logErrorWithContext(c *gin.Context, statusCode int, message string) {
	event := logging.Warn()
	if statusCode >= 500 {
		event = logging.Error()
	}
	event.
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", statusCode).
		Str("client_ip", c.ClientIP()).
		Str("request_id", RequestID(c)).
		Msg(message)
}

// ParseQueryBool parses a boolean query parameter with a default value
func ParseQueryBool(c *gin.Context, key string, defaultValue bool) bool {
	valueStr := c.DefaultQuery(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.ToLower(valueStr) == "true" || valueStr == "1"
}

// wantsJSON reports whether the client asked for JSON instead of HTML.
func wantsJSON(c *gin.Context) bool {
	if c.Query("format") == "json" {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
