package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tenancy-service/internal/middleware"
	"tenancy-service/internal/services"
)

// Response is the standard API envelope
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Success sends a successful response
func respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(middleware.ContextKeyRequestID),
		Timestamp: time.Now().UTC(),
	})
}

// respondError maps a service error onto the rejection payload. Unknown
// errors become a generic 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	if ge, ok := services.AsGateError(err); ok {
		body := gin.H{
			"success":    false,
			"error":      ge.Kind,
			"message":    ge.Message,
			"request_id": c.GetString(middleware.ContextKeyRequestID),
			"timestamp":  time.Now().UTC(),
		}
		if ge.Limits != nil {
			body["limits"] = ge.Limits
		}
		c.JSON(ge.Status, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success":    false,
		"error":      "INTERNAL_ERROR",
		"message":    "an unexpected error occurred",
		"request_id": c.GetString(middleware.ContextKeyRequestID),
		"timestamp":  time.Now().UTC(),
	})
}

// respondBadRequest reports a request-shape problem (binding, params)
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success":    false,
		"error":      "INVALID_REQUEST",
		"message":    message,
		"request_id": c.GetString(middleware.ContextKeyRequestID),
		"timestamp":  time.Now().UTC(),
	})
}
