// Package handlers implements the messaging, contact and analytics endpoints
// and the provider status webhook.
//
// Failures are written as ErrorResponse with a stable machine-readable code:
//
//	HTTP/1.1 404 Not Found
//	{"request_id":"123e4567-e89b-12d3-a456-426614174000","code":"not_found","message":"message not found"}
//
// Sends and contact operations answer with SuccessResponse:
//
//	HTTP/1.1 200 OK
//	{"success":true,"message":"SMS sent successfully","data":{...}}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sms-backend/internal/http/middleware"
)

// ErrorResponse is the error body of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// One of the ErrCode* constants
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"message not found"`
}

// SuccessResponse wraps send and contact results.
type SuccessResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"SMS sent successfully"`
	Data    any    `json:"data,omitempty"`
}

// fail writes an ErrorResponse and aborts the chain. 5xx responses are
// logged at error level on the request logger; client errors are not.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail to the router's NoRoute/NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func success(c *gin.Context, msg string, data any) {
	ok(c, http.StatusOK, SuccessResponse{Success: true, Message: msg, Data: data})
}
