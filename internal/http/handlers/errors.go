// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name the operation that failed when the status alone is not
// enough. Clients branch on these codes, never on messages.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "provider_unavailable",
//	  "message": "messaging provider not configured"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeValidation   = "validation_failed"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeSendFailed          = "send_failed"
	ErrCodeProviderUnavailable = "provider_unavailable"
	ErrCodeRefreshFailed       = "refresh_failed"
	ErrCodeCreateFailed        = "create_failed"
	ErrCodeUpdateFailed        = "update_failed"
	ErrCodeDeleteFailed        = "delete_failed"
	ErrCodeListFailed          = "list_failed"
	ErrCodeMethodNotAllowed    = "method_not_allowed"
)
