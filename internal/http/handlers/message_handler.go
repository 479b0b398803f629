// Message HTTP handlers.
//
// This file exposes REST endpoints for outbound messages:
//   - POST /messages/sms           (send a text message)
//   - POST /messages/rcs           (send a content-template message)
//   - POST /messages/bulk          (send up to 100 SMS in parallel)
//   - GET  /messages               (list, paginated, ETag support)
//   - GET  /messages/{id}          (fetch one)
//   - POST /messages/{id}/refresh  (pull current status from the provider)
//
// Idempotency:
// If the client supplies an Idempotency-Key on a single send and a live record
// exists for (user, channel, key), the originally created message is returned
// and `Idempotency-Replayed: true` is set.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/http/middleware"
	"github.com/tbourn/go-sms-backend/internal/provider"
	"github.com/tbourn/go-sms-backend/internal/repo"
	"github.com/tbourn/go-sms-backend/internal/services"
	"github.com/tbourn/go-sms-backend/internal/utils"
)

//
// DTOs
//

// SendSMSRequest is the JSON payload for a single SMS send.
type SendSMSRequest struct {
	// To is the destination number; E.164 is recommended.
	To string `json:"to" binding:"required,min=10" example:"+14155550100"`
	// Body is the message text.
	Body string `json:"body" binding:"required" example:"Your order has shipped"`
	// From overrides the default sender.
	From string `json:"from,omitempty" example:"+14155550199"`
	// MediaURL attaches MMS media; every entry must be an absolute URL.
	MediaURL []string `json:"media_url,omitempty" binding:"omitempty,dive,url"`
	// ContactID optionally links the send to a contact.
	ContactID *string `json:"contact_id,omitempty" binding:"omitempty,uuid" format:"uuid"`
}

// SendRCSRequest is the JSON payload for a content-template send.
type SendRCSRequest struct {
	To               string            `json:"to" binding:"required,e164" example:"+14155550100"`
	ContentSID       string            `json:"content_sid" binding:"required" example:"HX0123456789abcdef0123456789abcdef"`
	ContentVariables map[string]string `json:"content_variables,omitempty"`
	From             string            `json:"from,omitempty"`
	ContactID        *string           `json:"contact_id,omitempty" binding:"omitempty,uuid" format:"uuid"`
}

// SendBulkRequest carries 1..100 SMS sends. Items are validated one by one
// and a bad item only fails its own result entry.
type SendBulkRequest struct {
	Messages []SendSMSRequest `json:"messages" binding:"required,min=1,max=100"`
}

// BulkSummary reports the aggregate outcome of a bulk send.
type BulkSummary struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []services.BulkItem `json:"results"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of messages and pagination information.
type ListMessagesResponse struct {
	Success    bool             `json:"success"`
	Data       []domain.Message `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// RefreshResponse is the result of a provider status refresh.
type RefreshResponse struct {
	Message *domain.Message `json:"message"`
	// Outcome is how the fetched status was applied (applied, stale, ...).
	Outcome string `json:"outcome" example:"applied"`
}

//
// Helpers
//

func smsInput(r SendSMSRequest) services.SMSInput {
	return services.SMSInput{
		To:        r.To,
		Body:      r.Body,
		From:      r.From,
		MediaURL:  r.MediaURL,
		ContactID: r.ContactID,
	}
}

// bindMessage renders a binding error as "field: rule" pairs.
func bindMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "invalid JSON body"
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return "invalid request data: " + strings.Join(parts, ", ")
}

// failSend maps send-path service errors onto HTTP responses.
func failSend(c *gin.Context, what string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrEmptyBody),
		errors.Is(err, services.ErrMissingContent),
		errors.Is(err, services.ErrBulkEmpty),
		errors.Is(err, services.ErrBulkTooLarge):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrProviderNotConfigured):
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderUnavailable, err.Error())
	case errors.Is(err, services.ErrSendFailed):
		msg := "Failed to send " + what
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) {
			msg += ": " + apiErr.Message
		}
		fail(c, http.StatusBadGateway, ErrCodeSendFailed, msg)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func replayed(c *gin.Context, res *services.SendResult) {
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
}

//
// Handlers
//

// SendSMS godoc
// @ID          sendSMS
// @Summary     Send an SMS
// @Description Sends a text message through the provider and records it as pending.
// @Description Supports idempotency via the Idempotency-Key header (same key → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SendSMSRequest  true  "SMS payload"
//
// @Success     200  {object}  handlers.SuccessResponse{data=domain.Message}
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid request data"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider rejected the send"
// @Failure     503  {object}  handlers.ErrorResponse  "Provider not configured"
// @Router      /messages/sms [post]
func (h *Handlers) SendSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.sendSvc.SendSMS(c.Request.Context(), userID(c), key, smsInput(req))
	if err != nil {
		failSend(c, "SMS", err)
		return
	}
	replayed(c, res)
	success(c, "SMS sent successfully", res.Message)
}

// SendRCS godoc
// @ID          sendRCS
// @Summary     Send an RCS message
// @Description Sends a content-template message; the destination must be E.164.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.SendRCSRequest  true  "RCS payload"
//
// @Success     200  {object}  handlers.SuccessResponse{data=domain.Message}
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid request data"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider rejected the send"
// @Failure     503  {object}  handlers.ErrorResponse  "Provider not configured"
// @Router      /messages/rcs [post]
func (h *Handlers) SendRCS(c *gin.Context) {
	var req SendRCSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && ve[0].Tag() == "e164" {
			fail(c, http.StatusBadRequest, ErrCodeValidation, "Invalid phone number format. Use E.164 format (e.g., +1234567890)")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.sendSvc.SendRCS(c.Request.Context(), userID(c), key, services.RCSInput{
		To:               req.To,
		ContentSID:       req.ContentSID,
		ContentVariables: req.ContentVariables,
		From:             req.From,
		ContactID:        req.ContactID,
	})
	if err != nil {
		failSend(c, "RCS message", err)
		return
	}
	replayed(c, res)
	success(c, "RCS message sent successfully", res.Message)
}

// SendBulk godoc
// @ID          sendBulk
// @Summary     Send SMS in bulk
// @Description Sends up to 100 SMS in parallel. Per-item failures are reported
// @Description as failed results with sid "error-<index>"; the batch itself succeeds.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.SendBulkRequest  true  "Bulk payload"
//
// @Success     200  {object}  handlers.SuccessResponse{data=handlers.BulkSummary}
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid request data"
// @Router      /messages/bulk [post]
func (h *Handlers) SendBulk(c *gin.Context) {
	var req SendBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}

	items := make([]services.SMSInput, len(req.Messages))
	for i, m := range req.Messages {
		items[i] = smsInput(m)
	}

	results, err := h.sendSvc.SendBulk(c.Request.Context(), userID(c), items)
	if err != nil {
		failSend(c, "bulk SMS", err)
		return
	}

	sum := BulkSummary{Total: len(results), Results: results}
	for _, r := range results {
		if r.Error != "" {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
	}
	success(c, fmt.Sprintf("Bulk send completed: %d sent, %d failed", sum.Succeeded, sum.Failed), sum)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages (paginated)
// @Description Returns a page of the user's messages, newest first. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       status         query   string  false "Status filter"   Enums(pending, sent, delivered, failed, read)
// @Param       type           query   string  false "Type filter"     Enums(sms, rcs)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	f := repo.MessageFilter{
		UserID: userID(c),
		Status: domain.Status(c.Query("status")),
		Type:   domain.MessageType(c.Query("type")),
	}
	if f.Status != "" && !f.Status.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be one of pending, sent, delivered, failed, read")
		return
	}
	if f.Type != "" && f.Type != domain.MessageTypeSMS && f.Type != domain.MessageTypeRCS {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be sms or rcs")
		return
	}
	page, pageSize := clampPagination(c, 20)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.sendSvc.Stats(ctx, f); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"messages:%s:%s:%s:%d:%d:%d:%d"`, f.UserID, f.Status, f.Type, page, pageSize, count, ts)
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.sendSvc.ListPage(ctx, f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListMessagesResponse{
		Success: true,
		Data:    items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Get a message
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Message ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.SuccessResponse{data=domain.Message}
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Router      /messages/{id} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	m, err := h.sendSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrMessageNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	success(c, "", m)
}

// RefreshMessage godoc
// @ID          refreshMessage
// @Summary     Refresh delivery status
// @Description Fetches the current status from the provider and applies it like a webhook callback.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Message ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.SuccessResponse{data=handlers.RefreshResponse}
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     409  {object} handlers.ErrorResponse "Message was never accepted by the provider"
// @Failure     502  {object} handlers.ErrorResponse "Provider lookup failed"
// @Failure     503  {object} handlers.ErrorResponse "Provider not configured"
// @Router      /messages/{id}/refresh [post]
func (h *Handlers) RefreshMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	m, res, err := h.sendSvc.Refresh(c.Request.Context(), userID(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		case errors.Is(err, services.ErrNoProviderSID):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, services.ErrProviderNotConfigured):
			fail(c, http.StatusServiceUnavailable, ErrCodeProviderUnavailable, err.Error())
		case errors.Is(err, services.ErrSendFailed):
			fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, "provider lookup failed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, err.Error())
		}
		return
	}
	success(c, "", RefreshResponse{Message: m, Outcome: string(res.Outcome)})
}
