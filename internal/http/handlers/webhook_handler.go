// Provider webhook handlers.
//
//   - POST /twilio/webhook  (delivery-status callback, form encoded)
//   - GET  /twilio/webhook  (liveness check for provider configuration)
//
// The provider contract is "always acknowledge": the callback is answered with
// 200 {"success": true} whatever happens downstream, and exactly one
// "twilio_callback" log line is written per request.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/tbourn/go-sms-backend/internal/http/middleware"
	"github.com/tbourn/go-sms-backend/internal/observability"
	"github.com/tbourn/go-sms-backend/internal/services"
)

// webhookForm is the subset of callback fields the receiver reads.
type webhookForm struct {
	MessageSid    string `form:"MessageSid"`
	MessageStatus string `form:"MessageStatus"`
	To            string `form:"To"`
	From          string `form:"From"`
	Body          string `form:"Body"`
	ErrorCode     string `form:"ErrorCode"`
	ErrorMessage  string `form:"ErrorMessage"`
}

// WebhookAck is the body returned to the provider.
type WebhookAck struct {
	Success bool `json:"success" example:"true"`
}

// WebhookStatus is the liveness body of GET /twilio/webhook.
type WebhookStatus struct {
	Message   string    `json:"message" example:"Twilio webhook endpoint is active"`
	Timestamp time.Time `json:"timestamp"`
}

// TwilioWebhook godoc
// @ID          twilioWebhook
// @Summary     Delivery-status callback
// @Description Receives provider status callbacks and reconciles the stored message.
// @Description Always acknowledges with 200; failures are logged, never surfaced.
// @Tags        Webhooks
// @Accept      x-www-form-urlencoded
// @Produce     json
//
// @Param       MessageSid     formData  string  false  "Provider message id"
// @Param       MessageStatus  formData  string  false  "Provider status token"
// @Param       To             formData  string  false  "Destination"
// @Param       From           formData  string  false  "Sender"
// @Param       ErrorCode      formData  string  false  "Provider error code"
// @Param       ErrorMessage   formData  string  false  "Provider error text"
//
// @Success     200  {object}  handlers.WebhookAck
// @Router      /twilio/webhook [post]
func (h *Handlers) TwilioWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	var f webhookForm
	if err := c.ShouldBindWith(&f, binding.Form); err != nil {
		observability.RecordCallback("", "malformed")
		lg.Warn().Err(err).Str("outcome", "malformed").Msg("twilio_callback")
		ok(c, http.StatusOK, WebhookAck{Success: true})
		return
	}

	res := h.reconciler.Apply(c.Request.Context(), services.Callback{
		MessageSID:    f.MessageSid,
		MessageStatus: f.MessageStatus,
		To:            f.To,
		From:          f.From,
		Body:          f.Body,
		ErrorCode:     f.ErrorCode,
		ErrorMessage:  f.ErrorMessage,
	})
	observability.RecordCallback(string(res.Status), string(res.Outcome))

	ev := lg.Info()
	if res.Err != nil {
		ev = lg.Error().Err(res.Err)
	}
	ev.
		Str("message_sid", f.MessageSid).
		Str("message_status", f.MessageStatus).
		Str("status", string(res.Status)).
		Str("outcome", string(res.Outcome)).
		Int64("rows", res.Rows).
		Str("error_code", f.ErrorCode).
		Str("error_message", f.ErrorMessage).
		Msg("twilio_callback")

	ok(c, http.StatusOK, WebhookAck{Success: true})
}

// TwilioWebhookStatus godoc
// @ID          twilioWebhookStatus
// @Summary     Webhook liveness
// @Tags        Webhooks
// @Produce     json
// @Success     200  {object}  handlers.WebhookStatus
// @Router      /twilio/webhook [get]
func (h *Handlers) TwilioWebhookStatus(c *gin.Context) {
	ok(c, http.StatusOK, WebhookStatus{
		Message:   "Twilio webhook endpoint is active",
		Timestamp: time.Now().UTC(),
	})
}
