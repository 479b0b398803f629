// Package handlers wiring.
//
// Handlers are transport-thin: they bind and validate input, call application
// services through the interfaces below, and translate results and service
// errors into HTTP responses.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/http/middleware"
	"github.com/tbourn/go-sms-backend/internal/provider"
	"github.com/tbourn/go-sms-backend/internal/repo"
	"github.com/tbourn/go-sms-backend/internal/services"
	"github.com/tbourn/go-sms-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SendService defines outbound send and message read operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SendService interface {
	SendSMS(ctx context.Context, userID, idemKey string, in services.SMSInput) (*services.SendResult, error)
	SendRCS(ctx context.Context, userID, idemKey string, in services.RCSInput) (*services.SendResult, error)
	SendBulk(ctx context.Context, userID string, items []services.SMSInput) ([]services.BulkItem, error)
	Get(ctx context.Context, userID, id string) (*domain.Message, error)
	ListPage(ctx context.Context, f repo.MessageFilter, page, pageSize int) ([]domain.Message, int64, error)
	// Stats returns the count and latest update time for f; used for ETags.
	Stats(ctx context.Context, f repo.MessageFilter) (int64, *time.Time, error)
	Refresh(ctx context.Context, userID, id string) (*domain.Message, services.Result, error)
}

// Reconciler applies a delivery-status callback to the message store.
type Reconciler interface {
	Apply(ctx context.Context, cb services.Callback) services.Result
}

// ContactService defines per-user contact management.
type ContactService interface {
	Create(ctx context.Context, userID string, in services.ContactInput) (*domain.Contact, bool, error)
	Get(ctx context.Context, userID, id string) (*domain.Contact, error)
	ListPage(ctx context.Context, f repo.ContactFilter, sort repo.ContactSort, page, pageSize int) ([]domain.Contact, int64, error)
	Update(ctx context.Context, userID, id string, p services.ContactPatch) (*domain.Contact, error)
	Delete(ctx context.Context, userID, id string) error
}

// AnalyticsService computes the per-user delivery summary.
type AnalyticsService interface {
	Summary(ctx context.Context, userID string) (*services.Analytics, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. Any service may be nil when its routes
// are not mounted.
type Handlers struct {
	sendSvc      SendService
	reconciler   Reconciler
	contactSvc   ContactService
	analyticsSvc AnalyticsService
}

// New constructs a Handlers instance bound to the given services.
func New(send SendService, rec Reconciler, contacts ContactService, analytics AnalyticsService) *Handlers {
	return &Handlers{
		sendSvc:      send,
		reconciler:   rec,
		contactSvc:   contacts,
		analyticsSvc: analytics,
	}
}

// RegisterValidators installs the custom binding rules on gin's validator.
// It replaces the built-in e164 rule so binding and services agree on one
// definition of a phone number.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("e164", func(fl validator.FieldLevel) bool {
		return provider.ValidatePhoneNumber(fl.Field().String())
	})
}

// userID resolves the caller from the context set by middleware.Identity,
// falling back to the demo user so handlers work without it.
func userID(c *gin.Context) string {
	if uid := middleware.UserID(c); uid != "" {
		return uid
	}
	return middleware.DefaultUserID
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context, defaultPageSize int) (page, pageSize int) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultPageSize, 100)
	return p.Number, p.Size
}

// notModified sets a weak ETag and reports whether If-None-Match matched,
// in which case a 304 has been written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
