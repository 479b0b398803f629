// Package services – SendService
//
// This file implements SendService, which owns the start of the message
// lifecycle: it validates a send, hands it to the provider, and persists the
// accepted message as pending with the provider sid so later callbacks can
// correlate to it. Bulk sends fan out with a bounded concurrency limit and
// report per-item results. Refresh pulls the provider's current status and
// runs it through the same Reconciler as a webhook callback.
//
// Send endpoints are retry-safe: when an idempotency key is supplied and a
// live record exists for (user, scope, key), the previously created message is
// returned instead of sending again.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/provider"
	"github.com/tbourn/go-sms-backend/internal/repo"
	"github.com/tbourn/go-sms-backend/internal/sysutil"
	"github.com/tbourn/go-sms-backend/internal/utils"
)

// Idempotency scopes for send operations.
const (
	ScopeSMS = "sms"
	ScopeRCS = "rcs"
)

// MaxBulkMessages caps a single bulk request.
const MaxBulkMessages = 100

// Provider is the outbound send contract consumed by SendService.
type Provider interface {
	SendSMS(ctx context.Context, r provider.SMSRequest) (*provider.MessageResponse, error)
	SendRCS(ctx context.Context, r provider.RCSRequest) (*provider.MessageResponse, error)
	FetchMessage(ctx context.Context, sid string) (*provider.MessageResponse, error)
}

// SMSInput is a validated-at-the-edge SMS send.
type SMSInput struct {
	To        string
	Body      string
	From      string
	MediaURL  []string
	ContactID *string
}

// RCSInput is a content-template send.
type RCSInput struct {
	To               string
	ContentSID       string
	ContentVariables map[string]string
	From             string
	ContactID        *string
}

// SendResult is the outcome of a single send. Replayed is true when the
// message was served from an idempotency record.
type SendResult struct {
	Message  *domain.Message
	Replayed bool
}

// BulkItem is the per-message result of SendBulk.
type BulkItem struct {
	Index     int           `json:"index"`
	SID       string        `json:"sid"`
	MessageID string        `json:"message_id,omitempty"`
	Status    domain.Status `json:"status"`
	To        string        `json:"to"`
	Error     string        `json:"error,omitempty"`
}

// SendService coordinates provider sends and message persistence.
type SendService struct {
	DB         *gorm.DB
	Provider   Provider
	Reconciler *Reconciler

	// BulkConcurrency bounds in-flight provider calls during SendBulk.
	BulkConcurrency int
	// IdempotencyTTL is how long an idempotency record can be replayed.
	IdempotencyTTL time.Duration
}

// NewSendService constructs a SendService. A nil Provider makes every send
// fail with ErrProviderNotConfigured.
func NewSendService(db *gorm.DB, p Provider, rec *Reconciler, bulkConcurrency int, idemTTL time.Duration) *SendService {
	if bulkConcurrency <= 0 {
		bulkConcurrency = 8
	}
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &SendService{
		DB:              db,
		Provider:        p,
		Reconciler:      rec,
		BulkConcurrency: bulkConcurrency,
		IdempotencyTTL:  idemTTL,
	}
}

// SendSMS sends a text message for userID. idemKey may be empty.
func (s *SendService) SendSMS(ctx context.Context, userID, idemKey string, in SMSInput) (*SendResult, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "SendSMS",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("media.count", len(in.MediaURL)),
		),
	)
	defer span.End()

	if prev := s.replay(ctx, userID, ScopeSMS, idemKey); prev != nil {
		return &SendResult{Message: prev, Replayed: true}, nil
	}

	m, err := s.sendSMS(ctx, userID, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.remember(ctx, userID, ScopeSMS, idemKey, m.ID)
	return &SendResult{Message: m}, nil
}

// SendRCS sends a rich content-template message for userID.
func (s *SendService) SendRCS(ctx context.Context, userID, idemKey string, in RCSInput) (*SendResult, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "SendRCS",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.sid", in.ContentSID),
		),
	)
	defer span.End()

	if prev := s.replay(ctx, userID, ScopeRCS, idemKey); prev != nil {
		return &SendResult{Message: prev, Replayed: true}, nil
	}

	to := strings.TrimSpace(in.To)
	if !provider.ValidatePhoneNumber(to) {
		return nil, ErrInvalidPhone
	}
	if strings.TrimSpace(in.ContentSID) == "" {
		return nil, ErrMissingContent
	}
	if s.Provider == nil {
		return nil, ErrProviderNotConfigured
	}

	resp, err := s.Provider.SendRCS(ctx, provider.RCSRequest{
		To:               to,
		ContentSID:       in.ContentSID,
		ContentVariables: in.ContentVariables,
		From:             in.From,
	})
	if err != nil {
		span.RecordError(err)
		return nil, sendError(err)
	}

	tmpl := in.ContentSID
	m := &domain.Message{
		UserID:     userID,
		ContactID:  in.ContactID,
		TemplateID: &tmpl,
		To:         to,
		From:       sysutil.FirstNonEmpty(resp.From, in.From),
		Body:       resp.Body,
		Type:       domain.MessageTypeRCS,
	}
	if err := s.persist(ctx, m, resp.SID); err != nil {
		return nil, err
	}
	s.remember(ctx, userID, ScopeRCS, idemKey, m.ID)
	return &SendResult{Message: m}, nil
}

// SendBulk sends every item in parallel with at most BulkConcurrency
// provider calls in flight. Item failures are reported in the result with
// sid "error-<index>" and status failed; they never fail the batch.
func (s *SendService) SendBulk(ctx context.Context, userID string, items []SMSInput) ([]BulkItem, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "SendBulk",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("bulk.size", len(items)),
		),
	)
	defer span.End()

	if len(items) == 0 {
		return nil, ErrBulkEmpty
	}
	if len(items) > MaxBulkMessages {
		return nil, ErrBulkTooLarge
	}

	out := make([]BulkItem, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.BulkConcurrency)

	for i, in := range items {
		g.Go(func() error {
			m, err := s.sendSMS(gctx, userID, in)
			if err != nil {
				out[i] = BulkItem{
					Index:  i,
					SID:    fmt.Sprintf("error-%d", i),
					Status: domain.StatusFailed,
					To:     in.To,
					Error:  err.Error(),
				}
				return nil
			}
			out[i] = BulkItem{
				Index:     i,
				SID:       deref(m.ProviderSID),
				MessageID: m.ID,
				Status:    m.Status,
				To:        m.To,
			}
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// Get returns a message owned by userID.
func (s *SendService) Get(ctx context.Context, userID, id string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	return m, err
}

// ListPage returns a page of userID's messages and the total count.
func (s *SendService) ListPage(ctx context.Context, f repo.MessageFilter, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", f.UserID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	pg := utils.Page{Number: page, Size: pageSize}.Normalize(20)

	total, err := repo.CountMessages(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, f, pg.Offset(), pg.Size)
	return items, total, err
}

// Stats returns the count and latest update time for f, used for ETags.
func (s *SendService) Stats(ctx context.Context, f repo.MessageFilter) (int64, *time.Time, error) {
	return repo.MessagesStats(ctx, s.DB, f)
}

// Refresh fetches the provider's current status for a message owned by
// userID and reconciles it like a callback. It returns the reloaded message.
func (s *SendService) Refresh(ctx context.Context, userID, id string) (*domain.Message, Result, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "Refresh",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("message.id", id),
		),
	)
	defer span.End()

	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, Result{}, err
	}
	if m.ProviderSID == nil || *m.ProviderSID == "" {
		return nil, Result{}, ErrNoProviderSID
	}
	if s.Provider == nil {
		return nil, Result{}, ErrProviderNotConfigured
	}

	resp, err := s.Provider.FetchMessage(ctx, *m.ProviderSID)
	if err != nil {
		return nil, Result{}, sendError(err)
	}

	res := s.Reconciler.Apply(ctx, Callback{
		MessageSID:    *m.ProviderSID,
		MessageStatus: resp.Status,
		To:            resp.To,
		From:          resp.From,
		ErrorCode:     resp.ErrorCode,
		ErrorMessage:  resp.ErrorMessage,
	})
	if res.Err != nil {
		return nil, res, res.Err
	}

	m, err = s.Get(ctx, userID, id)
	return m, res, err
}

func (s *SendService) sendSMS(ctx context.Context, userID string, in SMSInput) (*domain.Message, error) {
	to := strings.TrimSpace(in.To)
	if len(to) < 10 {
		return nil, ErrInvalidPhone
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, ErrEmptyBody
	}
	if s.Provider == nil {
		return nil, ErrProviderNotConfigured
	}

	resp, err := s.Provider.SendSMS(ctx, provider.SMSRequest{
		To:       to,
		Body:     in.Body,
		From:     in.From,
		MediaURL: in.MediaURL,
	})
	if err != nil {
		return nil, sendError(err)
	}

	m := &domain.Message{
		UserID:    userID,
		ContactID: in.ContactID,
		To:        to,
		From:      sysutil.FirstNonEmpty(resp.From, in.From),
		Body:      in.Body,
		Type:      domain.MessageTypeSMS,
	}
	if err := s.persist(ctx, m, resp.SID); err != nil {
		return nil, err
	}
	return m, nil
}

// persist stores an accepted send as pending under the provider sid.
func (s *SendService) persist(ctx context.Context, m *domain.Message, sid string) error {
	m.ProviderSID = &sid
	m.Status = domain.StatusPending
	if err := repo.CreateMessage(ctx, s.DB, m); err != nil {
		return fmt.Errorf("persist message %s: %w", sid, err)
	}
	return nil
}

func (s *SendService) replay(ctx context.Context, userID, scope, key string) *domain.Message {
	if key == "" {
		return nil
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil
	}
	prev, err := repo.GetMessage(ctx, s.DB, rec.MessageID, userID)
	if err != nil {
		return nil
	}
	return prev
}

// remember records the idempotency key; best effort.
func (s *SendService) remember(ctx context.Context, userID, scope, key, messageID string) {
	if key == "" {
		return
	}
	_, _ = repo.CreateIdempotency(ctx, s.DB, userID, scope, key, messageID, s.IdempotencyTTL)
}

// sendError classifies provider failures.
func sendError(err error) error {
	if errors.Is(err, provider.ErrNotConfigured) {
		return ErrProviderNotConfigured
	}
	return errors.Join(ErrSendFailed, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
