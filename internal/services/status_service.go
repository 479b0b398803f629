// Package services – Reconciler
//
// This file implements the delivery-status reconciliation path shared by the
// provider webhook and the on-demand refresh. A callback is normalized onto
// the internal status set and applied to the message correlated by provider
// sid under a bounded store timeout.
//
// With the monotonic guard enabled the update is conditional on the row's
// current status, so out-of-order or replayed callbacks never move a message
// backward. When nothing is updated the message is looked up once to tell an
// unknown sid from a rejected (stale) transition.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sms-backend/internal/cache"
	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/repo"
)

// StatusStore is the persistence contract consumed by Reconciler.
type StatusStore interface {
	FindByProviderSID(ctx context.Context, sid string) (*domain.Message, error)
	UpdateStatus(ctx context.Context, sid string, u repo.StatusUpdate) (int64, error)
}

// Outcome classifies what a callback did to the store.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"   // no provider sid
	OutcomeApplied   Outcome = "applied"   // one row updated
	OutcomeUnknown   Outcome = "unknown"   // no message with that sid
	OutcomeStale     Outcome = "stale"     // guard rejected the transition
	OutcomeDuplicate Outcome = "duplicate" // replay cache hit
	OutcomeError     Outcome = "error"     // store failure
)

// Callback is one delivery-status notification, already decoded from the wire.
type Callback struct {
	MessageSID    string
	MessageStatus string
	To            string
	From          string
	Body          string
	ErrorCode     string
	ErrorMessage  string
}

// Result reports how a Callback was processed.
type Result struct {
	Status  domain.Status
	Outcome Outcome
	Rows    int64
	Err     error
}

// Reconciler applies callbacks to the message store.
type Reconciler struct {
	Store StatusStore
	// Cache is optional; nil disables replay detection.
	Cache cache.ReplayCache
	// Monotonic enables the forward-only transition guard.
	Monotonic bool
	// StoreTimeout bounds each store call. Zero means 5s.
	StoreTimeout time.Duration
	// Now is the clock used for transition timestamps.
	Now func() time.Time
}

// NewReconciler constructs a Reconciler with the guard enabled.
func NewReconciler(store StatusStore, rc cache.ReplayCache, storeTimeout time.Duration) *Reconciler {
	return &Reconciler{
		Store:        store,
		Cache:        rc,
		Monotonic:    true,
		StoreTimeout: storeTimeout,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// Apply normalizes cb and applies it. It never panics on store failures;
// errors are reported in Result.Err with OutcomeError.
//
// Cancellation of ctx is ignored once Apply starts, so a client disconnect
// cannot abort an accepted update. Store calls are bounded by StoreTimeout.
func (r *Reconciler) Apply(ctx context.Context, cb Callback) Result {
	ctx = context.WithoutCancel(ctx)
	status := domain.NormalizeProviderStatus(cb.MessageStatus)

	tr := otel.Tracer("services/Reconciler")
	ctx, span := tr.Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("message.provider_sid", cb.MessageSID),
			attribute.String("message.status", string(status)),
		),
	)
	defer span.End()

	if cb.MessageSID == "" {
		return Result{Status: status, Outcome: OutcomeIgnored}
	}

	if r.Cache != nil {
		// Fail open: a cache error never blocks the update.
		// Keyed on the raw token: distinct tokens that normalize alike are
		// separate deliveries.
		if seen, err := r.Cache.Seen(ctx, cb.MessageSID, cb.MessageStatus); err == nil && seen {
			return Result{Status: status, Outcome: OutcomeDuplicate}
		}
	}

	res := r.apply(ctx, cb, status)
	if r.Cache != nil && (res.Outcome == OutcomeError || res.Outcome == OutcomeUnknown) {
		// The provider retries; let the retry through.
		_ = r.Cache.Forget(ctx, cb.MessageSID, cb.MessageStatus)
	}
	span.SetAttributes(attribute.String("callback.outcome", string(res.Outcome)))
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	return res
}

func (r *Reconciler) apply(ctx context.Context, cb Callback, status domain.Status) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	u := repo.StatusUpdate{
		Status:       status,
		At:           r.now(),
		ErrorCode:    cb.ErrorCode,
		ErrorMessage: cb.ErrorMessage,
	}
	if r.Monotonic {
		u.AllowedFrom = status.AllowedFrom()
	}

	rows, err := r.Store.UpdateStatus(ctx, cb.MessageSID, u)
	if err != nil {
		return Result{Status: status, Outcome: OutcomeError, Err: err}
	}
	if rows > 0 {
		return Result{Status: status, Outcome: OutcomeApplied, Rows: rows}
	}
	if !r.Monotonic {
		return Result{Status: status, Outcome: OutcomeUnknown}
	}

	if _, err := r.Store.FindByProviderSID(ctx, cb.MessageSID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{Status: status, Outcome: OutcomeUnknown}
		}
		return Result{Status: status, Outcome: OutcomeError, Err: err}
	}
	return Result{Status: status, Outcome: OutcomeStale}
}

func (r *Reconciler) timeout() time.Duration {
	if r.StoreTimeout > 0 {
		return r.StoreTimeout
	}
	return 5 * time.Second
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}
