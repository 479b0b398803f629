// Package services – AnalyticsService
//
// This file computes the per-user delivery summary from the messages table:
// totals per status, delivery and read rates, and a seven-day activity series
// bucketed by message creation day (UTC).
//
// Rates are percentages rounded to one decimal. A message counts as sent once
// it left the provider (sent, delivered, read, or failed) and as delivered when
// it reached the handset (delivered or read).
package services

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/repo"
)

// ActivityDays is the length of the recent activity series.
const ActivityDays = 7

// DayActivity is one day of the recent activity series.
type DayActivity struct {
	Date      string `json:"date" example:"2026-03-01"`
	Sent      int64  `json:"sent"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
}

// Analytics is the delivery summary for one user.
type Analytics struct {
	TotalMessages     int64         `json:"total_messages"`
	PendingMessages   int64         `json:"pending_messages"`
	SentMessages      int64         `json:"sent_messages"`
	DeliveredMessages int64         `json:"delivered_messages"`
	FailedMessages    int64         `json:"failed_messages"`
	ReadMessages      int64         `json:"read_messages"`
	DeliveryRate      float64       `json:"delivery_rate" example:"98.4"`
	ReadRate          float64       `json:"read_rate" example:"83.7"`
	RecentActivity    []DayActivity `json:"recent_activity"`
}

// AnalyticsService computes summaries.
type AnalyticsService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService on the wall clock.
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Summary returns userID's delivery summary.
func (s *AnalyticsService) Summary(ctx context.Context, userID string) (*Analytics, error) {
	tr := otel.Tracer("services/AnalyticsService")
	ctx, span := tr.Start(ctx, "Summary", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	counts, err := repo.StatusCounts(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	a := &Analytics{
		PendingMessages:   counts[domain.StatusPending],
		SentMessages:      counts[domain.StatusSent],
		DeliveredMessages: counts[domain.StatusDelivered],
		FailedMessages:    counts[domain.StatusFailed],
		ReadMessages:      counts[domain.StatusRead],
	}
	for _, n := range counts {
		a.TotalMessages += n
	}

	reached := a.DeliveredMessages + a.ReadMessages
	attempted := a.SentMessages + reached + a.FailedMessages
	a.DeliveryRate = percent(reached, attempted)
	a.ReadRate = percent(a.ReadMessages, reached)

	a.RecentActivity, err = s.recentActivity(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnalyticsService) recentActivity(ctx context.Context, userID string) ([]DayActivity, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(ActivityDays - 1))

	days := make([]DayActivity, ActivityDays)
	index := make(map[string]int, ActivityDays)
	for i := range days {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		days[i].Date = d
		index[d] = i
	}

	samples, err := repo.MessagesSince(ctx, s.DB, userID, start)
	if err != nil {
		return nil, err
	}
	for _, sm := range samples {
		i, ok := index[sm.CreatedAt.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		switch sm.Status {
		case domain.StatusSent:
			days[i].Sent++
		case domain.StatusDelivered, domain.StatusRead:
			days[i].Sent++
			days[i].Delivered++
		case domain.StatusFailed:
			days[i].Sent++
			days[i].Failed++
		}
	}
	return days, nil
}

func percent(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}
