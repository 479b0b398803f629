// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) and the analytics summary.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
)

// MessagesStats returns the number of messages matching f and the maximum
// UpdatedAt among them. When nothing matches, count is 0 and maxUpdatedAt is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, f MessageFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Message{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = f.apply(db.WithContext(ctx).Model(&domain.Message{}))
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// StatusCounts returns the number of userID's messages in each status.
// Statuses with no rows are absent from the map.
func StatusCounts(ctx context.Context, db *gorm.DB, userID string) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Status]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// StatusSample is the minimal projection used to bucket activity per day.
type StatusSample struct {
	Status    domain.Status
	CreatedAt time.Time
}

// MessagesSince returns (status, created_at) for userID's messages created at
// or after since, oldest first.
func MessagesSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]StatusSample, error) {
	var out []StatusSample
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("status, created_at").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Scan(&out).Error
	return out, err
}
