package domain

import "time"

// Idempotency binds a caller-supplied Idempotency-Key to the message its
// first request created. The key space is per user and per send scope
// ("sms", "rcs"), so the same key may be reused across operations.
type Idempotency struct {
	UserID    string    `gorm:"type:varchar(64);primaryKey"`
	Scope     string    `gorm:"type:varchar(16);primaryKey"`
	Key       string    `gorm:"type:varchar(200);primaryKey"`
	MessageID string    `gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "send_idempotency_keys" }

// Live reports whether the key can still be replayed at now.
func (i Idempotency) Live(now time.Time) bool { return now.Before(i.ExpiresAt) }
