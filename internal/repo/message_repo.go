// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the keyed status update used by delivery callbacks.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// MessageFilter narrows message listings. Empty fields are ignored.
type MessageFilter struct {
	UserID string
	Status domain.Status
	Type   domain.MessageType
}

func (f MessageFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ?", f.UserID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	return q
}

// StatusUpdate describes one delivery-status transition keyed by provider sid.
//
// At is the callback receipt time; it always refreshes updated_at and fills
// the timestamp column matching Status. AllowedFrom, when non-empty, makes the
// update conditional on the row's current status.
type StatusUpdate struct {
	Status       domain.Status
	At           time.Time
	ErrorCode    string
	ErrorMessage string
	AllowedFrom  []domain.Status
}

// columns builds the partial update for u.
func (u StatusUpdate) columns() map[string]any {
	cols := map[string]any{
		"status":     u.Status,
		"updated_at": u.At,
	}
	switch u.Status {
	case domain.StatusSent:
		cols["sent_at"] = u.At
	case domain.StatusDelivered:
		cols["delivered_at"] = u.At
	case domain.StatusRead:
		cols["read_at"] = u.At
	case domain.StatusFailed:
		msg := u.ErrorMessage
		if msg == "" {
			msg = domain.DefaultFailureMessage
		}
		cols["error_message"] = msg
		if u.ErrorCode != "" {
			cols["error_code"] = u.ErrorCode
		}
	}
	return cols
}

// CreateMessage inserts m, assigning an ID and UTC timestamps when unset.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = domain.StatusPending
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID scoped to its owner.
func GetMessage(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessageByID fetches a message by ID regardless of owner.
func GetMessageByID(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByProviderSID fetches the message correlated to a provider identifier.
func FindByProviderSID(ctx context.Context, db *gorm.DB, sid string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("provider_sid = ?", sid).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateStatusByProviderSID applies u to the row matching sid and returns the
// number of rows affected. Zero is not an error.
func UpdateStatusByProviderSID(ctx context.Context, db *gorm.DB, sid string, u StatusUpdate) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("provider_sid = ?", sid)
	if len(u.AllowedFrom) > 0 {
		q = q.Where("status IN ?", u.AllowedFrom)
	}
	res := q.Updates(u.columns())
	return res.RowsAffected, res.Error
}

// CountMessages returns the number of messages matching f.
func CountMessages(ctx context.Context, db *gorm.DB, f MessageFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Message{})).Count(&total).Error
	return total, err
}

// ListMessagesPage returns a page of messages ordered newest first (CreatedAt DESC, ID DESC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, f MessageFilter, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := f.apply(db.WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MessageStore adapts the message functions to a handle-bound value so the
// delivery pipeline can depend on a narrow interface.
type MessageStore struct {
	DB *gorm.DB
}

// NewMessageStore binds a MessageStore to db.
func NewMessageStore(db *gorm.DB) *MessageStore { return &MessageStore{DB: db} }

// FindByProviderSID proxies FindByProviderSID.
func (s *MessageStore) FindByProviderSID(ctx context.Context, sid string) (*domain.Message, error) {
	return FindByProviderSID(ctx, s.DB, sid)
}

// UpdateStatus proxies UpdateStatusByProviderSID.
func (s *MessageStore) UpdateStatus(ctx context.Context, sid string, u StatusUpdate) (int64, error) {
	return UpdateStatusByProviderSID(ctx, s.DB, sid, u)
}
