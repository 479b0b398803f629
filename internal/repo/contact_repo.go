// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Contact
// model.
//
// All functions are context-aware and scoped to the owning user. They follow
// the "thin repository" approach: no business logic, only CRUD persistence
// and query composition. Missing rows surface as ErrNotFound.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
)

// ContactFilter narrows contact listings. Empty fields are ignored.
type ContactFilter struct {
	UserID string
	Name   string // case-insensitive substring of first or last name
	Phone  string // substring of phone number
	Tag    string // exact tag contained in the JSON tags column
}

// ContactSort selects the listing order. Column must be one of
// created_at, first_name, last_name; anything else falls back to created_at.
type ContactSort struct {
	Column string
	Desc   bool
}

func (s ContactSort) clause() string {
	col := "created_at"
	switch s.Column {
	case "first_name", "last_name":
		col = s.Column
	}
	dir := " ASC"
	if s.Desc {
		dir = " DESC"
	}
	return col + dir + ", id" + dir
}

func (f ContactFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ?", f.UserID)
	if f.Name != "" {
		like := "%" + strings.ToLower(f.Name) + "%"
		q = q.Where("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)", like, like)
	}
	if f.Phone != "" {
		q = q.Where("phone_number LIKE ?", "%"+f.Phone+"%")
	}
	if f.Tag != "" {
		q = q.Where("tags LIKE ?", `%"`+f.Tag+`"%`)
	}
	return q
}

// CreateContact inserts c with a fresh UUID and UTC timestamps.
func CreateContact(ctx context.Context, db *gorm.DB, c *domain.Contact) error {
	now := time.Now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.CustomFields == nil {
		c.CustomFields = map[string]string{}
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetContact fetches a contact by ID and owner.
func GetContact(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindContactByPhone fetches the owner's contact with the given phone number.
func FindContactByPhone(ctx context.Context, db *gorm.DB, userID, phone string) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).Where("user_id = ? AND phone_number = ?", userID, phone).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountContacts returns the number of contacts matching f.
func CountContacts(ctx context.Context, db *gorm.DB, f ContactFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Contact{})).Count(&total).Error
	return total, err
}

// ListContactsPage returns a sorted page of contacts matching f.
func ListContactsPage(ctx context.Context, db *gorm.DB, f ContactFilter, s ContactSort, offset, limit int) ([]domain.Contact, error) {
	var out []domain.Contact
	err := f.apply(db.WithContext(ctx)).
		Order(s.clause()).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateContact saves the non-key fields of c for its owner. It returns
// ErrNotFound when no row matches (missing or not owned).
func UpdateContact(ctx context.Context, db *gorm.DB, c *domain.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("id = ? AND user_id = ?", c.ID, c.UserID).
		Select("first_name", "last_name", "phone_number", "email", "tags", "custom_fields", "updated_at").
		Updates(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteContact removes a contact owned by userID, or returns ErrNotFound.
func DeleteContact(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Contact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
