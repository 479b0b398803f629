// Package domain defines the persistence models for outbound messages and
// contacts. These types are mapped with GORM and form the core data layer
// of the messaging backend.
package domain

import (
	"time"
)

// MessageType distinguishes plain SMS sends from RCS content-template sends.
type MessageType string

const (
	MessageTypeSMS MessageType = "sms"
	MessageTypeRCS MessageType = "rcs"
)

// Message represents a single outbound send and its delivery lifecycle.
//
// Fields:
//   - ID: UUID primary key (char(36)), generated locally.
//   - ProviderSID: identifier assigned by the provider on acceptance; nil until
//     then. Unique so callbacks correlate to at most one row.
//   - UserID: owner of the send (indexed).
//   - ContactID / TemplateID: optional links to a contact or template.
//   - To / From: E.164 addresses.
//   - Body: free text; empty for rich (RCS) sends.
//   - Type: "sms" or "rcs".
//   - Status: exactly one of pending, sent, delivered, failed, read.
//   - SentAt / DeliveredAt / ReadAt: set by the matching callback.
//   - ErrorCode / ErrorMessage: populated on failure.
type Message struct {
	ID           string      `json:"id"                      gorm:"type:char(36);primaryKey"`
	ProviderSID  *string     `json:"provider_sid,omitempty"  gorm:"column:provider_sid;type:varchar(64);uniqueIndex:ux_messages_provider_sid"`
	UserID       string      `json:"user_id"                 gorm:"type:varchar(64);not null;index:idx_user_msgs,priority:1"`
	ContactID    *string     `json:"contact_id,omitempty"    gorm:"type:char(36);index"`
	TemplateID   *string     `json:"template_id,omitempty"   gorm:"type:varchar(64)"`
	To           string      `json:"to"                      gorm:"column:to_number;type:varchar(32);not null"`
	From         string      `json:"from"                    gorm:"column:from_number;type:varchar(32)"`
	Body         string      `json:"body"                    gorm:"type:text"`
	Type         MessageType `json:"type"                    gorm:"type:varchar(8);not null;default:'sms';check:type IN ('sms','rcs')"`
	Status       Status      `json:"status"                  gorm:"type:varchar(16);not null;default:'pending';index"`
	ErrorCode    string      `json:"error_code,omitempty"    gorm:"type:varchar(32)"`
	ErrorMessage string      `json:"error_message,omitempty" gorm:"type:text"`
	SentAt       *time.Time  `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time  `json:"delivered_at,omitempty"`
	ReadAt       *time.Time  `json:"read_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"              gorm:"index:idx_user_msgs,priority:2"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Contact is a recipient in a user's address book. Phone numbers are unique
// per user; tags and custom fields are stored as JSON text columns.
type Contact struct {
	ID           string            `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string            `json:"-"             gorm:"type:varchar(64);not null;uniqueIndex:ux_contacts_user_phone,priority:1"`
	FirstName    string            `json:"first_name"    gorm:"type:varchar(128);not null"`
	LastName     string            `json:"last_name"     gorm:"type:varchar(128);not null"`
	PhoneNumber  string            `json:"phone_number"  gorm:"type:varchar(32);not null;uniqueIndex:ux_contacts_user_phone,priority:2"`
	Email        *string           `json:"email,omitempty" gorm:"type:varchar(255)"`
	Tags         []string          `json:"tags"          gorm:"type:text;serializer:json"`
	CustomFields map[string]string `json:"custom_fields" gorm:"type:text;serializer:json"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }
