// Package services defines the business logic for outbound sends, delivery
// status reconciliation, contacts, and analytics. This file centralizes
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Message-related errors.
var (
	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidPhone is returned when a destination is not a usable number.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrEmptyBody is returned when an SMS send has no text.
	ErrEmptyBody = errors.New("message body is empty")

	// ErrMissingContent is returned when an RCS send has no content SID.
	ErrMissingContent = errors.New("content sid is required")

	// ErrBulkEmpty and ErrBulkTooLarge bound the size of a bulk send.
	ErrBulkEmpty    = errors.New("bulk send has no messages")
	ErrBulkTooLarge = errors.New("bulk send exceeds the maximum batch size")

	// ErrProviderNotConfigured is returned when sends are attempted without
	// provider credentials.
	ErrProviderNotConfigured = errors.New("messaging provider not configured")

	// ErrSendFailed wraps a provider rejection or transport failure.
	ErrSendFailed = errors.New("send failed")

	// ErrNoProviderSID is returned when refreshing a message the provider
	// never accepted.
	ErrNoProviderSID = errors.New("message has no provider sid")
)

// Contact-related errors.
var (
	// ErrContactNotFound indicates that the contact does not exist or is not
	// owned by the current user.
	ErrContactNotFound = errors.New("contact not found")

	// ErrInvalidContact is returned when required contact fields are missing.
	ErrInvalidContact = errors.New("first_name, last_name and phone_number are required")

	// ErrInvalidEmail is returned when a contact email is malformed.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrDuplicateContact is returned when an update would give two of a
	// user's contacts the same phone number.
	ErrDuplicateContact = errors.New("a contact with this phone number already exists")
)
