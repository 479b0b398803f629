package domain

// Status is the internal delivery state of a Message. Exactly one value holds
// at any time.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusRead      Status = "read"
)

// DefaultFailureMessage is stored when a failure callback carries no error text.
const DefaultFailureMessage = "Message delivery failed"

// NormalizeProviderStatus maps the provider's open status vocabulary onto the
// closed internal set. Matching is case-sensitive; unknown or empty tokens map
// to StatusPending so new provider statuses never break ingestion.
func NormalizeProviderStatus(token string) Status {
	switch token {
	case "sent":
		return StatusSent
	case "delivered":
		return StatusDelivered
	case "read":
		return StatusRead
	case "failed", "undelivered":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Terminal reports whether s is not expected to be followed by further
// meaningful transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the five internal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusFailed, StatusRead:
		return true
	}
	return false
}

// AllowedFrom lists the current statuses from which a row may move to s.
// Terminal states are never left, except delivered -> read. The non-terminal
// states pending and sent may replace each other, because unrecognized
// provider tokens normalize to pending. Re-applying a terminal status is not
// a transition.
func (s Status) AllowedFrom() []Status {
	switch s {
	case StatusRead:
		return []Status{StatusPending, StatusSent, StatusDelivered}
	case StatusDelivered, StatusFailed:
		return []Status{StatusPending, StatusSent}
	default:
		return []Status{StatusPending, StatusSent}
	}
}

// CanTransition reports whether moving from -> to is permitted under the
// monotonic guard.
func CanTransition(from, to Status) bool {
	for _, s := range to.AllowedFrom() {
		if s == from {
			return true
		}
	}
	return false
}
