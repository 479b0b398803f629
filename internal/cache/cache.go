// Package cache holds optional short-lived state shared across instances.
package cache

import (
	"context"
)

// ReplayCache records delivery callbacks that have already been processed.
type ReplayCache interface {
	// Seen marks (sid, status) as processed and reports whether it had
	// already been marked.
	Seen(ctx context.Context, sid, status string) (bool, error)
	// Forget clears the mark so the same callback is processed again.
	Forget(ctx context.Context, sid, status string) error
}
