package billing

import (
	"context"
	"time"
)

// Reconciler applies subscription events to account state
type Reconciler interface {
	Apply(ctx context.Context, e Event) (Outcome, error)
}

// EventLedger remembers which provider events were already applied
type EventLedger interface {
	// Seen reports whether the event was recorded before
	Seen(ctx context.Context, provider, eventID string) (bool, error)

	// Remember records the event. ttl may be ignored by durable stores.
	Remember(ctx context.Context, provider, eventID string, ttl time.Duration) error
}
