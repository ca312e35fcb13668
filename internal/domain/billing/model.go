package billing

import (
	"fmt"
	"time"

	"github.com/nflow-health/nflow/internal/domain/account"
)

// EventKind is the subscription transition a provider reported
type EventKind string

// Event kinds
const (
	EventActivated EventKind = "activated"
	EventCanceled  EventKind = "canceled"
)

// Outcome is what the reconciler did with an event
type Outcome string

// Outcomes
const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
)

// Event is a provider-neutral subscription notification
type Event struct {
	ID             string
	Provider       account.Provider
	Kind           EventKind
	SubscriptionID string
	AccountID      int64
	OccurredAt     time.Time
}

// Validate rejects events that cannot be applied
func (e Event) Validate() error {
	if !e.Provider.Valid() {
		return fmt.Errorf("unknown provider %q", e.Provider)
	}
	if e.Kind != EventActivated && e.Kind != EventCanceled {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.SubscriptionID == "" {
		return fmt.Errorf("missing subscription id")
	}
	if e.AccountID <= 0 {
		return fmt.Errorf("missing account id")
	}
	return nil
}

// Plan describes the subscription on offer
type Plan struct {
	Name      string             `json:"name"`
	Providers []account.Provider `json:"providers"`
	PayPalID  string             `json:"paypalPlanId,omitempty"`
	StripeID  string             `json:"stripePriceId,omitempty"`
}
