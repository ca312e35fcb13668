// Package quota describes the free message allowance check that guards
// the chat endpoint.
package quota

import (
	"context"

	"github.com/nflow-health/nflow/internal/domain/account"
)

// Decision is the outcome of a quota check
type Decision struct {
	Allowed   bool         `json:"allowed"`
	Unlimited bool         `json:"unlimited"`
	Role      account.Role `json:"role"`
	Count     int          `json:"messageCount"`
	Limit     int          `json:"limit"`
	Remaining int          `json:"remainingMessages"`
}

// After returns the decision as it stands once count messages have been used
func (d Decision) After(count int) Decision {
	d.Count = count
	if d.Unlimited {
		return d
	}
	d.Remaining = d.Limit - count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	d.Allowed = d.Remaining > 0
	return d
}

type contextKey struct{}

// NewContext returns ctx carrying a decision already made for the request
func NewContext(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, contextKey{}, d)
}

// FromContext returns the decision stored by NewContext, if any
func FromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(contextKey{}).(Decision)
	return d, ok
}

// Gate decides whether an account may send another chat message
type Gate interface {
	// Check reads the account fresh from storage and decides. A refusal is
	// returned as a quota-exceeded AppError alongside the decision.
	Check(ctx context.Context, accountID int64) (Decision, error)

	// Ceiling is the number of free messages for restricted roles
	Ceiling() int

	// UpgradeURL is where refused callers are sent to subscribe
	UpgradeURL() string
}
