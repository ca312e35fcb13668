package account

import "context"

// Repository defines the interface for account data access
type Repository interface {
	// Create stores a new account and sets its ID. Duplicate usernames
	// return a conflict error.
	Create(ctx context.Context, a *Account) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByUsername retrieves an account by username
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// Update applies a partial update and returns the stored account
	Update(ctx context.Context, id int64, u Update) (*Account, error)

	// List retrieves accounts ordered by ID with pagination
	List(ctx context.Context, limit, offset int) ([]*Account, int64, error)

	// MessageCount returns the current counter for an account
	MessageCount(ctx context.Context, id int64) (int, error)

	// ApplySubscription applies a subscription transition in one statement.
	// It reports false when the change was older than the last applied one
	// or referred to a different subscription.
	ApplySubscription(ctx context.Context, c SubscriptionChange) (bool, error)

	// ResetUsage sets the message counter back to zero
	ResetUsage(ctx context.Context, id int64) error

	// DemoteAdmin replaces the admin role with the role implied by the
	// account's subscription state
	DemoteAdmin(ctx context.Context, id int64) (*Account, error)
}
