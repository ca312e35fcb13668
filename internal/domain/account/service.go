package account

import "context"

// Service defines account business logic
type Service interface {
	// Register creates a standard account with a hashed password
	Register(ctx context.Context, username, password string) (*Account, error)

	// Authenticate checks credentials and returns the active account
	Authenticate(ctx context.Context, username, password string) (*Account, error)

	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context, limit, offset int) ([]*Account, int64, error)

	// Usage reports the free message allowance for an account
	Usage(ctx context.Context, id int64) (Usage, error)

	// Close deactivates the caller's own account
	Close(ctx context.Context, id int64) error

	// SetActive activates or deactivates an account on behalf of an admin
	SetActive(ctx context.Context, adminID, id int64, active bool) (*Account, error)

	// Promote grants or revokes the admin role. Only RoleAdmin and RoleUser
	// are accepted; the professional tier follows the subscription.
	Promote(ctx context.Context, adminID, id int64, role Role) (*Account, error)

	// ResetUsage zeroes an account's message counter on behalf of an admin
	ResetUsage(ctx context.Context, adminID, id int64) (*Account, error)
}
