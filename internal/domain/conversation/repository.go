package conversation

import (
	"context"
	"time"
)

// Repository defines the interface for conversation data access
type Repository interface {
	// CreateMetered stores c and charges one message to its owner in a
	// single transaction. Owners with the user role are only charged while
	// their counter is below ceiling; otherwise nothing is written and a
	// quota-exceeded error is returned. Returns the counter after the write.
	CreateMetered(ctx context.Context, c *Conversation, ceiling int) (int, error)

	// GetByID retrieves a conversation by ID
	GetByID(ctx context.Context, id int64) (*Conversation, error)

	// ListByAccount returns an account's conversations, newest first
	ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]*Conversation, int64, error)

	// List returns conversations matching the filter, newest first
	List(ctx context.Context, f Filter, limit, offset int) ([]*Conversation, int64, error)

	// ListSince pages through conversations in (created_at, id) order. It
	// returns those created after since, or at since with an ID above
	// afterID. afterID 0 starts at the first conversation of that second.
	ListSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]*Conversation, error)

	// Review records a moderator verdict
	Review(ctx context.Context, id int64, r Review) (*Conversation, error)

	// Flag marks a conversation for follow-up
	Flag(ctx context.Context, id int64, reason string) (*Conversation, error)
}
