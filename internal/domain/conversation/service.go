package conversation

import "context"

// ModerationService defines the admin review workflow
type ModerationService interface {
	List(ctx context.Context, f Filter, limit, offset int) ([]*Conversation, int64, error)
	Review(ctx context.Context, adminID, id int64, approved bool, notes string) (*Conversation, error)
	Flag(ctx context.Context, adminID, id int64, reason string) (*Conversation, error)
}

// Assistant produces the assistant's reply to a message given the prior turns
type Assistant interface {
	Complete(ctx context.Context, history Turns, message string) (string, error)
}
