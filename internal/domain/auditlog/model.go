package auditlog

import (
	"context"
	"time"
)

// Admin actions
const (
	ActionActivateUser   = "activate_user"
	ActionDeactivateUser = "deactivate_user"
	ActionPromoteUser    = "promote_user"
	ActionResetUsage     = "reset_usage"
	ActionReviewChat     = "review_chat"
	ActionFlagChat       = "flag_chat"
	ActionExportChats    = "export_chats"
)

// Entry is one administrative action
type Entry struct {
	ID        int64                  `json:"id"`
	AdminID   int64                  `json:"adminId"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Repository stores the append-only admin activity log
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit, offset int) ([]*Entry, int64, error)
}
