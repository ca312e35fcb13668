package client

import "time"

// User is an account as the API reports it
type User struct {
	ID                   int64     `json:"id"`
	Username             string    `json:"username"`
	Role                 string    `json:"role"` // user, professional, admin
	IsActive             bool      `json:"isActive"`
	MessageCount         int       `json:"messageCount"`
	SubscriptionID       string    `json:"subscriptionId,omitempty"`
	SubscriptionStatus   string    `json:"subscriptionStatus"`
	SubscriptionProvider string    `json:"subscriptionProvider,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Usage reports the free message allowance
type Usage struct {
	Role      string `json:"role"`
	Count     int    `json:"messageCount"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remainingMessages"`
	Unlimited bool   `json:"unlimited"`
}

// Turn is one message in a conversation
type Turn struct {
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Conversation is one stored exchange
type Conversation struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Messages    []Turn     `json:"messages"`
	Reviewed    bool       `json:"reviewed"`
	Approved    *bool      `json:"approved,omitempty"`
	ReviewedBy  *int64     `json:"reviewedBy,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	Flagged     bool       `json:"flagged"`
	FlagReason  string     `json:"flagReason,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Reply returns the assistant turn of the exchange
func (c *Conversation) Reply() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == "assistant" {
			return c.Messages[i].Content
		}
	}
	return ""
}

// ActivityLog is one audited admin action
type ActivityLog struct {
	ID        int64                  `json:"id"`
	AdminID   int64                  `json:"adminId"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ListOptions contains common options for list operations
type ListOptions struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

// Page is one page of a paginated listing
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
