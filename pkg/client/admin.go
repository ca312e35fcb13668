package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// AdminService handles administration API calls. Every call needs an
// admin session.
type AdminService struct {
	client *Client
}

// ChatListOptions filters the conversation listing
type ChatListOptions struct {
	ListOptions
	Flagged bool
	UserID  int64
}

// ExportResult describes one archive export run
type ExportResult struct {
	Key   string    `json:"key"`
	Count int       `json:"count"`
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Users lists accounts
func (s *AdminService) Users(ctx context.Context, opts *ListOptions) (*Page[User], error) {
	var page Page[User]
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/admin/users"+listQuery(opts, nil), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Activate re-enables an account
func (s *AdminService) Activate(ctx context.Context, id int64) (*User, error) {
	return s.userAction(ctx, id, "activate", nil)
}

// Deactivate disables an account. Admins cannot deactivate themselves.
func (s *AdminService) Deactivate(ctx context.Context, id int64) (*User, error) {
	return s.userAction(ctx, id, "deactivate", nil)
}

// SetRole grants admin or returns an account to user. The professional role
// only comes from a subscription.
func (s *AdminService) SetRole(ctx context.Context, id int64, role string) (*User, error) {
	return s.userAction(ctx, id, "promote", map[string]string{"role": role})
}

// ResetUsage sets an account's message counter back to zero
func (s *AdminService) ResetUsage(ctx context.Context, id int64) (*User, error) {
	return s.userAction(ctx, id, "reset-usage", nil)
}

func (s *AdminService) userAction(ctx context.Context, id int64, action string, body interface{}) (*User, error) {
	var user User
	path := fmt.Sprintf("/api/admin/users/%d/%s", id, action)
	if err := s.client.doRequest(ctx, http.MethodPost, path, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Chats lists conversations across all accounts
func (s *AdminService) Chats(ctx context.Context, opts *ChatListOptions) (*Page[Conversation], error) {
	query := url.Values{}
	var list *ListOptions
	if opts != nil {
		list = &opts.ListOptions
		if opts.Flagged {
			query.Set("flagged", "true")
		}
		if opts.UserID > 0 {
			query.Set("user_id", strconv.FormatInt(opts.UserID, 10))
		}
	}

	var page Page[Conversation]
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/admin/chats"+listQuery(list, query), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Unreviewed lists conversations no admin has reviewed yet
func (s *AdminService) Unreviewed(ctx context.Context, opts *ListOptions) (*Page[Conversation], error) {
	var page Page[Conversation]
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/admin/chats/unreviewed"+listQuery(opts, nil), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Review records a verdict on a conversation
func (s *AdminService) Review(ctx context.Context, id int64, approved bool, notes string) (*Conversation, error) {
	var conv Conversation
	body := map[string]interface{}{"approved": approved, "notes": notes}
	if err := s.client.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/admin/chats/%d/review", id), body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Flag marks a conversation for follow-up
func (s *AdminService) Flag(ctx context.Context, id int64, reason string) (*Conversation, error) {
	var conv Conversation
	body := map[string]string{"flagReason": reason}
	if err := s.client.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/admin/chats/%d/flag", id), body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Export writes conversations created since the given time to the archive
// bucket. A zero since lets the server pick the last day.
func (s *AdminService) Export(ctx context.Context, since time.Time) (*ExportResult, error) {
	body := map[string]interface{}{}
	if !since.IsZero() {
		body["since"] = since
	}

	var res ExportResult
	if err := s.client.doRequest(ctx, http.MethodPost, "/api/admin/chats/export", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ActivityLogs lists audited admin actions, newest first
func (s *AdminService) ActivityLogs(ctx context.Context, opts *ListOptions) (*Page[ActivityLog], error) {
	var page Page[ActivityLog]
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/admin/activity-logs"+listQuery(opts, nil), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
