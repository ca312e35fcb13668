package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ChatService handles assistant API calls
type ChatService struct {
	client *Client
}

// SendRequest is one user message plus the prior turns shown to the assistant
type SendRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history,omitempty"`
}

// SendResponse is the stored exchange. RemainingMessages is nil for
// accounts without a message ceiling.
type SendResponse struct {
	Conversation
	RemainingMessages *int `json:"remainingMessages,omitempty"`
}

// Send posts a message and returns the assistant's reply. When the free
// allowance is used up the error is an *APIError with IsQuotaExceeded set.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := s.client.doRequest(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists the current account's conversations, newest first
func (s *ChatService) History(ctx context.Context, opts *ListOptions) (*Page[Conversation], error) {
	var page Page[Conversation]
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/chats"+listQuery(opts, nil), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func listQuery(opts *ListOptions, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if opts != nil {
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}
