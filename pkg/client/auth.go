package client

import (
	"context"
	"net/http"
)

// AuthService handles session and account API calls
type AuthService struct {
	client *Client
}

// Credentials is a username and password pair
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// Login authenticates with username and password
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	return s.startSession(ctx, "/api/login", Credentials{Username: username, Password: password})
}

// Register creates a new account and starts a session for it
func (s *AuthService) Register(ctx context.Context, username, password string) (*LoginResponse, error) {
	return s.startSession(ctx, "/api/register", Credentials{Username: username, Password: password})
}

// Refresh exchanges a refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	return s.startSession(ctx, "/api/auth/refresh", map[string]string{"refreshToken": refreshToken})
}

func (s *AuthService) startSession(ctx context.Context, path string, body interface{}) (*LoginResponse, error) {
	var resp LoginResponse
	if err := s.client.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	// Automatically set the token for future requests
	if resp.AccessToken != "" {
		s.client.SetToken(resp.AccessToken)
	}

	return &resp, nil
}

// Me retrieves the currently authenticated account
func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Usage retrieves the free message allowance of the current account
func (s *AuthService) Usage(ctx context.Context) (*Usage, error) {
	var usage Usage
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/usage", nil, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// Logout ends the session
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.client.doRequest(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
		return err
	}
	s.client.SetToken("")
	return nil
}

// Close deactivates the current account. Its conversations are kept.
func (s *AuthService) Close(ctx context.Context) error {
	if err := s.client.doRequest(ctx, http.MethodDelete, "/api/user", nil, nil); err != nil {
		return err
	}
	s.client.SetToken("")
	return nil
}
