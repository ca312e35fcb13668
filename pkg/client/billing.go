package client

import (
	"context"
	"net/http"
)

// BillingService handles subscription API calls
type BillingService struct {
	client *Client
}

// Plan is a purchasable subscription
type Plan struct {
	Name          string   `json:"name"`
	Providers     []string `json:"providers"`
	PayPalPlanID  string   `json:"paypalPlanId,omitempty"`
	StripePriceID string   `json:"stripePriceId,omitempty"`
}

// Plans lists the free allowance and the paid plans
type Plans struct {
	FreeMessages int    `json:"freeMessages"`
	Plans        []Plan `json:"plans"`
}

// BillingInfo is the subscription state of the current account
type BillingInfo struct {
	SubscriptionID     string `json:"subscriptionId,omitempty"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	Provider           string `json:"provider,omitempty"`
	Usage              Usage  `json:"usage"`
}

// Plans lists available plans. No session is needed.
func (s *BillingService) Plans(ctx context.Context) (*Plans, error) {
	var plans Plans
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/billing/plans", nil, &plans); err != nil {
		return nil, err
	}
	return &plans, nil
}

// Info retrieves the current account's subscription state
func (s *BillingService) Info(ctx context.Context) (*BillingInfo, error) {
	var info BillingInfo
	if err := s.client.doRequest(ctx, http.MethodGet, "/api/billing/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ActivatePayPal attaches an approved PayPal subscription to the current account
func (s *BillingService) ActivatePayPal(ctx context.Context, subscriptionID string) (*User, error) {
	var user User
	body := map[string]string{"subscriptionId": subscriptionID}
	if err := s.client.doRequest(ctx, http.MethodPost, "/api/subscriptions/activate", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CheckoutURL starts a Stripe checkout and returns the page to send the user to
func (s *BillingService) CheckoutURL(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := s.client.doRequest(ctx, http.MethodPost, "/api/create-subscription-session", nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
