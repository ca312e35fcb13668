package dto

import (
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/billing"
)

// ActivateSubscriptionRequest confirms a PayPal subscription approved in the
// browser. UserID is accepted from older clients and must match the session.
type ActivateSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required,max=128,providerid"`
	UserID         *int64 `json:"userId,omitempty"`
}

// CheckoutSessionResponse carries the hosted Stripe checkout page
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

// BillingInfoDTO is the caller's subscription and usage
type BillingInfoDTO struct {
	SubscriptionID     *string                    `json:"subscriptionId,omitempty"`
	SubscriptionStatus account.SubscriptionStatus `json:"subscriptionStatus"`
	Provider           *account.Provider          `json:"provider,omitempty"`
	Usage              account.Usage              `json:"usage"`
}

// PlansResponse lists the plans on offer
type PlansResponse struct {
	FreeMessages int            `json:"freeMessages"`
	Plans        []billing.Plan `json:"plans"`
}

// WebhookResponse acknowledges a provider notification
type WebhookResponse struct {
	Received bool            `json:"received"`
	Outcome  billing.Outcome `json:"outcome,omitempty"`
}
