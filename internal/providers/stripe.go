package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/billing"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

const stripeAccountMetadataKey = "account_id"

// Stripe creates checkout sessions and decodes signed webhooks
type Stripe struct {
	api           *client.API
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
}

// NewStripe creates a Stripe client from configuration
func NewStripe(cfg config.StripeConfig) *Stripe {
	return NewStripeWithBackends(cfg, nil)
}

// NewStripeWithBackends creates a Stripe client on custom backends, nil
// selects the default Stripe API
func NewStripeWithBackends(cfg config.StripeConfig, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &Stripe{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		priceID:       cfg.PriceID,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

// PriceID is the recurring price sold at checkout
func (s *Stripe) PriceID() string {
	return s.priceID
}

// CreateCheckoutSession starts a subscription checkout for an account and
// returns the hosted payment page URL
func (s *Stripe) CreateCheckoutSession(ctx context.Context, accountID int64) (string, error) {
	ref := strconv.FormatInt(accountID, 10)

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(ref),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{stripeAccountMetadataKey: ref},
		},
	}
	params.Context = ctx
	params.AddMetadata(stripeAccountMetadataKey, ref)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", errors.ProviderAPIError("Stripe", err)
	}
	if sess.URL == "" {
		return "", errors.ProviderAPIError("Stripe", fmt.Errorf("checkout session %s has no URL", sess.ID))
	}
	return sess.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and turns the event into
// a billing event. handled is false for events that do not change
// subscription state.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (evt billing.Event, handled bool, err error) {
	e, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return billing.Event{}, false, errors.InvalidSignature("Stripe", err)
	}

	evt = billing.Event{
		ID:         e.ID,
		Provider:   account.ProviderStripe,
		OccurredAt: time.Unix(e.Created, 0),
	}

	switch e.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(e.Data.Raw, &sess); err != nil {
			return billing.Event{}, false, errors.BadRequest("Malformed checkout session payload")
		}
		if sess.Mode != stripe.CheckoutSessionModeSubscription || sess.Subscription == nil {
			return billing.Event{}, false, nil
		}
		evt.Kind = billing.EventActivated
		evt.SubscriptionID = sess.Subscription.ID
		evt.AccountID = parseAccountRef(sess.ClientReferenceID, sess.Metadata)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(e.Data.Raw, &sub); err != nil {
			return billing.Event{}, false, errors.BadRequest("Malformed subscription payload")
		}
		kind, ok := stripeSubscriptionKind(string(e.Type), sub.Status)
		if !ok {
			return billing.Event{}, false, nil
		}
		evt.Kind = kind
		evt.SubscriptionID = sub.ID
		evt.AccountID = parseAccountRef("", sub.Metadata)

	default:
		return billing.Event{}, false, nil
	}

	if err := evt.Validate(); err != nil {
		return billing.Event{}, false, errors.BadRequest(err.Error())
	}
	return evt, true, nil
}

func stripeSubscriptionKind(eventType string, status stripe.SubscriptionStatus) (billing.EventKind, bool) {
	if eventType == "customer.subscription.deleted" {
		return billing.EventCanceled, true
	}
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return billing.EventActivated, true
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return billing.EventCanceled, true
	}
	return "", false
}

func parseAccountRef(ref string, metadata map[string]string) int64 {
	if ref == "" {
		ref = metadata[stripeAccountMetadataKey]
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
