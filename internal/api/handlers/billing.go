package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/nflow-health/nflow/internal/api/dto"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/billing"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/i18n"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
	"github.com/nflow-health/nflow/internal/pkg/utils"
	"github.com/nflow-health/nflow/internal/pkg/validator"
)

// Subscriptions applies provider events and browser confirmations
type Subscriptions interface {
	billing.Reconciler
	ActivatePayPal(ctx context.Context, accountID int64, subscriptionID string) (*account.Account, error)
}

// PayPalWebhooks verifies and decodes PayPal notifications
type PayPalWebhooks interface {
	PlanID() string
	VerifyWebhook(ctx context.Context, header http.Header, body []byte) error
	ParseWebhook(body []byte) (billing.Event, bool, error)
}

// StripeBilling starts checkouts and decodes signed Stripe notifications
type StripeBilling interface {
	PriceID() string
	CreateCheckoutSession(ctx context.Context, accountID int64) (string, error)
	ParseWebhook(payload []byte, signature string) (billing.Event, bool, error)
}

// BillingHandler handles subscription endpoints and provider webhooks. A nil
// provider is treated as disabled.
type BillingHandler struct {
	accounts  account.Service
	subs      Subscriptions
	paypal    PayPalWebhooks
	stripe    StripeBilling
	ceiling   int
	logger    *logger.Logger
	validator *validator.Validator
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(accounts account.Service, subs Subscriptions, paypal PayPalWebhooks, stripe StripeBilling, ceiling int, log *logger.Logger, val *validator.Validator) *BillingHandler {
	return &BillingHandler{
		accounts:  accounts,
		subs:      subs,
		paypal:    paypal,
		stripe:    stripe,
		ceiling:   ceiling,
		logger:    log.Component("billing"),
		validator: val,
	}
}

// ListPlans returns the subscription on offer
// @Summary List subscription plans
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.PlansResponse "Plans"
// @Router /api/billing/plans [get]
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plan := billing.Plan{Name: "professional"}
	if h.paypal != nil {
		plan.Providers = append(plan.Providers, account.ProviderPayPal)
		plan.PayPalID = h.paypal.PlanID()
	}
	if h.stripe != nil {
		plan.Providers = append(plan.Providers, account.ProviderStripe)
		plan.StripeID = h.stripe.PriceID()
	}

	plans := []billing.Plan{}
	if len(plan.Providers) > 0 {
		plans = append(plans, plan)
	}

	utils.WriteSuccess(w, http.StatusOK, dto.PlansResponse{
		FreeMessages: h.ceiling,
		Plans:        plans,
	})
}

// Info returns the caller's subscription and usage
// @Summary Billing info
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.BillingInfoDTO "Subscription state"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/billing/info [get]
func (h *BillingHandler) Info(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.BillingInfoDTO{
		SubscriptionID:     a.SubscriptionID,
		SubscriptionStatus: a.SubscriptionStatus,
		Provider:           a.SubscriptionProvider,
		Usage:              a.Usage(h.ceiling),
	})
}

// ActivateSubscription confirms a PayPal subscription for the signed-in account
// @Summary Activate PayPal subscription
// @Description Verify the subscription with PayPal and upgrade the session account
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body dto.ActivateSubscriptionRequest true "PayPal subscription"
// @Success 200 {object} dto.UserDTO "Upgraded account"
// @Failure 400 {object} utils.ErrorResponse "Subscription not active"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Failure 403 {object} utils.ErrorResponse "Subscription belongs to another account"
// @Failure 409 {object} utils.ErrorResponse "A newer subscription event was already applied"
// @Security BearerAuth
// @Router /api/subscriptions/activate [post]
func (h *BillingHandler) ActivateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req dto.ActivateSubscriptionRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if req.UserID != nil && *req.UserID != userID {
		h.logger.WithFields(map[string]interface{}{
			"user_id":      userID,
			"requested_id": *req.UserID,
		}).Warn("Activation for another account refused")
		utils.WriteError(w, errors.Forbidden("Cannot activate a subscription for another account"))
		return
	}

	a, err := h.subs.ActivatePayPal(r.Context(), userID, req.SubscriptionID)
	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"user_id":         userID,
			"subscription_id": req.SubscriptionID,
		}).WithError(err).Warn("Subscription activation failed")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, i18n.FromRequest(r, i18n.SubscriptionActive), dto.NewUserDTO(a))
}

// CreateCheckoutSession starts a Stripe checkout for the signed-in account
// @Summary Create Stripe checkout session
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.CheckoutSessionResponse "Checkout URL"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Failure 503 {object} utils.ErrorResponse "Stripe disabled"
// @Security BearerAuth
// @Router /api/create-subscription-session [post]
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if h.stripe == nil {
		utils.WriteError(w, errors.ServiceUnavailable("Stripe is not configured"))
		return
	}

	url, err := h.stripe.CreateCheckoutSession(r.Context(), userID)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to create checkout session")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.CheckoutSessionResponse{URL: url})
}

// StripeWebhook receives Stripe subscription notifications
// @Summary Stripe webhook
// @Description Signed with the Stripe-Signature header
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse "Processed"
// @Failure 400 {object} utils.ErrorResponse "Invalid signature or payload"
// @Router /api/webhook [post]
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.stripe == nil {
		utils.WriteError(w, errors.ServiceUnavailable("Stripe is not configured"))
		return
	}

	payload, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	evt, handled, err := h.stripe.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	h.finishWebhook(w, r, account.ProviderStripe, evt, handled, err)
}

// PayPalWebhook receives PayPal subscription notifications
// @Summary PayPal webhook
// @Description Verified through the PayPal verify-webhook-signature API
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse "Processed"
// @Failure 400 {object} utils.ErrorResponse "Invalid signature or payload"
// @Router /api/webhooks/paypal [post]
func (h *BillingHandler) PayPalWebhook(w http.ResponseWriter, r *http.Request) {
	if h.paypal == nil {
		utils.WriteError(w, errors.ServiceUnavailable("PayPal is not configured"))
		return
	}

	payload, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	if err := h.paypal.VerifyWebhook(r.Context(), r.Header, payload); err != nil {
		h.finishWebhook(w, r, account.ProviderPayPal, billing.Event{}, false, err)
		return
	}

	evt, handled, err := h.paypal.ParseWebhook(payload)
	h.finishWebhook(w, r, account.ProviderPayPal, evt, handled, err)
}

func (h *BillingHandler) readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Could not read request body"))
		return nil, false
	}
	return payload, true
}

// finishWebhook applies a decoded event. Unknown accounts are acknowledged so
// the provider stops retrying.
func (h *BillingHandler) finishWebhook(w http.ResponseWriter, r *http.Request, provider account.Provider, evt billing.Event, handled bool, err error) {
	log := h.logger.With("provider", string(provider))

	if err != nil {
		metrics.RecordWebhookEvent(string(provider), "unknown", "rejected")
		log.WithError(err).Warn("Webhook rejected")
		utils.WriteErr(w, err)
		return
	}
	if !handled {
		utils.WriteSuccess(w, http.StatusOK, dto.WebhookResponse{Received: true, Outcome: billing.OutcomeIgnored})
		return
	}

	outcome, err := h.subs.Apply(r.Context(), evt)
	if err != nil {
		if errors.IsNotFound(err) {
			log.With("user_id", evt.AccountID).Warn("Webhook for unknown account")
			utils.WriteSuccess(w, http.StatusOK, dto.WebhookResponse{Received: true, Outcome: billing.OutcomeIgnored})
			return
		}
		log.ErrorWithErr(err, "Failed to apply subscription event")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.WebhookResponse{Received: true, Outcome: outcome})
}
