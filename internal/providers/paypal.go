package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/billing"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

// PayPal webhook event types
const (
	PayPalSubscriptionActivated   = "BILLING.SUBSCRIPTION.ACTIVATED"
	PayPalSubscriptionReactivated = "BILLING.SUBSCRIPTION.RE-ACTIVATED"
	PayPalSubscriptionCancelled   = "BILLING.SUBSCRIPTION.CANCELLED"
	PayPalSubscriptionSuspended   = "BILLING.SUBSCRIPTION.SUSPENDED"
	PayPalSubscriptionExpired     = "BILLING.SUBSCRIPTION.EXPIRED"
)

var paypalTransmissionHeaders = []string{
	"Paypal-Auth-Algo",
	"Paypal-Cert-Url",
	"Paypal-Transmission-Id",
	"Paypal-Transmission-Sig",
	"Paypal-Transmission-Time",
}

// PayPalSubscription is the subset of a billing subscription we read
type PayPalSubscription struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	PlanID    string    `json:"plan_id"`
	CustomID  string    `json:"custom_id"`
	StartTime time.Time `json:"start_time"`
}

// AccountID parses the custom_id the subscribe button attached, or 0
func (s *PayPalSubscription) AccountID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s.CustomID), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// PayPal talks to the PayPal REST API with client-credential tokens
type PayPal struct {
	baseURL   string
	webhookID string
	planID    string
	http      *http.Client
}

// NewPayPal creates a PayPal client for the configured environment
func NewPayPal(cfg config.PayPalConfig) *PayPal {
	return NewPayPalWithBaseURL(cfg, cfg.BaseURL())
}

// NewPayPalWithBaseURL creates a PayPal client against baseURL
func NewPayPalWithBaseURL(cfg config.PayPalConfig, baseURL string) *PayPal {
	baseURL = strings.TrimRight(baseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	client := cc.Client(context.Background())
	client.Timeout = 15 * time.Second

	return &PayPal{
		baseURL:   baseURL,
		webhookID: cfg.WebhookID,
		planID:    cfg.PlanID,
		http:      client,
	}
}

// PlanID is the billing plan the subscribe button uses
func (p *PayPal) PlanID() string {
	return p.planID
}

// VerifyWebhook asks PayPal whether the transmission headers sign body
func (p *PayPal) VerifyWebhook(ctx context.Context, header http.Header, body []byte) error {
	for _, h := range paypalTransmissionHeaders {
		if header.Get(h) == "" {
			return errors.InvalidSignature("PayPal", fmt.Errorf("missing %s header", h))
		}
	}

	req := map[string]interface{}{
		"auth_algo":         header.Get("Paypal-Auth-Algo"),
		"cert_url":          header.Get("Paypal-Cert-Url"),
		"transmission_id":   header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  header.Get("Paypal-Transmission-Sig"),
		"transmission_time": header.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return err
	}
	if resp.VerificationStatus != "SUCCESS" {
		return errors.InvalidSignature("PayPal", fmt.Errorf("verification status %q", resp.VerificationStatus))
	}
	return nil
}

type paypalWebhook struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
		Status   string `json:"status"`
	} `json:"resource"`
}

// ParseWebhook turns a verified PayPal notification into a billing event.
// handled is false for event types that do not change subscription state.
func (p *PayPal) ParseWebhook(body []byte) (evt billing.Event, handled bool, err error) {
	var hook paypalWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return billing.Event{}, false, errors.BadRequest("Malformed PayPal webhook payload")
	}

	switch hook.EventType {
	case PayPalSubscriptionActivated, PayPalSubscriptionReactivated:
		evt.Kind = billing.EventActivated
	case PayPalSubscriptionCancelled, PayPalSubscriptionSuspended, PayPalSubscriptionExpired:
		evt.Kind = billing.EventCanceled
	default:
		return billing.Event{}, false, nil
	}

	accountID, convErr := strconv.ParseInt(strings.TrimSpace(hook.Resource.CustomID), 10, 64)
	if convErr != nil || accountID <= 0 {
		return billing.Event{}, false, errors.BadRequest("PayPal subscription has no account reference")
	}

	evt.ID = hook.ID
	evt.Provider = account.ProviderPayPal
	evt.SubscriptionID = hook.Resource.ID
	evt.AccountID = accountID
	evt.OccurredAt = time.Now()
	if ts, perr := time.Parse(time.RFC3339, hook.CreateTime); perr == nil {
		evt.OccurredAt = ts
	}

	if err := evt.Validate(); err != nil {
		return billing.Event{}, false, errors.BadRequest(err.Error())
	}
	return evt, true, nil
}

// GetSubscription fetches a billing subscription by ID
func (p *PayPal) GetSubscription(ctx context.Context, id string) (*PayPalSubscription, error) {
	var sub PayPalSubscription
	if err := p.do(ctx, http.MethodGet, "/v1/billing/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (p *PayPal) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Internal("Failed to encode PayPal request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return errors.Internal("Failed to build PayPal request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return errors.ProviderAPIError("PayPal", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.ProviderAPIError("PayPal", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("PayPal subscription")
	case resp.StatusCode >= 300:
		return errors.ProviderAPIError("PayPal", fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.ProviderAPIError("PayPal", err)
	}
	return nil
}
