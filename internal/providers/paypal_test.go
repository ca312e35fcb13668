package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/billing"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

type fakePayPal struct {
	verifyStatus string
	verifyBody   map[string]interface{}
	tokenCalls   int
	subs         map[string]PayPalSubscription
}

func (f *fakePayPal) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.verifyBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": f.verifyStatus})
	})
	mux.HandleFunc("/v1/billing/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/billing/subscriptions/"):]
		sub, ok := f.subs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(sub)
	})
	return httptest.NewServer(mux)
}

func newTestPayPal(url string) *PayPal {
	return NewPayPalWithBaseURL(config.PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
		PlanID:       "P-1",
	}, url)
}

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set("Paypal-Auth-Algo", "SHA256withRSA")
	h.Set("Paypal-Cert-Url", "https://api.paypal.com/cert")
	h.Set("Paypal-Transmission-Id", "tx-1")
	h.Set("Paypal-Transmission-Sig", "sig")
	h.Set("Paypal-Transmission-Time", "2024-05-01T10:00:00Z")
	return h
}

func TestPayPal_VerifyWebhook(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	srv := fake.server(t)
	defer srv.Close()

	pp := newTestPayPal(srv.URL)
	body := []byte(`{"id":"WH-EVT-1","event_type":"BILLING.SUBSCRIPTION.ACTIVATED"}`)

	require.NoError(t, pp.VerifyWebhook(context.Background(), signedHeaders(), body))
	assert.Equal(t, "WH-1", fake.verifyBody["webhook_id"])
	assert.Equal(t, "tx-1", fake.verifyBody["transmission_id"])
	event, ok := fake.verifyBody["webhook_event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "WH-EVT-1", event["id"])

	fake.verifyStatus = "FAILURE"
	err := pp.VerifyWebhook(context.Background(), signedHeaders(), body)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSignature))

	err = pp.VerifyWebhook(context.Background(), http.Header{}, body)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSignature))
}

func TestPayPal_ParseWebhook(t *testing.T) {
	pp := newTestPayPal("http://unused")

	tests := []struct {
		name        string
		body        string
		wantHandled bool
		wantKind    billing.EventKind
		wantErr     bool
	}{
		{
			name:        "activated",
			body:        `{"id":"E1","event_type":"BILLING.SUBSCRIPTION.ACTIVATED","create_time":"2024-05-01T10:00:00Z","resource":{"id":"I-1","custom_id":"42"}}`,
			wantHandled: true,
			wantKind:    billing.EventActivated,
		},
		{
			name:        "suspended counts as canceled",
			body:        `{"id":"E2","event_type":"BILLING.SUBSCRIPTION.SUSPENDED","resource":{"id":"I-1","custom_id":"42"}}`,
			wantHandled: true,
			wantKind:    billing.EventCanceled,
		},
		{
			name: "payment events are ignored",
			body: `{"id":"E3","event_type":"PAYMENT.SALE.COMPLETED","resource":{"id":"S-1"}}`,
		},
		{
			name:    "malformed json",
			body:    `{"id":`,
			wantErr: true,
		},
		{
			name:    "missing account reference",
			body:    `{"id":"E4","event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"id":"I-1"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, handled, err := pp.ParseWebhook([]byte(tt.body))
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeBadRequest), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHandled, handled)
			if !handled {
				return
			}
			assert.Equal(t, tt.wantKind, evt.Kind)
			assert.Equal(t, account.ProviderPayPal, evt.Provider)
			assert.Equal(t, "I-1", evt.SubscriptionID)
			assert.Equal(t, int64(42), evt.AccountID)
			assert.False(t, evt.OccurredAt.IsZero())
		})
	}
}

func TestPayPal_GetSubscription(t *testing.T) {
	fake := &fakePayPal{subs: map[string]PayPalSubscription{
		"I-1": {ID: "I-1", Status: "ACTIVE", CustomID: "42", PlanID: "P-1"},
	}}
	srv := fake.server(t)
	defer srv.Close()

	pp := newTestPayPal(srv.URL)

	sub, err := pp.GetSubscription(context.Background(), "I-1")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", sub.Status)
	assert.Equal(t, int64(42), sub.AccountID())

	_, err = pp.GetSubscription(context.Background(), "I-404")
	assert.True(t, errors.IsNotFound(err))

	// the id stays one path segment
	_, err = pp.GetSubscription(context.Background(), "I-1?fields=plan")
	assert.True(t, errors.IsNotFound(err))

	// token is cached between calls
	assert.Equal(t, 1, fake.tokenCalls)
}
