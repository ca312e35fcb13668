package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nflow-health/nflow/internal/api/handlers"
	"github.com/nflow-health/nflow/internal/api/middleware"
	"github.com/nflow-health/nflow/internal/auth"
	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/validator"
	"github.com/nflow-health/nflow/internal/services"
	"github.com/nflow-health/nflow/internal/testutil"
)

const secret = "router-secret"

type okPinger struct{}

func (okPinger) PingContext(ctx context.Context) error { return nil }

type app struct {
	handler  http.Handler
	accounts *testutil.MockAccountRepository
}

func newApp(t *testing.T) *app {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{FrontendURL: "http://localhost:5173", RateLimit: 1000, RateBurst: 1000},
		Auth:   config.AuthConfig{SessionSecret: secret, AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour, BCryptCost: 4},
		Quota:  config.QuotaConfig{FreeMessageLimit: 3, UpgradeURL: "/subscriptions"},
	}
	log := testutil.NewTestLogger()
	val := validator.New()

	accounts := testutil.NewMockAccountRepository()
	convs := testutil.NewMockConversationRepository(accounts)
	audit := services.NewAuditService(testutil.NewMockAuditLogRepository(), log)
	accountSvc := services.NewAccountService(accounts, audit, 3, 4, log)
	gate := services.NewQuotaService(accounts, 3, "/subscriptions")
	chat := services.NewChatService(gate, testutil.NewMockAssistant("Te escucho."), convs, log)
	subs := services.NewSubscriptionService(accounts, testutil.NewMockEventLedger(), time.Hour, nil, log)
	moderation := services.NewModerationService(convs, audit, nil, log)

	h := &Handlers{
		Health:  handlers.NewHealthHandler(okPinger{}, "test", log),
		Auth:    handlers.NewAuthHandler(accountSvc, cfg, log, val),
		Chat:    handlers.NewChatHandler(chat, gate.UpgradeURL(), log, val),
		Billing: handlers.NewBillingHandler(accountSvc, subs, nil, nil, 3, log, val),
		Admin:   handlers.NewAdminHandler(accountSvc, moderation, audit, log, val),
	}
	return &app{
		handler:  New(cfg, log, h, Deps{Gate: gate, Accounts: accounts}),
		accounts: accounts,
	}
}

// session mints a token carrying role, which may differ from storage
func session(t *testing.T, id int64, role account.Role) *http.Cookie {
	t.Helper()
	pair, err := auth.MintTokens(id, "someone", string(role), secret, time.Hour, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.SessionCookie, Value: pair.AccessToken}
}

func (a *app) do(t *testing.T, method, path string, body interface{}, c *http.Cookie) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c != nil {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestRouter_ChatQuotaFlow(t *testing.T) {
	a := newApp(t)
	a.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 2})
	c := session(t, 42, account.RoleUser)

	rr, body := a.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hola"}, c)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, float64(0), body["remainingMessages"])

	rr, body = a.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hola"}, c)
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, true, body["needsSubscription"])
	assert.Equal(t, "/subscriptions", body["redirectTo"])

	stored, err := a.accounts.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.MessageCount)
}

func TestRouter_Authentication(t *testing.T) {
	a := newApp(t)

	rr, _ := a.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hola"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = a.do(t, http.MethodGet, "/api/user", nil, &http.Cookie{Name: middleware.SessionCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = a.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = a.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_AdminRoleReadFromStorage(t *testing.T) {
	a := newApp(t)
	a.accounts.Put(&account.Account{ID: 1, Username: "root", Role: account.RoleAdmin, IsActive: true})
	a.accounts.Put(&account.Account{ID: 2, Username: "ana", Role: account.RoleUser, IsActive: true})

	// token claims admin but the stored account is a plain user
	rr, _ := a.do(t, http.MethodGet, "/api/admin/users", nil, session(t, 2, account.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = a.do(t, http.MethodGet, "/api/admin/users", nil, session(t, 1, account.RoleAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = a.do(t, http.MethodPost, "/api/admin/users/2/promote", nil, session(t, 1, account.RoleAdmin))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// the promotion applies on the very next request
	rr, _ = a.do(t, http.MethodGet, "/api/chats/unreviewed", nil, session(t, 2, account.RoleUser))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = a.do(t, http.MethodPost, "/api/admin/users/1/deactivate", nil, session(t, 2, account.RoleAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = a.do(t, http.MethodGet, "/api/admin/users", nil, session(t, 1, account.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rr.Code, "a deactivated admin keeps no admin access")
}

func TestRouter_ActivationUsesSession(t *testing.T) {
	a := newApp(t)
	a.accounts.Put(&account.Account{ID: 9, Username: "ana", Role: account.RoleUser, IsActive: true})

	rr, _ := a.do(t, http.MethodPost, "/api/subscriptions/activate", map[string]interface{}{"subscriptionId": "I-1", "userId": 10}, session(t, 9, account.RoleUser))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// PayPal is disabled in this app
	rr, _ = a.do(t, http.MethodPost, "/api/subscriptions/activate", map[string]interface{}{"subscriptionId": "I-1"}, session(t, 9, account.RoleUser))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
