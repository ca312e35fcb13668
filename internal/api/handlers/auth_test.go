package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nflow-health/nflow/internal/api/middleware"
	"github.com/nflow-health/nflow/internal/auth"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/services"
	"github.com/nflow-health/nflow/internal/testutil"
)

func newAuthHandler() (*AuthHandler, *testutil.MockAccountRepository) {
	repo := testutil.NewMockAccountRepository()
	log := testutil.NewTestLogger()
	cfg := testConfig()
	accounts := services.NewAccountService(repo, services.NewAuditService(testutil.NewMockAuditLogRepository(), log), cfg.Quota.FreeMessageLimit, cfg.Auth.BCryptCost, log)
	return NewAuthHandler(accounts, cfg, log, newValidator()), repo
}

func cookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	h, _ := newAuthHandler()

	rr := httptest.NewRecorder()
	h.Register(rr, jsonRequest(t, http.MethodPost, "/api/register", map[string]string{"username": "maria", "password": "s3cret-pass"}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Register status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	session := cookie(rr, middleware.SessionCookie)
	if session == nil || !session.HttpOnly {
		t.Fatalf("session cookie = %+v, want an HttpOnly cookie", session)
	}
	claims, err := auth.ParseClaims(session.Value, "test-secret", auth.KindAccess)
	if err != nil {
		t.Fatalf("session token did not parse: %v", err)
	}
	user, _ := data(t, decodeBody(t, rr))["user"].(map[string]interface{})
	if user["id"] != float64(claims.UserID) || user["messageCount"] != float64(0) || user["subscriptionStatus"] != "inactive" {
		t.Errorf("registered user = %v", user)
	}

	rr = httptest.NewRecorder()
	h.Register(rr, jsonRequest(t, http.MethodPost, "/api/register", map[string]string{"username": "maria", "password": "another-pass"}))
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate Register status = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = httptest.NewRecorder()
	h.Login(rr, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{"username": "maria", "password": "s3cret-pass"}))
	if rr.Code != http.StatusOK {
		t.Errorf("Login status = %d, want %d", rr.Code, http.StatusOK)
	}
	if cookie(rr, RefreshCookie) == nil {
		t.Error("Login did not set the refresh cookie")
	}
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	h, _ := newAuthHandler()
	ctx := context.Background()
	if _, err := h.accounts.Register(ctx, "maria", "s3cret-pass"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	closed, _ := h.accounts.Register(ctx, "leo", "s3cret-pass")
	if err := h.accounts.Close(ctx, closed.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	tests := []struct {
		name       string
		body       interface{}
		lang       string
		wantStatus int
		wantMsg    string
	}{
		{name: "wrong password", body: map[string]string{"username": "maria", "password": "nope"}, wantStatus: http.StatusUnauthorized, wantMsg: "Usuario o contraseña incorrectos"},
		{name: "unknown user", body: map[string]string{"username": "ghost", "password": "nope"}, lang: "en", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid username or password"},
		{name: "closed account", body: map[string]string{"username": "leo", "password": "s3cret-pass"}, lang: "en", wantStatus: http.StatusUnauthorized, wantMsg: "Your account has been deactivated"},
		{name: "missing password", body: map[string]string{"username": "maria"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPost, "/api/login", tt.body)
			if tt.lang != "" {
				req.Header.Set("Accept-Language", tt.lang)
			}
			rr := httptest.NewRecorder()
			h.Login(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantMsg == "" {
				return
			}
			e, _ := decodeBody(t, rr)["error"].(map[string]interface{})
			if e["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %q", e["message"], tt.wantMsg)
			}
			if cookie(rr, middleware.SessionCookie) != nil {
				t.Error("failed login set a session cookie")
			}
		})
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	h, _ := newAuthHandler()
	a, _ := h.accounts.Register(context.Background(), "maria", "s3cret-pass")
	pair, err := auth.MintTokens(a.ID, a.Username, string(a.Role), "test-secret", h.config.Auth.AccessTokenExpiry, h.config.Auth.RefreshTokenExpiry)
	if err != nil {
		t.Fatalf("MintTokens() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: pair.RefreshToken})
	rr := httptest.NewRecorder()
	h.RefreshToken(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("refresh from cookie status = %d, want %d", rr.Code, http.StatusOK)
	}

	// an access token is not a refresh token
	rr = httptest.NewRecorder()
	h.RefreshToken(rr, jsonRequest(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": pair.AccessToken}))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("refresh with access token status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_MeUsageClose(t *testing.T) {
	h, repo := newAuthHandler()
	a, _ := h.accounts.Register(context.Background(), "maria", "s3cret-pass")

	rr := httptest.NewRecorder()
	h.Usage(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/usage", nil), a.ID))
	usage := data(t, decodeBody(t, rr))
	if usage["remainingMessages"] != float64(3) || usage["limit"] != float64(3) {
		t.Errorf("usage = %v", usage)
	}

	rr = httptest.NewRecorder()
	h.Me(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/user", nil), a.ID))
	if rr.Code != http.StatusOK {
		t.Errorf("Me status = %d, want %d", rr.Code, http.StatusOK)
	}

	rr = httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous Me status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = httptest.NewRecorder()
	h.Close(rr, withUser(httptest.NewRequest(http.MethodDelete, "/api/user", nil), a.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Close status = %d, want %d", rr.Code, http.StatusOK)
	}
	if c := cookie(rr, middleware.SessionCookie); c == nil || c.MaxAge >= 0 {
		t.Errorf("Close did not clear the session cookie: %+v", c)
	}
	stored, err := repo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("closed account was removed: %v", err)
	}
	if stored.IsActive {
		t.Error("closed account is still active")
	}

	rr = httptest.NewRecorder()
	h.Me(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/user", nil), 999))
	if errorCode(decodeBody(t, rr)) != errors.ErrCodeUnauthorized {
		t.Error("Me for a missing account should be unauthorized")
	}
}
