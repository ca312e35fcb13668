package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/services"
	"github.com/nflow-health/nflow/internal/testutil"
)

type adminFixture struct {
	handler  *AdminHandler
	accounts *testutil.MockAccountRepository
	convs    *testutil.MockConversationRepository
	audit    *testutil.MockAuditLogRepository
}

func newAdminFixture() *adminFixture {
	accounts := testutil.NewMockAccountRepository()
	convs := testutil.NewMockConversationRepository(accounts)
	auditRepo := testutil.NewMockAuditLogRepository()
	log := testutil.NewTestLogger()
	audit := services.NewAuditService(auditRepo, log)
	h := NewAdminHandler(
		services.NewAccountService(accounts, audit, 3, 4, log),
		services.NewModerationService(convs, audit, nil, log),
		audit,
		log,
		newValidator(),
	)

	accounts.Put(&account.Account{ID: 1, Username: "root", Role: account.RoleAdmin, IsActive: true})
	accounts.Put(&account.Account{ID: 2, Username: "ana", Role: account.RoleUser, IsActive: true, MessageCount: 3})
	return &adminFixture{handler: h, accounts: accounts, convs: convs, audit: auditRepo}
}

func (f *adminFixture) seedConversation(t *testing.T) int64 {
	t.Helper()
	c := &conversation.Conversation{AccountID: 2, Turns: conversation.Turns{{Role: conversation.SpeakerUser, Content: "hola"}}}
	if _, err := f.convs.CreateMetered(context.Background(), c, 10); err != nil {
		t.Fatalf("CreateMetered() error = %v", err)
	}
	return c.ID
}

func TestAdminHandler_AccountActions(t *testing.T) {
	tests := []struct {
		name       string
		call       func(h *AdminHandler) http.HandlerFunc
		id         string
		body       interface{}
		wantStatus int
		check      func(t *testing.T, a *account.Account)
	}{
		{
			name:       "deactivate",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.DeactivateUser },
			id:         "2",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, a *account.Account) {
				if a.IsActive {
					t.Error("account still active")
				}
			},
		},
		{
			name:       "deactivate self",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.DeactivateUser },
			id:         "1",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "promote defaults to admin",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.PromoteUser },
			id:         "2",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, a *account.Account) {
				if a.Role != account.RoleAdmin {
					t.Errorf("role = %s, want admin", a.Role)
				}
			},
		},
		{
			name:       "professional cannot be granted by hand",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.PromoteUser },
			id:         "2",
			body:       map[string]string{"role": "professional"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "reset usage",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.ResetUsage },
			id:         "2",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, a *account.Account) {
				if a.MessageCount != 0 {
					t.Errorf("messageCount = %d, want 0", a.MessageCount)
				}
			},
		},
		{
			name:       "unknown account",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.ActivateUser },
			id:         "99",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad id",
			call:       func(h *AdminHandler) http.HandlerFunc { return h.ActivateUser },
			id:         "abc",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			var req *http.Request
			if tt.body != nil {
				req = jsonRequest(t, http.MethodPost, "/api/admin/users/"+tt.id, tt.body)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/api/admin/users/"+tt.id, nil)
			}
			rr := httptest.NewRecorder()
			tt.call(f.handler)(rr, withID(withUser(req, 1), tt.id))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.check != nil {
				a, _ := f.accounts.GetByID(context.Background(), 2)
				tt.check(t, a)
			}
		})
	}
}

func TestAdminHandler_Moderation(t *testing.T) {
	f := newAdminFixture()
	first := strconv.FormatInt(f.seedConversation(t), 10)
	second := strconv.FormatInt(f.seedConversation(t), 10)

	rr := httptest.NewRecorder()
	f.handler.ListUnreviewed(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/admin/chats/unreviewed", nil), 1))
	if got := data(t, decodeBody(t, rr))["total_items"]; got != float64(2) {
		t.Errorf("unreviewed = %v, want 2", got)
	}

	rr = httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/admin/chats/x/review", map[string]interface{}{"approved": true, "notes": " ok "})
	f.handler.ReviewChat(rr, withID(withUser(req, 1), first))
	if rr.Code != http.StatusOK {
		t.Fatalf("review status = %d: %s", rr.Code, rr.Body.String())
	}
	reviewed := data(t, decodeBody(t, rr))
	if reviewed["reviewed"] != true || reviewed["reviewedBy"] != float64(1) {
		t.Errorf("reviewed conversation = %v", reviewed)
	}

	rr = httptest.NewRecorder()
	req = jsonRequest(t, http.MethodPost, "/api/admin/chats/x/review", map[string]interface{}{"notes": "no verdict"})
	f.handler.ReviewChat(rr, withID(withUser(req, 1), first))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("review without verdict status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = httptest.NewRecorder()
	req = jsonRequest(t, http.MethodPost, "/api/admin/chats/x/flag", map[string]string{"flagReason": "self-harm mention"})
	f.handler.FlagChat(rr, withID(withUser(req, 1), second))
	if rr.Code != http.StatusOK {
		t.Fatalf("flag status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	f.handler.ListChats(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/admin/chats?flagged=true", nil), 1))
	if got := data(t, decodeBody(t, rr))["total_items"]; got != float64(1) {
		t.Errorf("flagged = %v, want 1", got)
	}

	rr = httptest.NewRecorder()
	f.handler.ActivityLogs(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/admin/activity-logs", nil), 1))
	if got := data(t, decodeBody(t, rr))["total_items"]; got != float64(2) {
		t.Errorf("activity entries = %v, want 2", got)
	}
	actions := f.audit.Actions()
	if len(actions) != 2 || actions[0] != auditlog.ActionReviewChat || actions[1] != auditlog.ActionFlagChat {
		t.Errorf("audit actions = %v", actions)
	}
}

func TestAdminHandler_ExportDisabled(t *testing.T) {
	f := newAdminFixture()

	rr := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/admin/chats/export", map[string]interface{}{"since": time.Now().Add(-time.Hour)})
	f.handler.ExportChats(rr, withUser(req, 1))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
