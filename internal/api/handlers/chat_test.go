package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nflow-health/nflow/internal/api/middleware"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/services"
	"github.com/nflow-health/nflow/internal/testutil"
)

type chatFixture struct {
	handler   *ChatHandler
	gate      *services.QuotaService
	accounts  *testutil.MockAccountRepository
	assistant *testutil.MockAssistant
}

func newChatFixture() *chatFixture {
	accounts := testutil.NewMockAccountRepository()
	convs := testutil.NewMockConversationRepository(accounts)
	assistant := testutil.NewMockAssistant("Estoy aquí para escucharte.")
	gate := services.NewQuotaService(accounts, 3, "/subscriptions")
	log := testutil.NewTestLogger()
	chat := services.NewChatService(gate, assistant, convs, log)
	return &chatFixture{
		handler:   NewChatHandler(chat, gate.UpgradeURL(), log, newValidator()),
		gate:      gate,
		accounts:  accounts,
		assistant: assistant,
	}
}

// routed runs the request through the quota middleware the way the router does
func (f *chatFixture) routed(rr *httptest.ResponseRecorder, req *http.Request) {
	middleware.Quota(f.gate)(http.HandlerFunc(f.handler.Send)).ServeHTTP(rr, req)
}

func TestChatHandler_LastFreeMessage(t *testing.T) {
	f := newChatFixture()
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 2})

	rr := httptest.NewRecorder()
	f.routed(rr, withUser(jsonRequest(t, http.MethodPost, "/api/chat", map[string]interface{}{
		"message": "Me siento ansiosa",
		"history": []map[string]string{{"role": "assistant", "content": "Hola"}},
	}), 42))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["remainingMessages"] != float64(0) {
		t.Errorf("remainingMessages = %v, want 0", body["remainingMessages"])
	}
	if body["userId"] != float64(42) {
		t.Errorf("userId = %v, want 42", body["userId"])
	}
	messages, _ := body["messages"].([]interface{})
	if len(messages) != 3 {
		t.Errorf("messages = %d, want history plus the new pair", len(messages))
	}

	a, _ := f.accounts.GetByID(context.Background(), 42)
	if a.MessageCount != 3 {
		t.Errorf("messageCount = %d, want 3", a.MessageCount)
	}

	rr = httptest.NewRecorder()
	f.routed(rr, withUser(jsonRequest(t, http.MethodPost, "/api/chat", map[string]string{"message": "Hola otra vez"}), 42))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	body = decodeBody(t, rr)
	if body["needsSubscription"] != true {
		t.Errorf("needsSubscription = %v, want true", body["needsSubscription"])
	}
	if body["redirectTo"] != "/subscriptions" {
		t.Errorf("redirectTo = %v, want /subscriptions", body["redirectTo"])
	}
	if msg, _ := body["message"].(string); msg == "" {
		t.Error("quota refusal has no message")
	}
	if f.assistant.CallCount() != 1 {
		t.Errorf("assistant called %d times, want 1", f.assistant.CallCount())
	}
}

func TestChatHandler_QuotaMessageLanguage(t *testing.T) {
	f := newChatFixture()
	f.accounts.Put(&account.Account{ID: 7, Username: "sam", Role: account.RoleUser, IsActive: true, MessageCount: 3})

	req := withUser(jsonRequest(t, http.MethodPost, "/api/chat", map[string]string{"message": "hi"}), 7)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rr := httptest.NewRecorder()
	f.routed(rr, req)

	body := decodeBody(t, rr)
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "free message limit") {
		t.Errorf("message = %q, want the English text", msg)
	}
}

func TestChatHandler_UnlimitedRoleHasNoRemaining(t *testing.T) {
	f := newChatFixture()
	f.accounts.Put(&account.Account{ID: 5, Username: "pro", Role: account.RoleProfessional, IsActive: true, MessageCount: 40})

	rr := httptest.NewRecorder()
	f.routed(rr, withUser(jsonRequest(t, http.MethodPost, "/api/chat", map[string]string{"message": "hola"}), 5))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeBody(t, rr)
	if _, ok := body["remainingMessages"]; ok {
		t.Errorf("remainingMessages present for unlimited role: %v", body)
	}
	a, _ := f.accounts.GetByID(context.Background(), 5)
	if a.MessageCount != 40 {
		t.Errorf("messageCount = %d, want unchanged 40", a.MessageCount)
	}
}

func TestChatHandler_Rejects(t *testing.T) {
	f := newChatFixture()
	f.accounts.Put(&account.Account{ID: 1, Username: "ana", Role: account.RoleUser, IsActive: true})

	tooLong := make([]map[string]string, 51)
	for i := range tooLong {
		tooLong[i] = map[string]string{"role": "user", "content": "x"}
	}

	tests := []struct {
		name       string
		body       interface{}
		userID     int64
		wantStatus int
	}{
		{name: "empty message", body: map[string]string{"message": "   "}, userID: 1, wantStatus: http.StatusBadRequest},
		{name: "missing message", body: map[string]string{}, userID: 1, wantStatus: http.StatusBadRequest},
		{name: "malformed json", body: `{"message":`, userID: 1, wantStatus: http.StatusBadRequest},
		{name: "bad history role", body: map[string]interface{}{"message": "hi", "history": []map[string]string{{"role": "system", "content": "x"}}}, userID: 1, wantStatus: http.StatusBadRequest},
		{name: "history too long", body: map[string]interface{}{"message": "hi", "history": tooLong}, userID: 1, wantStatus: http.StatusBadRequest},
		{name: "unauthenticated", body: map[string]string{"message": "hi"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPost, "/api/chat", tt.body)
			if tt.userID != 0 {
				req = withUser(req, tt.userID)
			}
			rr := httptest.NewRecorder()
			f.handler.Send(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	if f.assistant.CallCount() != 0 {
		t.Errorf("assistant called %d times for rejected requests", f.assistant.CallCount())
	}
	a, _ := f.accounts.GetByID(context.Background(), 1)
	if a.MessageCount != 0 {
		t.Errorf("messageCount = %d, want 0", a.MessageCount)
	}
}

func TestChatHandler_AssistantFailure(t *testing.T) {
	f := newChatFixture()
	f.accounts.Put(&account.Account{ID: 1, Username: "ana", Role: account.RoleUser, IsActive: true, MessageCount: 1})
	f.assistant.Err = stderrors.New("upstream timeout")

	rr := httptest.NewRecorder()
	f.routed(rr, withUser(jsonRequest(t, http.MethodPost, "/api/chat", map[string]string{"message": "hola"}), 1))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	body := decodeBody(t, rr)
	if errorCode(body) != errors.ErrCodeProviderAPI {
		t.Errorf("error code = %q, want %q", errorCode(body), errors.ErrCodeProviderAPI)
	}
	if strings.Contains(rr.Body.String(), "upstream timeout") {
		t.Error("response leaks the upstream error")
	}
	a, _ := f.accounts.GetByID(context.Background(), 1)
	if a.MessageCount != 1 {
		t.Errorf("messageCount = %d, want unchanged 1", a.MessageCount)
	}
}

func TestChatHandler_History(t *testing.T) {
	f := newChatFixture()
	f.accounts.Put(&account.Account{ID: 1, Username: "ana", Role: account.RoleAdmin, IsActive: true})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		f.handler.Send(rr, withUser(jsonRequest(t, http.MethodPost, "/api/chat", map[string]string{"message": "hola"}), 1))
		if rr.Code != http.StatusOK {
			t.Fatalf("Send status = %d", rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	f.handler.History(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/chats?page_size=10", nil), 1))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	page := data(t, decodeBody(t, rr))
	if page["total_items"] != float64(2) {
		t.Errorf("total_items = %v, want 2", page["total_items"])
	}
}
