package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/domain/quota"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/testutil"
)

type chatFixture struct {
	service   *ChatService
	accounts  *testutil.MockAccountRepository
	convs     *testutil.MockConversationRepository
	assistant *testutil.MockAssistant
}

func newChatFixture(ceiling int) *chatFixture {
	accounts := testutil.NewMockAccountRepository()
	convs := testutil.NewMockConversationRepository(accounts)
	assistant := testutil.NewMockAssistant("I hear you.")
	gate := NewQuotaService(accounts, ceiling, "/subscriptions")
	return &chatFixture{
		service:   NewChatService(gate, assistant, convs, testutil.NewTestLogger()),
		accounts:  accounts,
		convs:     convs,
		assistant: assistant,
	}
}

func (f *chatFixture) count(t *testing.T, id int64) int {
	t.Helper()
	n, err := f.accounts.MessageCount(context.Background(), id)
	if err != nil {
		t.Fatalf("MessageCount() error = %v", err)
	}
	return n
}

func needsSubscription(err error) bool {
	appErr := errors.From(err)
	if appErr.Code != errors.ErrCodeQuotaExceeded {
		return false
	}
	details, ok := appErr.Details.(map[string]interface{})
	return ok && details["needsSubscription"] == true && details["redirectTo"] == "/subscriptions"
}

func TestChatService_LastFreeMessage(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 2})
	ctx := context.Background()

	conv, decision, err := f.service.Send(ctx, 42, "I feel anxious", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if decision.Remaining != 0 {
		t.Errorf("Send() remaining = %d, want 0", decision.Remaining)
	}
	if got := f.count(t, 42); got != 3 {
		t.Errorf("stored count = %d, want 3", got)
	}
	if len(conv.Turns) != 2 || conv.Turns[0].Role != conversation.SpeakerUser || conv.LastReply() != "I hear you." {
		t.Errorf("Send() turns = %+v", conv.Turns)
	}

	_, _, err = f.service.Send(ctx, 42, "hello again", nil)
	if !needsSubscription(err) {
		t.Errorf("Send() over limit error = %v, want quota exceeded with upsell", err)
	}
	if got := f.count(t, 42); got != 3 {
		t.Errorf("count after refusal = %d, want 3", got)
	}
	if f.assistant.CallCount() != 1 {
		t.Errorf("assistant calls = %d, want 1", f.assistant.CallCount())
	}
}

func TestChatService_FreshAccountSequence(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 7, Username: "new", Role: account.RoleUser, IsActive: true})
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		_, decision, err := f.service.Send(ctx, 7, fmt.Sprintf("message %d", want), nil)
		if err != nil {
			t.Fatalf("Send() #%d error = %v", want, err)
		}
		if decision.Count != want {
			t.Errorf("Send() #%d count = %d, want %d", want, decision.Count, want)
		}
		if got := f.count(t, 7); got != want {
			t.Errorf("stored count after #%d = %d", want, got)
		}
	}

	if _, _, err := f.service.Send(ctx, 7, "message 4", nil); !needsSubscription(err) {
		t.Errorf("Send() #4 error = %v, want quota exceeded", err)
	}
	if got := f.count(t, 7); got != 3 {
		t.Errorf("stored count after refusal = %d, want 3", got)
	}
}

func TestChatService_UnrestrictedRoles(t *testing.T) {
	for _, role := range []account.Role{account.RoleProfessional, account.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			f := newChatFixture(3)
			f.accounts.Put(&account.Account{ID: 1, Username: "x", Role: role, IsActive: true, MessageCount: 50})

			for i := 0; i < 5; i++ {
				_, decision, err := f.service.Send(context.Background(), 1, "hi", nil)
				if err != nil {
					t.Fatalf("Send() error = %v", err)
				}
				if !decision.Unlimited {
					t.Errorf("Send() decision = %+v, want unlimited", decision)
				}
			}
			if got := f.count(t, 1); got != 50 {
				t.Errorf("count = %d, want unchanged 50", got)
			}
		})
	}
}

func TestChatService_AssistantFailureIsNotCharged(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 1})
	f.assistant.Err = fmt.Errorf("upstream timeout")

	_, _, err := f.service.Send(context.Background(), 42, "hi", nil)
	if !errors.HasCode(err, errors.ErrCodeProviderAPI) {
		t.Errorf("Send() error = %v, want provider error", err)
	}
	if got := f.count(t, 42); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if len(f.convs.Conversations) != 0 {
		t.Errorf("stored %d conversations, want 0", len(f.convs.Conversations))
	}
}

func TestChatService_StoreFailureIsNotCharged(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true})
	f.convs.CreateError = errors.DatabaseError("Failed to save conversation", fmt.Errorf("disk full"))

	_, _, err := f.service.Send(context.Background(), 42, "hi", nil)
	if !errors.HasCode(err, errors.ErrCodeDatabase) {
		t.Errorf("Send() error = %v, want database error", err)
	}
	if got := f.count(t, 42); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestChatService_KeepsHistory(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true})

	history := conversation.Turns{
		{Role: conversation.SpeakerUser, Content: "hola"},
		{Role: conversation.SpeakerAssistant, Content: "hola, ¿cómo estás?"},
	}
	conv, _, err := f.service.Send(context.Background(), 42, "mal", history)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(conv.Turns) != 4 || conv.Turns[0].Content != "hola" || conv.Turns[2].Content != "mal" {
		t.Errorf("turns = %+v", conv.Turns)
	}

	list, total, err := f.service.History(context.Background(), 42, 10, 0)
	if err != nil || total != 1 || len(list) != 1 {
		t.Errorf("History() = %d items, total %d, err %v", len(list), total, err)
	}
}

func TestChatService_DeactivatedAccount(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleProfessional, IsActive: false})

	_, _, err := f.service.Send(context.Background(), 42, "hi", nil)
	if !errors.HasCode(err, errors.ErrCodeForbidden) {
		t.Errorf("Send() error = %v, want forbidden", err)
	}
	if f.assistant.CallCount() != 0 {
		t.Error("assistant was called for a deactivated account")
	}
}

func TestChatService_ConcurrentLastMessage(t *testing.T) {
	f := newChatFixture(3)
	f.accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 2})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.service.Send(context.Background(), 42, "hi", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case needsSubscription(err):
				refused++
			default:
				t.Errorf("Send() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || refused != workers-1 {
		t.Errorf("succeeded = %d refused = %d, want 1 and %d", succeeded, refused, workers-1)
	}
	if got := f.count(t, 42); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

type countingGate struct {
	quota.Gate
	calls int
}

func (g *countingGate) Check(ctx context.Context, accountID int64) (quota.Decision, error) {
	g.calls++
	return g.Gate.Check(ctx, accountID)
}

func TestChatService_ReusesDecisionFromContext(t *testing.T) {
	accounts := testutil.NewMockAccountRepository()
	convs := testutil.NewMockConversationRepository(accounts)
	gate := &countingGate{Gate: NewQuotaService(accounts, 3, "/subscriptions")}
	svc := NewChatService(gate, testutil.NewMockAssistant("I hear you."), convs, testutil.NewTestLogger())
	accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 1})

	checked, err := gate.Check(context.Background(), 42)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	ctx := quota.NewContext(context.Background(), checked)

	_, decision, err := svc.Send(ctx, 42, "hola", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gate.calls != 1 {
		t.Errorf("gate checks = %d, want 1", gate.calls)
	}
	if decision.Remaining != 1 {
		t.Errorf("Send() remaining = %d, want 1", decision.Remaining)
	}

	// the carried decision is outdated once the counter reaches the ceiling,
	// and the metered insert still refuses
	accounts.Put(&account.Account{ID: 42, Username: "maria", Role: account.RoleUser, IsActive: true, MessageCount: 3})
	if _, _, err := svc.Send(ctx, 42, "otra vez", nil); !needsSubscription(err) {
		t.Errorf("Send() with outdated decision error = %v, want quota exceeded", err)
	}
	if got, _ := accounts.MessageCount(context.Background(), 42); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}
