package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

// MockAccountRepository is an in-memory account.Repository
type MockAccountRepository struct {
	mu            sync.Mutex
	Accounts      map[int64]*account.Account
	NextID        int64
	CreateError   error
	GetError      error
	UpdateError   error
	GetCallsCount int
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		Accounts: make(map[int64]*account.Account),
		NextID:   1,
	}
}

// Put stores a copy of a as-is, for test setup
func (m *MockAccountRepository) Put(a *account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Accounts[a.ID] = &cp
	if a.ID >= m.NextID {
		m.NextID = a.ID + 1
	}
}

func (m *MockAccountRepository) Create(ctx context.Context, a *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	for _, existing := range m.Accounts {
		if existing.Username == a.Username {
			return errors.Conflict("Username already taken")
		}
	}
	a.ID = m.NextID
	m.NextID++
	if a.Role == "" {
		a.Role = account.RoleUser
	}
	a.IsActive = true
	a.MessageCount = 0
	a.SubscriptionStatus = account.StatusInactive
	a.CreatedAt = time.Now()
	cp := *a
	m.Accounts[a.ID] = &cp
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCallsCount++
	if m.GetError != nil {
		return nil, m.GetError
	}
	a, ok := m.Accounts[id]
	if !ok {
		return nil, errors.NotFound("Account")
	}
	cp := *a
	return &cp, nil
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, a := range m.Accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errors.NotFound("Account")
}

func (m *MockAccountRepository) Update(ctx context.Context, id int64, u account.Update) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}
	a, ok := m.Accounts[id]
	if !ok {
		return nil, errors.NotFound("Account")
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
	cp := *a
	return &cp, nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*account.Account, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.Accounts))
	for id := range m.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*account.Account
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		cp := *m.Accounts[id]
		out = append(out, &cp)
	}
	return out, int64(len(ids)), nil
}

func (m *MockAccountRepository) MessageCount(ctx context.Context, id int64) (int, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return a.MessageCount, nil
}

func (m *MockAccountRepository) ApplySubscription(ctx context.Context, c account.SubscriptionChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return false, m.UpdateError
	}
	a, ok := m.Accounts[c.AccountID]
	if !ok {
		return false, errors.NotFound("Account")
	}
	otherSub := a.SubscriptionID == nil || *a.SubscriptionID != c.SubscriptionID
	supersedes := c.Activate && otherSub && a.SubscriptionStatus != account.StatusActive
	if c.OccurredAt.Unix() < a.SubscriptionEventAt && !supersedes {
		return false, nil
	}
	if c.Activate {
		sameSub := a.SubscriptionStatus == account.StatusActive && a.SubscriptionID != nil && *a.SubscriptionID == c.SubscriptionID
		if !sameSub {
			a.MessageCount = 0
		}
		a.SubscriptionStatus = account.StatusActive
		sub, prov := c.SubscriptionID, c.Provider
		a.SubscriptionID, a.SubscriptionProvider = &sub, &prov
		if a.Role != account.RoleAdmin {
			a.Role = account.RoleProfessional
		}
	} else {
		if a.SubscriptionID != nil && *a.SubscriptionID != c.SubscriptionID {
			return false, nil
		}
		a.SubscriptionStatus = account.StatusCanceled
		if a.SubscriptionID == nil {
			sub := c.SubscriptionID
			a.SubscriptionID = &sub
		}
		if a.SubscriptionProvider == nil {
			prov := c.Provider
			a.SubscriptionProvider = &prov
		}
		if a.Role != account.RoleAdmin {
			a.Role = account.RoleUser
		}
	}
	a.SubscriptionEventAt = c.OccurredAt.Unix()
	return true, nil
}

func (m *MockAccountRepository) ResetUsage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[id]
	if !ok {
		return errors.NotFound("Account")
	}
	a.MessageCount = 0
	return nil
}

func (m *MockAccountRepository) DemoteAdmin(ctx context.Context, id int64) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[id]
	if !ok {
		return nil, errors.NotFound("Account")
	}
	a.Role = a.SubscribedRole()
	cp := *a
	return &cp, nil
}

// MockAuditLogRepository records entries in memory
type MockAuditLogRepository struct {
	mu          sync.Mutex
	Entries     []*auditlog.Entry
	CreateError error
}

func NewMockAuditLogRepository() *MockAuditLogRepository {
	return &MockAuditLogRepository{}
}

func (m *MockAuditLogRepository) Create(ctx context.Context, e *auditlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	e.ID = int64(len(m.Entries) + 1)
	e.CreatedAt = time.Now()
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, limit, offset int) ([]*auditlog.Entry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auditlog.Entry
	for i := len(m.Entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Entries[i])
	}
	return out, int64(len(m.Entries)), nil
}

// Actions returns the recorded action names in order
func (m *MockAuditLogRepository) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Action
	}
	return out
}

// MockAssistant is a scripted conversation.Assistant
type MockAssistant struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Calls   int
	Delay   time.Duration
	LastMsg string
}

func NewMockAssistant(reply string) *MockAssistant {
	return &MockAssistant{Reply: reply}
}

func (m *MockAssistant) Complete(ctx context.Context, history conversation.Turns, message string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.LastMsg = message
	delay, reply, err := m.Delay, m.Reply, m.Err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// CallCount returns how many completions were requested
func (m *MockAssistant) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockEventLedger is an in-memory billing.EventLedger
type MockEventLedger struct {
	mu        sync.Mutex
	Events    map[string]bool
	SeenError error
}

func NewMockEventLedger() *MockEventLedger {
	return &MockEventLedger{Events: make(map[string]bool)}
}

func (m *MockEventLedger) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SeenError != nil {
		return false, m.SeenError
	}
	return m.Events[fmt.Sprintf("%s:%s", provider, eventID)], nil
}

func (m *MockEventLedger) Remember(ctx context.Context, provider, eventID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[fmt.Sprintf("%s:%s", provider, eventID)] = true
	return nil
}

// MockConversationRepository is an in-memory conversation.Repository that
// meters against a MockAccountRepository
type MockConversationRepository struct {
	mu            sync.Mutex
	Accounts      *MockAccountRepository
	Conversations map[int64]*conversation.Conversation
	NextID        int64
	CreateError   error
}

func NewMockConversationRepository(accounts *MockAccountRepository) *MockConversationRepository {
	return &MockConversationRepository{
		Accounts:      accounts,
		Conversations: make(map[int64]*conversation.Conversation),
		NextID:        1,
	}
}

func (m *MockConversationRepository) CreateMetered(ctx context.Context, c *conversation.Conversation, ceiling int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return 0, m.CreateError
	}

	m.Accounts.mu.Lock()
	defer m.Accounts.mu.Unlock()
	a, ok := m.Accounts.Accounts[c.AccountID]
	if !ok {
		return 0, errors.NotFound("Account")
	}
	if !a.IsActive {
		return 0, errors.Forbidden("Account is deactivated")
	}
	if a.Role == account.RoleUser {
		if a.MessageCount >= ceiling {
			return 0, errors.QuotaExceeded("Free message limit reached")
		}
		a.MessageCount++
	}

	c.ID = m.NextID
	m.NextID++
	c.CreatedAt = time.Now()
	cp := *c
	m.Conversations[c.ID] = &cp
	return a.MessageCount, nil
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation")
	}
	cp := *c
	return &cp, nil
}

func (m *MockConversationRepository) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]*conversation.Conversation, int64, error) {
	return m.List(ctx, conversation.Filter{AccountID: &accountID}, limit, offset)
}

func (m *MockConversationRepository) List(ctx context.Context, f conversation.Filter, limit, offset int) ([]*conversation.Conversation, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*conversation.Conversation
	for _, c := range m.Conversations {
		if f.AccountID != nil && c.AccountID != *f.AccountID {
			continue
		}
		if f.Unreviewed && c.Reviewed {
			continue
		}
		if f.Flagged && !c.Flagged {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	if offset >= len(matched) {
		return []*conversation.Conversation{}, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *MockConversationRepository) ListSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor := since.Unix()
	var out []*conversation.Conversation
	for _, c := range m.Conversations {
		at := c.CreatedAt.Unix()
		if at > cursor || (at == cursor && c.ID > afterID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].CreatedAt.Unix(), out[j].CreatedAt.Unix(); a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockConversationRepository) Review(ctx context.Context, id int64, r conversation.Review) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation")
	}
	now := time.Now()
	approved, reviewer, notes := r.Approved, r.ReviewerID, r.Notes
	c.Reviewed = true
	c.Approved = &approved
	c.ReviewerID = &reviewer
	c.ReviewNotes = &notes
	c.ReviewedAt = &now
	cp := *c
	return &cp, nil
}

func (m *MockConversationRepository) Flag(ctx context.Context, id int64, reason string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation")
	}
	c.Flagged = true
	c.FlagReason = &reason
	cp := *c
	return &cp, nil
}
