package services

import (
	"context"
	"time"

	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/domain/quota"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
)

// ChatService runs one metered exchange with the assistant
type ChatService struct {
	gate      quota.Gate
	assistant conversation.Assistant
	convs     conversation.Repository
	logger    *logger.Logger
	now       func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(gate quota.Gate, assistant conversation.Assistant, convs conversation.Repository, log *logger.Logger) *ChatService {
	return &ChatService{
		gate:      gate,
		assistant: assistant,
		convs:     convs,
		logger:    log,
		now:       time.Now,
	}
}

// Send checks the quota, asks the assistant and saves the exchange. The
// message is charged only when the conversation is stored, so a failed
// completion leaves the counter untouched. A decision the quota middleware
// already put in ctx is reused; the metered insert re-checks the ceiling
// at commit either way.
func (s *ChatService) Send(ctx context.Context, accountID int64, message string, history conversation.Turns) (*conversation.Conversation, quota.Decision, error) {
	decision, ok := quota.FromContext(ctx)
	if !ok {
		var err error
		decision, err = s.gate.Check(ctx, accountID)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeQuotaExceeded) {
				metrics.RecordChatExchange(string(decision.Role), "quota_exceeded")
			}
			return nil, decision, err
		}
	}
	role := string(decision.Role)

	asked := s.now()
	reply, err := s.assistant.Complete(ctx, history, message)
	if err != nil {
		metrics.RecordChatExchange(role, "llm_error")
		s.logger.WithFields(map[string]interface{}{
			"user_id": accountID,
		}).WithError(err).Error("Assistant completion failed")
		return nil, decision, errors.ProviderAPIError("OpenAI", err)
	}

	turns := make(conversation.Turns, 0, len(history)+2)
	turns = append(turns, history...)
	turns = append(turns,
		conversation.Turn{Role: conversation.SpeakerUser, Content: message, Timestamp: asked},
		conversation.Turn{Role: conversation.SpeakerAssistant, Content: reply, Timestamp: s.now()},
	)
	conv := &conversation.Conversation{
		AccountID: accountID,
		Turns:     turns,
	}

	count, err := s.convs.CreateMetered(ctx, conv, s.gate.Ceiling())
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeQuotaExceeded) {
			// a concurrent request used the last free message
			metrics.RecordQuotaRejection()
			metrics.RecordChatExchange(role, "quota_exceeded")
			return nil, decision.After(s.gate.Ceiling()), quotaRefusal(s.gate.UpgradeURL())
		}
		metrics.RecordChatExchange(role, "store_error")
		return nil, decision, err
	}

	metrics.RecordChatExchange(role, "ok")
	return conv, decision.After(count), nil
}

// History lists an account's past conversations, newest first
func (s *ChatService) History(ctx context.Context, accountID int64, limit, offset int) ([]*conversation.Conversation, int64, error) {
	return s.convs.ListByAccount(ctx, accountID, limit, offset)
}
