package services

import (
	"context"
	"strings"
	"time"

	"github.com/nflow-health/nflow/internal/archive"
	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/logger"
)

// ModerationService implements conversation.ModerationService
type ModerationService struct {
	repo     conversation.Repository
	audit    *AuditService
	exporter *archive.Exporter
	logger   *logger.Logger
}

// NewModerationService creates a new moderation service. exporter may be nil
// when no archive bucket is configured.
func NewModerationService(repo conversation.Repository, audit *AuditService, exporter *archive.Exporter, log *logger.Logger) *ModerationService {
	return &ModerationService{
		repo:     repo,
		audit:    audit,
		exporter: exporter,
		logger:   log,
	}
}

// List lists conversations for review
func (s *ModerationService) List(ctx context.Context, f conversation.Filter, limit, offset int) ([]*conversation.Conversation, int64, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Review records a verdict on a conversation
func (s *ModerationService) Review(ctx context.Context, adminID, id int64, approved bool, notes string) (*conversation.Conversation, error) {
	c, err := s.repo.Review(ctx, id, conversation.Review{
		ReviewerID: adminID,
		Approved:   approved,
		Notes:      strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, adminID, auditlog.ActionReviewChat, map[string]interface{}{
		"chatId":   id,
		"approved": approved,
	})

	return c, nil
}

// Flag marks a conversation for follow-up
func (s *ModerationService) Flag(ctx context.Context, adminID, id int64, reason string) (*conversation.Conversation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.BadRequest("A flag reason is required")
	}

	c, err := s.repo.Flag(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, adminID, auditlog.ActionFlagChat, map[string]interface{}{
		"chatId": id,
		"reason": reason,
	})

	return c, nil
}

// Export archives conversations created since the given time
func (s *ModerationService) Export(ctx context.Context, adminID int64, since time.Time) (*archive.Result, error) {
	if s.exporter == nil {
		return nil, errors.ServiceUnavailable("Archive storage is not configured")
	}

	res, err := s.exporter.Export(ctx, since)
	if err != nil {
		return nil, errors.Internal("Failed to export conversations", err)
	}

	s.audit.Record(ctx, adminID, auditlog.ActionExportChats, map[string]interface{}{
		"since": since.UTC().Format(time.RFC3339),
		"count": res.Count,
		"key":   res.Key,
	})

	return res, nil
}
