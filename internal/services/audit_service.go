package services

import (
	"context"

	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/pkg/logger"
)

// AuditService writes the admin activity log
type AuditService struct {
	repo   auditlog.Repository
	logger *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(repo auditlog.Repository, log *logger.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: log,
	}
}

// Record appends an entry. The admin action has already happened, so a
// failed write is logged rather than returned.
func (s *AuditService) Record(ctx context.Context, adminID int64, action string, details map[string]interface{}) {
	entry := &auditlog.Entry{
		AdminID: adminID,
		Action:  action,
		Details: details,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"admin_id": adminID,
			"action":   action,
		}).WithError(err).Error("Failed to write activity log")
	}
}

// List returns entries newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]*auditlog.Entry, int64, error) {
	return s.repo.List(ctx, limit, offset)
}
