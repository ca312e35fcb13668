package services

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/logger"
)

// AccountService implements account.Service
type AccountService struct {
	repo       account.Repository
	audit      *AuditService
	ceiling    int
	bcryptCost int
	logger     *logger.Logger
}

// NewAccountService creates a new account service
func NewAccountService(repo account.Repository, audit *AuditService, ceiling, bcryptCost int, log *logger.Logger) account.Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{
		repo:       repo,
		audit:      audit,
		ceiling:    ceiling,
		bcryptCost: bcryptCost,
		logger:     log,
	}
}

// Register creates a standard account
func (s *AccountService) Register(ctx context.Context, username, password string) (*account.Account, error) {
	username = strings.TrimSpace(username)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, errors.Internal("Failed to hash password", err)
	}

	a := &account.Account{
		Username:     username,
		PasswordHash: string(hash),
		Role:         account.RoleUser,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if !errors.HasCode(err, errors.ErrCodeConflict) {
			s.logger.ErrorWithErr(err, "Failed to create account")
		}
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  a.ID,
		"username": a.Username,
	}).Info("Account registered")

	return a, nil
}

// Authenticate checks credentials. Unknown usernames and wrong passwords
// get the same error.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*account.Account, error) {
	a, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Unauthorized("Invalid username or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Unauthorized("Invalid username or password")
	}

	if !a.IsActive {
		return nil, errors.Unauthorized("Account deactivated")
	}

	return a, nil
}

// GetByID retrieves an account by ID
func (s *AccountService) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername retrieves an account by username
func (s *AccountService) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	return s.repo.GetByUsername(ctx, username)
}

// List lists accounts
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]*account.Account, int64, error) {
	return s.repo.List(ctx, limit, offset)
}

// Usage reports the free message allowance
func (s *AccountService) Usage(ctx context.Context, id int64) (account.Usage, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return account.Usage{}, err
	}
	return a.Usage(s.ceiling), nil
}

// Close deactivates the caller's account. Records are kept.
func (s *AccountService) Close(ctx context.Context, id int64) error {
	inactive := false
	if _, err := s.repo.Update(ctx, id, account.Update{IsActive: &inactive}); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": id,
	}).Info("Account closed")

	return nil
}

// SetActive activates or deactivates an account
func (s *AccountService) SetActive(ctx context.Context, adminID, id int64, active bool) (*account.Account, error) {
	if adminID == id && !active {
		return nil, errors.Forbidden("Admins cannot deactivate their own account")
	}

	a, err := s.repo.Update(ctx, id, account.Update{IsActive: &active})
	if err != nil {
		return nil, err
	}

	action := auditlog.ActionActivateUser
	if !active {
		action = auditlog.ActionDeactivateUser
	}
	s.audit.Record(ctx, adminID, action, map[string]interface{}{
		"userId":   id,
		"username": a.Username,
	})

	return a, nil
}

// Promote grants the admin role or takes it away
func (s *AccountService) Promote(ctx context.Context, adminID, id int64, role account.Role) (*account.Account, error) {
	var (
		a   *account.Account
		err error
	)

	switch role {
	case account.RoleAdmin:
		a, err = s.repo.Update(ctx, id, account.Update{Role: &role})
	case account.RoleUser:
		if adminID == id {
			return nil, errors.Forbidden("Admins cannot demote their own account")
		}
		a, err = s.repo.DemoteAdmin(ctx, id)
	default:
		return nil, errors.BadRequest("Role must be admin or user")
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, adminID, auditlog.ActionPromoteUser, map[string]interface{}{
		"userId":   id,
		"username": a.Username,
		"role":     a.Role,
	})

	return a, nil
}

// ResetUsage zeroes the message counter
func (s *AccountService) ResetUsage(ctx context.Context, adminID, id int64) (*account.Account, error) {
	if err := s.repo.ResetUsage(ctx, id); err != nil {
		return nil, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, adminID, auditlog.ActionResetUsage, map[string]interface{}{
		"userId":   id,
		"username": a.Username,
	})

	return a, nil
}
