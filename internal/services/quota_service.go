package services

import (
	"context"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/quota"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
)

// QuotaService implements quota.Gate against the account store
type QuotaService struct {
	accounts   account.Repository
	ceiling    int
	upgradeURL string
}

// NewQuotaService creates a gate allowing ceiling free messages
func NewQuotaService(accounts account.Repository, ceiling int, upgradeURL string) *QuotaService {
	return &QuotaService{
		accounts:   accounts,
		ceiling:    ceiling,
		upgradeURL: upgradeURL,
	}
}

// Ceiling returns the free message allowance
func (s *QuotaService) Ceiling() int {
	return s.ceiling
}

// UpgradeURL returns where refused callers should subscribe
func (s *QuotaService) UpgradeURL() string {
	return s.upgradeURL
}

// Check decides on the account as currently stored. It never changes the
// counter; the charge happens when the exchange is saved.
func (s *QuotaService) Check(ctx context.Context, accountID int64) (quota.Decision, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return quota.Decision{}, err
	}
	if !a.IsActive {
		return quota.Decision{}, errors.Forbidden("Account is deactivated")
	}

	d := quota.Decision{
		Role:  a.Role,
		Count: a.MessageCount,
		Limit: s.ceiling,
	}
	if a.Role.Unrestricted() {
		d.Allowed = true
		d.Unlimited = true
		return d, nil
	}

	d = d.After(a.MessageCount)
	if !d.Allowed {
		metrics.RecordQuotaRejection()
		return d, quotaRefusal(s.upgradeURL)
	}
	return d, nil
}

// quotaRefusal is the error every quota rejection carries
func quotaRefusal(upgradeURL string) *errors.AppError {
	return errors.QuotaExceeded("Free message limit reached").WithDetails(map[string]interface{}{
		"needsSubscription": true,
		"redirectTo":        upgradeURL,
	})
}
