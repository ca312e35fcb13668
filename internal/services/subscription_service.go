package services

import (
	"context"
	"time"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/billing"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
	"github.com/nflow-health/nflow/internal/providers"
)

// SubscriptionLookup reads a PayPal subscription from the provider
type SubscriptionLookup interface {
	GetSubscription(ctx context.Context, id string) (*providers.PayPalSubscription, error)
}

// SubscriptionService implements billing.Reconciler
type SubscriptionService struct {
	accounts  account.Repository
	ledger    billing.EventLedger
	ledgerTTL time.Duration
	paypal    SubscriptionLookup
	logger    *logger.Logger
}

// NewSubscriptionService creates a new reconciler. ledger and paypal may be nil.
func NewSubscriptionService(accounts account.Repository, ledger billing.EventLedger, ledgerTTL time.Duration, paypal SubscriptionLookup, log *logger.Logger) *SubscriptionService {
	return &SubscriptionService{
		accounts:  accounts,
		ledger:    ledger,
		ledgerTTL: ledgerTTL,
		paypal:    paypal,
		logger:    log,
	}
}

// Apply applies a provider event to the account it names. Replays of an
// event ID are reported as duplicates, events older than the last applied
// one as stale. An unknown account yields OutcomeIgnored with a not-found
// error.
func (s *SubscriptionService) Apply(ctx context.Context, e billing.Event) (billing.Outcome, error) {
	if err := e.Validate(); err != nil {
		return "", errors.BadRequest(err.Error())
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	log := s.logger.WithFields(map[string]interface{}{
		"provider":        e.Provider,
		"event_id":        e.ID,
		"kind":            e.Kind,
		"subscription_id": e.SubscriptionID,
		"user_id":         e.AccountID,
	})

	if s.seen(ctx, e, log) {
		s.record(e, billing.OutcomeDuplicate)
		log.Info("Duplicate subscription event skipped")
		return billing.OutcomeDuplicate, nil
	}

	applied, err := s.accounts.ApplySubscription(ctx, account.SubscriptionChange{
		AccountID:      e.AccountID,
		SubscriptionID: e.SubscriptionID,
		Provider:       e.Provider,
		Activate:       e.Kind == billing.EventActivated,
		OccurredAt:     e.OccurredAt,
	})
	if err != nil {
		if errors.IsNotFound(err) {
			s.record(e, billing.OutcomeIgnored)
			log.Warn("Subscription event for unknown account")
			return billing.OutcomeIgnored, err
		}
		s.record(e, "error")
		log.WithError(err).Error("Failed to apply subscription event")
		return "", err
	}

	outcome := billing.OutcomeApplied
	if !applied {
		outcome = billing.OutcomeStale
	}
	s.remember(ctx, e, log)
	s.record(e, outcome)
	log.With("outcome", outcome).Info("Subscription event processed")

	return outcome, nil
}

// ActivatePayPal confirms a subscription the browser approved and applies
// it to the signed-in account. The subscription must be ACTIVE at PayPal and
// carry this account's reference when it carries one at all.
func (s *SubscriptionService) ActivatePayPal(ctx context.Context, accountID int64, subscriptionID string) (*account.Account, error) {
	if s.paypal == nil {
		return nil, errors.ServiceUnavailable("PayPal is not configured")
	}

	sub, err := s.paypal.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != "ACTIVE" {
		return nil, errors.BadRequest("Subscription is not active")
	}
	if sub.CustomID != "" && sub.AccountID() != accountID {
		return nil, errors.Forbidden("Subscription belongs to another account")
	}

	// PayPal just reported the subscription ACTIVE, so the verification time
	// orders this event. StartTime predates any cancellation of a
	// re-activated subscription.
	outcome, err := s.Apply(ctx, billing.Event{
		Provider:       account.ProviderPayPal,
		Kind:           billing.EventActivated,
		SubscriptionID: sub.ID,
		AccountID:      accountID,
		OccurredAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if outcome != billing.OutcomeApplied && outcome != billing.OutcomeDuplicate {
		s.logger.WithFields(map[string]interface{}{
			"user_id":         accountID,
			"subscription_id": sub.ID,
			"started_at":      sub.StartTime,
			"outcome":         outcome,
		}).Warn("PayPal activation not applied")
		return nil, errors.Conflict("Subscription state changed after this activation; try again shortly")
	}

	return s.accounts.GetByID(ctx, accountID)
}

func (s *SubscriptionService) seen(ctx context.Context, e billing.Event, log *logger.Logger) bool {
	if s.ledger == nil || e.ID == "" {
		return false
	}
	seen, err := s.ledger.Seen(ctx, string(e.Provider), e.ID)
	if err != nil {
		// applying twice is harmless, so carry on without the ledger
		log.WithError(err).Warn("Event ledger unavailable")
		return false
	}
	return seen
}

func (s *SubscriptionService) remember(ctx context.Context, e billing.Event, log *logger.Logger) {
	if s.ledger == nil || e.ID == "" {
		return
	}
	if err := s.ledger.Remember(ctx, string(e.Provider), e.ID, s.ledgerTTL); err != nil {
		log.WithError(err).Warn("Failed to record subscription event")
	}
}

func (s *SubscriptionService) record(e billing.Event, outcome billing.Outcome) {
	metrics.RecordWebhookEvent(string(e.Provider), string(e.Kind), string(outcome))
}
