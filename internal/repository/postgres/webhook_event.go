package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/nflow-health/nflow/internal/pkg/errors"
)

// WebhookEventRepository is the durable billing.EventLedger used when Redis
// is not configured
type WebhookEventRepository struct {
	db *sql.DB
}

// NewWebhookEventRepository creates a new webhook event ledger
func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Seen reports whether the provider event was recorded
func (r *WebhookEventRepository) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM webhook_events WHERE provider = $1 AND event_id = $2`, provider, eventID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.DatabaseError("Failed to read webhook ledger", err)
	}
	return true, nil
}

// Remember records the event. Rows are kept forever, so ttl is unused.
func (r *WebhookEventRepository) Remember(ctx context.Context, provider, eventID string, _ time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (provider, event_id, processed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		provider, eventID, time.Now().Unix(),
	)
	if err != nil {
		return errors.DatabaseError("Failed to write webhook ledger", err)
	}
	return nil
}
