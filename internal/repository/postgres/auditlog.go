package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

// AuditLogRepository implements auditlog.Repository
type AuditLogRepository struct {
	db *sql.DB
}

// NewAuditLogRepository creates a new admin activity log repository
func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create appends an entry
func (r *AuditLogRepository) Create(ctx context.Context, e *auditlog.Entry) error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return errors.Internal("Failed to encode log details", err)
	}

	now := time.Now()
	e.CreatedAt = time.Unix(now.Unix(), 0)

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO activity_logs (admin_id, action, details, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		e.AdminID, e.Action, string(details), now.Unix(),
	).Scan(&e.ID)
	if err != nil {
		return errors.DatabaseError("Failed to write activity log", err)
	}
	return nil
}

// List returns entries, newest first
func (r *AuditLogRepository) List(ctx context.Context, limit, offset int) ([]*auditlog.Entry, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("Failed to count activity logs", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, admin_id, action, details, created_at FROM activity_logs
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list activity logs", err)
	}
	defer rows.Close()

	var entries []*auditlog.Entry
	for rows.Next() {
		var (
			e         auditlog.Entry
			details   []byte
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &details, &createdAt); err != nil {
			return nil, 0, errors.DatabaseError("Failed to read activity log", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, 0, errors.Internal("Failed to decode log details", err)
			}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.DatabaseError("Failed to iterate activity logs", err)
	}

	return entries, total, nil
}
