package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

const accountColumns = `id, username, password_hash, role, is_active, message_count,
	subscription_id, subscription_status, subscription_provider, subscription_event_at,
	created_at, updated_at`

// AccountRepository implements account.Repository
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account with zero usage and no subscription
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	now := time.Now()
	if a.Role == "" {
		a.Role = account.RoleUser
	}
	a.IsActive = true
	a.MessageCount = 0
	a.SubscriptionStatus = account.StatusInactive
	a.CreatedAt = time.Unix(now.Unix(), 0)
	a.UpdatedAt = a.CreatedAt

	query := `
		INSERT INTO users (username, password_hash, role, is_active, message_count, subscription_status, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, 0, $4, $5, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		a.Username, a.PasswordHash, string(a.Role), string(account.StatusInactive), now.Unix(),
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("Username already taken")
		}
		return errors.DatabaseError("Failed to create account", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
	return scanAccount(row)
}

// Update applies the non-nil fields of u
func (r *AccountRepository) Update(ctx context.Context, id int64, u account.Update) (*account.Account, error) {
	if u.Empty() {
		return r.GetByID(ctx, id)
	}

	var (
		sets []string
		args []interface{}
	)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if u.PasswordHash != nil {
		add("password_hash", *u.PasswordHash)
	}
	if u.Role != nil {
		add("role", string(*u.Role))
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}
	add("updated_at", time.Now().Unix())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+accountColumns,
		strings.Join(sets, ", "), len(args))

	return scanAccount(r.db.QueryRowContext(ctx, query, args...))
}

// List retrieves accounts with pagination
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*account.Account, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("Failed to count accounts", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list accounts", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.DatabaseError("Failed to iterate accounts", err)
	}

	return accounts, total, nil
}

// MessageCount returns the stored counter
func (r *AccountRepository) MessageCount(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT message_count FROM users WHERE id = $1`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, errors.NotFound("Account")
	}
	if err != nil {
		return 0, errors.DatabaseError("Failed to read message count", err)
	}
	return n, nil
}

// Activation moves the account to active and grants the professional tier
// to non-admins. The counter only resets when the account was not already
// active on this subscription, which keeps replays from wiping usage.
//
// The event time orders events of the stored subscription and of two
// competing active ones. An activation of a different subscription always
// replaces an account that is not active, whatever the event times.
const activateSubscriptionSQL = `
	UPDATE users SET
		message_count = CASE
			WHEN subscription_status = 'active' AND subscription_id = $2 THEN message_count
			ELSE 0 END,
		subscription_status = 'active',
		subscription_id = $2,
		subscription_provider = $3,
		role = CASE WHEN role = 'admin' THEN 'admin' ELSE 'professional' END,
		subscription_event_at = $4,
		updated_at = $5
	WHERE id = $1 AND (
		subscription_event_at <= $4
		OR (subscription_status <> 'active' AND (subscription_id IS NULL OR subscription_id <> $2))
	)
`

// Cancellation only touches the subscription it names.
const cancelSubscriptionSQL = `
	UPDATE users SET
		subscription_status = 'canceled',
		subscription_id = COALESCE(subscription_id, $2),
		subscription_provider = COALESCE(subscription_provider, $3),
		role = CASE WHEN role = 'admin' THEN 'admin' ELSE 'user' END,
		subscription_event_at = $4,
		updated_at = $5
	WHERE id = $1 AND subscription_event_at <= $4
		AND (subscription_id IS NULL OR subscription_id = $2)
`

// ApplySubscription applies a subscription transition atomically
func (r *AccountRepository) ApplySubscription(ctx context.Context, c account.SubscriptionChange) (bool, error) {
	query := cancelSubscriptionSQL
	if c.Activate {
		query = activateSubscriptionSQL
	}

	res, err := r.db.ExecContext(ctx, query,
		c.AccountID, c.SubscriptionID, string(c.Provider), c.OccurredAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return false, errors.DatabaseError("Failed to apply subscription change", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to apply subscription change", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing matched: either the account is missing or the event lost.
	if _, err := r.MessageCount(ctx, c.AccountID); err != nil {
		return false, err
	}
	return false, nil
}

// ResetUsage zeroes the message counter
func (r *AccountRepository) ResetUsage(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET message_count = 0, updated_at = $2 WHERE id = $1`, id, time.Now().Unix())
	if err != nil {
		return errors.DatabaseError("Failed to reset usage", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Account")
	}
	return nil
}

// DemoteAdmin derives the role from the subscription state
func (r *AccountRepository) DemoteAdmin(ctx context.Context, id int64) (*account.Account, error) {
	query := `
		UPDATE users SET
			role = CASE WHEN subscription_status = 'active' THEN 'professional' ELSE 'user' END,
			updated_at = $2
		WHERE id = $1
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRowContext(ctx, query, id, time.Now().Unix()))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		a                    account.Account
		role, status         string
		subID, provider      sql.NullString
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &role, &a.IsActive, &a.MessageCount,
		&subID, &status, &provider, &a.SubscriptionEventAt,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Account")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to read account", err)
	}

	a.Role = account.Role(role)
	a.SubscriptionStatus = account.SubscriptionStatus(status)
	if subID.Valid {
		a.SubscriptionID = &subID.String
	}
	if provider.Valid {
		p := account.Provider(provider.String)
		a.SubscriptionProvider = &p
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)

	return &a, nil
}
