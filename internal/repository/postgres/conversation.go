package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/pkg/errors"
)

const conversationColumns = `id, user_id, turns, reviewed, approved, reviewer_id, review_notes,
	reviewed_at, flagged, flag_reason, created_at`

// ConversationRepository implements conversation.Repository
type ConversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// chargeMessageSQL is the compare-and-increment: it re-checks tier and
// ceiling under the row lock, so two concurrent requests at count
// ceiling-1 cannot both succeed. Unrestricted roles match without a charge.
const chargeMessageSQL = `
	UPDATE users SET
		message_count = CASE WHEN role = 'user' THEN message_count + 1 ELSE message_count END,
		updated_at = $3
	WHERE id = $1 AND is_active = TRUE
		AND (role <> 'user' OR message_count < $2)
	RETURNING message_count
`

// CreateMetered charges the owner and stores the conversation in one transaction
func (r *ConversationRepository) CreateMetered(ctx context.Context, c *conversation.Conversation, ceiling int) (int, error) {
	turns, err := c.Turns.Encode()
	if err != nil {
		return 0, errors.Internal("Failed to encode conversation", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.DatabaseError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()

	var count int
	err = tx.QueryRowContext(ctx, chargeMessageSQL, c.AccountID, ceiling, now.Unix()).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, r.explainRefusal(ctx, tx, c.AccountID)
	}
	if err != nil {
		return 0, errors.DatabaseError("Failed to update message count", err)
	}

	c.CreatedAt = time.Unix(now.Unix(), 0)
	err = tx.QueryRowContext(ctx,
		`INSERT INTO conversations (user_id, turns, created_at) VALUES ($1, $2, $3) RETURNING id`,
		c.AccountID, turns, now.Unix(),
	).Scan(&c.ID)
	if err != nil {
		return 0, errors.DatabaseError("Failed to save conversation", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.DatabaseError("Failed to commit conversation", err)
	}

	return count, nil
}

// explainRefusal works out why the charge matched no row
func (r *ConversationRepository) explainRefusal(ctx context.Context, tx *sql.Tx, accountID int64) error {
	var active bool
	err := tx.QueryRowContext(ctx, `SELECT is_active FROM users WHERE id = $1`, accountID).Scan(&active)
	if err == sql.ErrNoRows {
		return errors.NotFound("Account")
	}
	if err != nil {
		return errors.DatabaseError("Failed to read account", err)
	}
	if !active {
		return errors.Forbidden("Account is deactivated")
	}
	return errors.QuotaExceeded("Free message limit reached")
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

// ListByAccount returns an account's conversations, newest first
func (r *ConversationRepository) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]*conversation.Conversation, int64, error) {
	return r.List(ctx, conversation.Filter{AccountID: &accountID}, limit, offset)
}

// List returns conversations matching the filter, newest first
func (r *ConversationRepository) List(ctx context.Context, f conversation.Filter, limit, offset int) ([]*conversation.Conversation, int64, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.AccountID != nil {
		args = append(args, *f.AccountID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Unreviewed {
		where = append(where, "reviewed = FALSE")
	}
	if f.Flagged {
		where = append(where, "flagged = TRUE")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("Failed to count conversations", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM conversations%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		conversationColumns, clause, len(args)-1, len(args))

	convs, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

// ListSince returns the page of conversations after the (since, afterID)
// cursor, oldest first
func (r *ConversationRepository) ListSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]*conversation.Conversation, error) {
	return r.query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		WHERE created_at > $1 OR (created_at = $1 AND id > $2)
		ORDER BY created_at, id LIMIT $3`,
		since.Unix(), afterID, limit)
}

// Review records a moderator verdict
func (r *ConversationRepository) Review(ctx context.Context, id int64, rv conversation.Review) (*conversation.Conversation, error) {
	query := `
		UPDATE conversations SET
			reviewed = TRUE, approved = $2, reviewer_id = $3, review_notes = $4, reviewed_at = $5
		WHERE id = $1
		RETURNING ` + conversationColumns
	var notes interface{}
	if rv.Notes != "" {
		notes = rv.Notes
	}
	return scanConversation(r.db.QueryRowContext(ctx, query, id, rv.Approved, rv.ReviewerID, notes, time.Now().Unix()))
}

// Flag marks a conversation for follow-up
func (r *ConversationRepository) Flag(ctx context.Context, id int64, reason string) (*conversation.Conversation, error) {
	query := `
		UPDATE conversations SET flagged = TRUE, flag_reason = $2
		WHERE id = $1
		RETURNING ` + conversationColumns
	return scanConversation(r.db.QueryRowContext(ctx, query, id, reason))
}

func (r *ConversationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*conversation.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list conversations", err)
	}
	defer rows.Close()

	var convs []*conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to iterate conversations", err)
	}
	return convs, nil
}

func scanConversation(row rowScanner) (*conversation.Conversation, error) {
	var (
		c          conversation.Conversation
		rawTurns   interface{}
		approved   sql.NullBool
		reviewer   sql.NullInt64
		notes      sql.NullString
		reviewedAt sql.NullInt64
		flagReason sql.NullString
		createdAt  int64
	)

	err := row.Scan(
		&c.ID, &c.AccountID, &rawTurns, &c.Reviewed, &approved, &reviewer, &notes,
		&reviewedAt, &c.Flagged, &flagReason, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Conversation")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to read conversation", err)
	}

	turns, err := conversation.DecodeTurns(rawTurns)
	if err != nil {
		return nil, errors.Internal("Failed to decode conversation", err)
	}
	c.Turns = turns

	if approved.Valid {
		c.Approved = &approved.Bool
	}
	if reviewer.Valid {
		c.ReviewerID = &reviewer.Int64
	}
	if notes.Valid {
		c.ReviewNotes = &notes.String
	}
	if reviewedAt.Valid {
		t := time.Unix(reviewedAt.Int64, 0)
		c.ReviewedAt = &t
	}
	if flagReason.Valid {
		c.FlagReason = &flagReason.String
	}
	c.CreatedAt = time.Unix(createdAt, 0)

	return &c, nil
}
