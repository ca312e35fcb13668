package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/db"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/migrations"
)

// NewTestDB creates an in-memory SQLite database with the real schema
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	files, err := migrations.ForDriver("sqlite")
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	if _, err := db.RunMigrations(conn, files); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return conn
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// NewTestLogger returns a logger that only prints errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

// SeedAccount inserts an account row directly, bypassing registration
func SeedAccount(t *testing.T, conn *sql.DB, username string, role account.Role, count int) *account.Account {
	t.Helper()

	now := time.Now().Unix()
	var id int64
	err := conn.QueryRow(`
		INSERT INTO users (username, password_hash, role, is_active, message_count, subscription_status, created_at, updated_at)
		VALUES ($1, 'x', $2, TRUE, $3, 'inactive', $4, $4)
		RETURNING id`,
		username, string(role), count, now,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed account %s: %v", username, err)
	}

	return &account.Account{
		ID:                 id,
		Username:           username,
		Role:               role,
		IsActive:           true,
		MessageCount:       count,
		SubscriptionStatus: account.StatusInactive,
		CreatedAt:          time.Unix(now, 0),
		UpdatedAt:          time.Unix(now, 0),
	}
}
