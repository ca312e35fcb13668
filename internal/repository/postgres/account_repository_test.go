package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/testutil"
)

func TestAccountRepository_Create(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewAccountRepository(db)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		wantCode string
	}{
		{name: "create account", username: "ana"},
		{name: "create another account", username: "luis"},
		{name: "duplicate username", username: "ana", wantCode: errors.ErrCodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &account.Account{Username: tt.username, PasswordHash: "hash"}
			err := repo.Create(ctx, a)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, a.ID)

			stored, err := repo.GetByUsername(ctx, tt.username)
			require.NoError(t, err)
			assert.Equal(t, account.RoleUser, stored.Role)
			assert.Equal(t, account.StatusInactive, stored.SubscriptionStatus)
			assert.Equal(t, 0, stored.MessageCount)
			assert.True(t, stored.IsActive)
			assert.Nil(t, stored.SubscriptionID)
			assert.Nil(t, stored.SubscriptionProvider)
		})
	}
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	_, err := NewAccountRepository(db).GetByID(context.Background(), 999)
	assert.True(t, errors.IsNotFound(err))
}

func TestAccountRepository_Update(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewAccountRepository(db)
	ctx := context.Background()
	seeded := testutil.SeedAccount(t, db, "ana", account.RoleUser, 2)

	inactive := false
	admin := account.RoleAdmin
	updated, err := repo.Update(ctx, seeded.ID, account.Update{IsActive: &inactive, Role: &admin})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, account.RoleAdmin, updated.Role)
	assert.Equal(t, 2, updated.MessageCount, "partial update must not touch the counter")

	unchanged, err := repo.Update(ctx, seeded.ID, account.Update{})
	require.NoError(t, err)
	assert.Equal(t, updated.Role, unchanged.Role)

	_, err = repo.Update(ctx, 12345, account.Update{IsActive: &inactive})
	assert.True(t, errors.IsNotFound(err))
}

func TestAccountRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewAccountRepository(db)
	for _, name := range []string{"a", "b", "c"} {
		testutil.SeedAccount(t, db, name, account.RoleUser, 0)
	}

	page, total, err := repo.List(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Username)
	assert.Equal(t, "c", page[1].Username)
}

func TestAccountRepository_ApplySubscription(t *testing.T) {
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	activate := func(id int64, sub string, at time.Time) account.SubscriptionChange {
		return account.SubscriptionChange{AccountID: id, SubscriptionID: sub, Provider: account.ProviderPayPal, Activate: true, OccurredAt: at}
	}
	cancel := func(id int64, sub string, at time.Time) account.SubscriptionChange {
		return account.SubscriptionChange{AccountID: id, SubscriptionID: sub, Provider: account.ProviderPayPal, OccurredAt: at}
	}

	t.Run("activation promotes and resets counter", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 3)

		applied, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusActive, got.SubscriptionStatus)
		assert.Equal(t, account.RoleProfessional, got.Role)
		assert.Equal(t, 0, got.MessageCount)
		require.NotNil(t, got.SubscriptionID)
		assert.Equal(t, "I-1", *got.SubscriptionID)
		require.NotNil(t, got.SubscriptionProvider)
		assert.Equal(t, account.ProviderPayPal, *got.SubscriptionProvider)
	})

	t.Run("repeated activation does not reset again", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 3)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		_, err = db.Exec(`UPDATE users SET message_count = 7 WHERE id = $1`, a.ID)
		require.NoError(t, err)

		applied, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0.Add(time.Hour)))
		require.NoError(t, err)
		assert.True(t, applied)

		n, err := repo.MessageCount(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("admin keeps role through activation and cancellation", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "root", account.RoleAdmin, 0)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		got, _ := repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.RoleAdmin, got.Role)

		_, err = repo.ApplySubscription(ctx, cancel(a.ID, "I-1", t0.Add(time.Minute)))
		require.NoError(t, err)
		got, _ = repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.RoleAdmin, got.Role)
		assert.Equal(t, account.StatusCanceled, got.SubscriptionStatus)
	})

	t.Run("cancellation reverts role", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 0)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		applied, err := repo.ApplySubscription(ctx, cancel(a.ID, "I-1", t0.Add(time.Minute)))
		require.NoError(t, err)
		assert.True(t, applied)

		got, _ := repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.RoleUser, got.Role)
		assert.Equal(t, account.StatusCanceled, got.SubscriptionStatus)
	})

	t.Run("cancellation without prior activation", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 1)

		applied, err := repo.ApplySubscription(ctx, cancel(a.ID, "I-9", t0))
		require.NoError(t, err)
		assert.True(t, applied)

		got, _ := repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.StatusCanceled, got.SubscriptionStatus)
		assert.Equal(t, account.RoleUser, got.Role)
		assert.Equal(t, 1, got.MessageCount)
	})

	t.Run("cancellation of another subscription is ignored", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 0)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-2", t0))
		require.NoError(t, err)
		applied, err := repo.ApplySubscription(ctx, cancel(a.ID, "I-1", t0.Add(time.Minute)))
		require.NoError(t, err)
		assert.False(t, applied)

		got, _ := repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.StatusActive, got.SubscriptionStatus)
	})

	t.Run("out of order event is ignored", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 0)

		_, err := repo.ApplySubscription(ctx, cancel(a.ID, "I-1", t0.Add(time.Hour)))
		require.NoError(t, err)
		applied, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		assert.False(t, applied)

		got, _ := repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.StatusCanceled, got.SubscriptionStatus)
	})

	t.Run("late activation of a new subscription supersedes cancellation of the old one", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 2)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-A", t0))
		require.NoError(t, err)
		_, err = repo.ApplySubscription(ctx, cancel(a.ID, "I-A", t0.Add(20*time.Second)))
		require.NoError(t, err)

		switched := activate(a.ID, "sub_B", t0.Add(10*time.Second))
		switched.Provider = account.ProviderStripe
		applied, err := repo.ApplySubscription(ctx, switched)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusActive, got.SubscriptionStatus)
		assert.Equal(t, account.RoleProfessional, got.Role)
		require.NotNil(t, got.SubscriptionID)
		assert.Equal(t, "sub_B", *got.SubscriptionID)
		require.NotNil(t, got.SubscriptionProvider)
		assert.Equal(t, account.ProviderStripe, *got.SubscriptionProvider)

		// the new subscription's own cancellation still applies afterwards
		applied, err = repo.ApplySubscription(ctx, cancel(a.ID, "sub_B", t0.Add(15*time.Second)))
		require.NoError(t, err)
		assert.True(t, applied)
		got, _ = repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.StatusCanceled, got.SubscriptionStatus)
	})

	t.Run("older activation of another subscription does not replace an active one", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 0)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-2", t0.Add(time.Hour)))
		require.NoError(t, err)
		applied, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		assert.False(t, applied)

		got, _ := repo.GetByID(ctx, a.ID)
		require.NotNil(t, got.SubscriptionID)
		assert.Equal(t, "I-2", *got.SubscriptionID)
	})

	t.Run("resubscription after cancel", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)
		repo := NewAccountRepository(db)
		a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 0)

		_, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0))
		require.NoError(t, err)
		_, err = repo.ApplySubscription(ctx, cancel(a.ID, "I-1", t0.Add(time.Minute)))
		require.NoError(t, err)
		_, err = db.Exec(`UPDATE users SET message_count = 3 WHERE id = $1`, a.ID)
		require.NoError(t, err)

		applied, err := repo.ApplySubscription(ctx, activate(a.ID, "I-1", t0.Add(time.Hour)))
		require.NoError(t, err)
		assert.True(t, applied)

		got, _ := repo.GetByID(ctx, a.ID)
		assert.Equal(t, account.StatusActive, got.SubscriptionStatus)
		assert.Equal(t, account.RoleProfessional, got.Role)
		assert.Equal(t, 0, got.MessageCount)
	})

	t.Run("unknown account", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		defer testutil.CleanupDB(db)

		_, err := NewAccountRepository(db).ApplySubscription(ctx, activate(404, "I-1", t0))
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestAccountRepository_DemoteAdmin(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewAccountRepository(db)
	ctx := context.Background()

	subscribed := testutil.SeedAccount(t, db, "paying-admin", account.RoleAdmin, 0)
	_, err := repo.ApplySubscription(ctx, account.SubscriptionChange{
		AccountID: subscribed.ID, SubscriptionID: "sub_1", Provider: account.ProviderStripe,
		Activate: true, OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	plain := testutil.SeedAccount(t, db, "plain-admin", account.RoleAdmin, 0)

	got, err := repo.DemoteAdmin(ctx, subscribed.ID)
	require.NoError(t, err)
	assert.Equal(t, account.RoleProfessional, got.Role)

	got, err = repo.DemoteAdmin(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, account.RoleUser, got.Role)
}

func TestAccountRepository_ResetUsage(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewAccountRepository(db)
	a := testutil.SeedAccount(t, db, "ana", account.RoleUser, 3)

	require.NoError(t, repo.ResetUsage(context.Background(), a.ID))
	n, err := repo.MessageCount(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.True(t, errors.IsNotFound(repo.ResetUsage(context.Background(), 999)))
}
