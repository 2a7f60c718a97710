package postgres

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDialector(sqlite.Open(":memory:"), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(db))
	// idempotent
	require.NoError(t, Migrate(db))

	for _, table := range []string{"swap_users", "users", "snipe_subscriptions", "snipe_all_subscribers", "swaps"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestSwapHistory(t *testing.T) {
	db := newTestDB(t)
	s := NewStorage(db, zap.NewNop())
	require.NoError(t, s.RunMigrations())
	ctx := context.Background()

	for i, status := range []string{models.SwapStatusFailed, models.SwapStatusConfirmed} {
		require.NoError(t, s.SaveSwap(ctx, &models.Swap{
			UserID:     7,
			Source:     "command",
			InputMint:  "So11111111111111111111111111111111111111112",
			OutputMint: "MintA",
			Amount:     0.1 * float64(i+1),
			Status:     status,
		}))
	}
	require.NoError(t, s.SaveSwap(ctx, &models.Swap{UserID: 8, Source: "snipe_loop", InputMint: "a", OutputMint: "b", Status: models.SwapStatusConfirmed}))

	swaps, err := s.ListSwaps(ctx, 7, 10, 0)
	require.NoError(t, err)
	require.Len(t, swaps, 2)
	assert.Equal(t, models.SwapStatusConfirmed, swaps[0].Status, "newest first")

	swaps, err = s.ListSwaps(ctx, 7, 1, 1)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, models.SwapStatusFailed, swaps[0].Status)
}
