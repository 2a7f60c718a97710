package snipe

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"gorm":   func(t *testing.T) Store { return newGormStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			first := solana.NewWallet().PublicKey()
			second := solana.NewWallet().PublicKey()

			require.NoError(t, s.PutManual(ctx, ManualSubscription{UserID: 2, Mint: first, Amount: 0.1}))
			require.NoError(t, s.PutManual(ctx, ManualSubscription{UserID: 1, Mint: first, Amount: 0.3}))
			require.NoError(t, s.PutManual(ctx, ManualSubscription{UserID: 2, Mint: second, Amount: 0.2}))

			manual, err := s.ListManual(ctx)
			require.NoError(t, err)
			assert.Equal(t, []ManualSubscription{
				{UserID: 1, Mint: first, Amount: 0.3},
				{UserID: 2, Mint: second, Amount: 0.2},
			}, manual)

			removed, err := s.DeleteManual(ctx, 2)
			require.NoError(t, err)
			assert.True(t, removed)
			removed, err = s.DeleteManual(ctx, 2)
			require.NoError(t, err)
			assert.False(t, removed)

			require.NoError(t, s.PutAuto(ctx, AutoSubscription{UserID: 5, Amount: 0.01}))
			require.NoError(t, s.PutAuto(ctx, AutoSubscription{UserID: 5, Amount: 0.02}))
			require.NoError(t, s.PutAuto(ctx, AutoSubscription{UserID: 3, Amount: 0.5}))

			auto, err := s.ListAuto(ctx)
			require.NoError(t, err)
			assert.Equal(t, []AutoSubscription{{UserID: 3, Amount: 0.5}, {UserID: 5, Amount: 0.02}}, auto)

			removed, err = s.DeleteAuto(ctx, 3)
			require.NoError(t, err)
			assert.True(t, removed)
			auto, err = s.ListAuto(ctx)
			require.NoError(t, err)
			assert.Len(t, auto, 1)
		})
	}
}

func TestMemoryStoreSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutManual(ctx, ManualSubscription{UserID: 1, Mint: solana.NewWallet().PublicKey(), Amount: 1}))

	snap, err := s.ListManual(ctx)
	require.NoError(t, err)
	_, err = s.DeleteManual(ctx, 1)
	require.NoError(t, err)

	assert.Len(t, snap, 1)
}
