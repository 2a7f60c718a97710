package snipe

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/storage/postgres"
	"github.com/rovshanmuradov/snipe-engine/internal/swap"
)

type recordingSwapper struct {
	mu    sync.Mutex
	calls []swap.Request
	err   error
	hook  func(req swap.Request)
}

func (s *recordingSwapper) ExecuteSwap(_ context.Context, req swap.Request) (*swap.Result, error) {
	if s.hook != nil {
		s.hook(req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return &swap.Result{}, nil
}

func (s *recordingSwapper) requests() []swap.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]swap.Request(nil), s.calls...)
}

type scriptedFeed struct {
	mu        sync.Mutex
	snapshots [][]string
	errs      []error
}

func (f *scriptedFeed) FetchBaseMints(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return nil, err
	}
	if len(f.snapshots) == 0 {
		return nil, nil
	}
	snap := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return snap, nil
}

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := postgres.OpenDialector(sqlite.Open(":memory:"), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, postgres.Migrate(db))
	return NewGormStore(db)
}

// flakyStore fails ListAuto with the queued errors before delegating.
type flakyStore struct {
	*MemoryStore
	mu           sync.Mutex
	listAutoErrs []error
}

func (s *flakyStore) ListAuto(ctx context.Context) ([]AutoSubscription, error) {
	s.mu.Lock()
	var err error
	if len(s.listAutoErrs) > 0 {
		err, s.listAutoErrs = s.listAutoErrs[0], s.listAutoErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.ListAuto(ctx)
}
