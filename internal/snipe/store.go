// internal/snipe/store.go
package snipe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

// ManualSubscription buys Mint with Amount SOL every manual tick.
type ManualSubscription struct {
	UserID int64
	Mint   solana.PublicKey
	Amount float64
}

// AutoSubscription buys every newly listed asset with Amount SOL.
type AutoSubscription struct {
	UserID int64
	Amount float64
}

// Store holds at most one subscription of each kind per user.
// Put replaces, Delete reports whether there was anything to remove.
type Store interface {
	PutManual(ctx context.Context, sub ManualSubscription) error
	DeleteManual(ctx context.Context, userID int64) (bool, error)
	ListManual(ctx context.Context) ([]ManualSubscription, error)

	PutAuto(ctx context.Context, sub AutoSubscription) error
	DeleteAuto(ctx context.Context, userID int64) (bool, error)
	ListAuto(ctx context.Context) ([]AutoSubscription, error)
}

// MemoryStore – subscriptions живут только до рестарта процесса.
type MemoryStore struct {
	mu     sync.RWMutex
	manual map[int64]ManualSubscription
	auto   map[int64]AutoSubscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		manual: make(map[int64]ManualSubscription),
		auto:   make(map[int64]AutoSubscription),
	}
}

func (s *MemoryStore) PutManual(_ context.Context, sub ManualSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual[sub.UserID] = sub
	return nil
}

func (s *MemoryStore) DeleteManual(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.manual[userID]
	delete(s.manual, userID)
	return ok, nil
}

// ListManual returns a copy, safe to iterate while the store changes.
func (s *MemoryStore) ListManual(_ context.Context) ([]ManualSubscription, error) {
	s.mu.RLock()
	out := make([]ManualSubscription, 0, len(s.manual))
	for _, sub := range s.manual {
		out = append(out, sub)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) PutAuto(_ context.Context, sub AutoSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto[sub.UserID] = sub
	return nil
}

func (s *MemoryStore) DeleteAuto(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.auto[userID]
	delete(s.auto, userID)
	return ok, nil
}

func (s *MemoryStore) ListAuto(_ context.Context) ([]AutoSubscription, error) {
	s.mu.RLock()
	out := make([]AutoSubscription, 0, len(s.auto))
	for _, sub := range s.auto {
		out = append(out, sub)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// GormStore persists subscriptions so they survive restarts.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) PutManual(ctx context.Context, sub ManualSubscription) error {
	rec := models.ManualSubscription{
		UserKeyed: models.UserKeyed{UserID: sub.UserID},
		Mint:      sub.Mint.String(),
		Amount:    sub.Amount,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mint", "amount", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save manual subscription: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteManual(ctx context.Context, userID int64) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ManualSubscription{})
	if res.Error != nil {
		return false, fmt.Errorf("delete manual subscription: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ListManual(ctx context.Context) ([]ManualSubscription, error) {
	var recs []models.ManualSubscription
	if err := s.db.WithContext(ctx).Order("user_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list manual subscriptions: %w", err)
	}
	out := make([]ManualSubscription, 0, len(recs))
	for _, rec := range recs {
		mint, err := solana.PublicKeyFromBase58(rec.Mint)
		if err != nil {
			return nil, fmt.Errorf("manual subscription of user %d: invalid mint %q: %w", rec.UserID, rec.Mint, err)
		}
		out = append(out, ManualSubscription{UserID: rec.UserID, Mint: mint, Amount: rec.Amount})
	}
	return out, nil
}

func (s *GormStore) PutAuto(ctx context.Context, sub AutoSubscription) error {
	rec := models.AutoSubscription{
		UserKeyed: models.UserKeyed{UserID: sub.UserID},
		Amount:    sub.Amount,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save auto subscription: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteAuto(ctx context.Context, userID int64) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.AutoSubscription{})
	if res.Error != nil {
		return false, fmt.Errorf("delete auto subscription: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ListAuto(ctx context.Context) ([]AutoSubscription, error) {
	var recs []models.AutoSubscription
	if err := s.db.WithContext(ctx).Order("user_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list auto subscriptions: %w", err)
	}
	out := make([]AutoSubscription, 0, len(recs))
	for _, rec := range recs {
		out = append(out, AutoSubscription{UserID: rec.UserID, Amount: rec.Amount})
	}
	return out, nil
}
