// internal/wallet/store.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

var ErrWalletNotFound = errors.New("wallet not found")

// Store хранит зашифрованные ключи, по одному на пользователя.
type Store interface {
	GetEncryptedKey(ctx context.Context, userID int64) ([]byte, error)
	SaveEncryptedKey(ctx context.Context, userID int64, encrypted []byte) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetEncryptedKey(ctx context.Context, userID int64) ([]byte, error) {
	var rec models.WalletRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return rec.EncryptedPrivkey, nil
}

// SaveEncryptedKey upserts the user's key.
func (s *GormStore) SaveEncryptedKey(ctx context.Context, userID int64, encrypted []byte) error {
	rec := models.WalletRecord{
		UserKeyed:        models.UserKeyed{UserID: userID},
		EncryptedPrivkey: encrypted,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_privkey", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu   sync.RWMutex
	keys map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[int64][]byte)}
}

func (s *MemoryStore) GetEncryptedKey(_ context.Context, userID int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc, ok := s.keys[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return append([]byte(nil), enc...), nil
}

func (s *MemoryStore) SaveEncryptedKey(_ context.Context, userID int64, encrypted []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[userID] = append([]byte(nil), encrypted...)
	return nil
}
