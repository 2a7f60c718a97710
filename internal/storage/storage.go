// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// История свопов
	SaveSwap(ctx context.Context, swap *models.Swap) error
	ListSwaps(ctx context.Context, userID int64, limit, offset int) ([]*models.Swap, error)

	RunMigrations() error
}
