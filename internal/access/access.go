// internal/access/access.go
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

// Тарифные пакеты
const (
	PackageFree = "free"
	PackagePlus = "plus"
	PackagePro  = "pro"
)

// Сервисы, доступ к которым ограничен пакетом
const (
	ServiceBuySell   = "buy_sell"
	ServiceAutoSnipe = "auto_snipe"
	ServiceAirdrop   = "airdrop"
	ServiceNews      = "news"
)

var rules = map[string][]string{
	ServiceBuySell:   {PackagePlus, PackagePro},
	ServiceAutoSnipe: {PackagePro},
	ServiceAirdrop:   {PackagePro},
	ServiceNews:      {PackagePro},
}

// Allowed reports whether pkg may use service. Services without a rule are open to every package.
func Allowed(service, pkg string) bool {
	allowed, ok := rules[service]
	if !ok {
		return pkg == PackageFree || pkg == PackagePlus || pkg == PackagePro
	}
	for _, p := range allowed {
		if p == pkg {
			return true
		}
	}
	return false
}

// PackageStore отдаёт пакет пользователя; неизвестный пользователь – free.
type PackageStore interface {
	GetPackage(ctx context.Context, userID int64) (string, error)
	SetPackage(ctx context.Context, userID int64, pkg string) error
}

type Checker struct {
	store  PackageStore
	logger *zap.Logger
}

func NewChecker(store PackageStore, logger *zap.Logger) *Checker {
	return &Checker{store: store, logger: logger.Named("access")}
}

func (c *Checker) CheckAccess(ctx context.Context, service string, userID int64) (bool, error) {
	pkg, err := c.store.GetPackage(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load package for user %d: %w", userID, err)
	}
	ok := Allowed(service, pkg)
	if !ok {
		c.logger.Debug("access denied",
			zap.Int64("user_id", userID),
			zap.String("service", service),
			zap.String("package", pkg))
	}
	return ok, nil
}

func validPackage(pkg string) error {
	switch pkg {
	case PackageFree, PackagePlus, PackagePro:
		return nil
	default:
		return fmt.Errorf("unknown package %q", pkg)
	}
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetPackage(ctx context.Context, userID int64) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PackageFree, nil
	}
	if err != nil {
		return "", err
	}
	if user.Package == "" {
		return PackageFree, nil
	}
	return user.Package, nil
}

func (s *GormStore) SetPackage(ctx context.Context, userID int64, pkg string) error {
	if err := validPackage(pkg); err != nil {
		return err
	}
	user := models.User{UserKeyed: models.UserKeyed{UserID: userID}, Package: pkg}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"package", "updated_at"}),
	}).Create(&user).Error
}

type MemoryStore struct {
	mu       sync.RWMutex
	packages map[int64]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{packages: make(map[int64]string)}
}

func (s *MemoryStore) GetPackage(_ context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pkg, ok := s.packages[userID]; ok {
		return pkg, nil
	}
	return PackageFree, nil
}

func (s *MemoryStore) SetPackage(_ context.Context, userID int64, pkg string) error {
	if err := validPackage(pkg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[userID] = pkg
	return nil
}
