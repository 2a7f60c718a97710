// ====================================
// File: cmd/bot/export.go
// ====================================
package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/config"
	"github.com/rovshanmuradov/snipe-engine/internal/export"
	"github.com/rovshanmuradov/snipe-engine/internal/storage/postgres"
)

// runExport writes one user's swap history without starting the engine.
func runExport(ctx context.Context, cfg *config.Config, log *zap.Logger, options export.Options) error {
	if cfg.DatabaseURL == "" {
		return errors.New("history export requires database_url")
	}
	db, err := postgres.Open(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	path, err := export.NewHistoryExporter(postgres.NewStorage(db, log), log).Export(ctx, options)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
