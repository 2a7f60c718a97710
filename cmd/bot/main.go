// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/bot"
	"github.com/rovshanmuradov/snipe-engine/internal/config"
	"github.com/rovshanmuradov/snipe-engine/internal/export"
	"github.com/rovshanmuradov/snipe-engine/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to the config file")
	exportUser := flag.Int64("export-user", 0, "export the swap history of this user and exit")
	exportFormat := flag.String("export-format", string(export.FormatCSV), "history export format: csv or json")
	exportDir := flag.String("export-dir", "exports", "directory for history exports")
	exportMint := flag.String("export-mint", "", "only export swaps touching this mint")
	exportSuccess := flag.Bool("export-success", false, "only export confirmed swaps")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *exportUser != 0 {
		err := runExport(ctx, cfg, log, export.Options{
			Format:      export.Format(*exportFormat),
			UserID:      *exportUser,
			MintFilter:  *exportMint,
			OnlySuccess: *exportSuccess,
			OutputDir:   *exportDir,
		})
		if err != nil {
			log.Error("History export failed", zap.Error(err))
			_ = logger.Sync(log)
			os.Exit(1)
		}
		return
	}

	log.Info("Starting snipe engine", zap.String("config", *configPath))

	runner := bot.NewRunner(cfg, log)
	if err := runner.Initialize(ctx); err != nil {
		log.Error("Failed to initialize engine", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		log.Error("Engine stopped with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Snipe engine stopped")
}
