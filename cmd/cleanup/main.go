package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tts-vc/internal/cleanup"
	"tts-vc/internal/config"
	"tts-vc/internal/scheduler"
	"tts-vc/internal/store"

	"go.uber.org/zap"
)

func main() {
	var (
		dir    = flag.String("dir", defaultDir(), "Каталог временных аудиофайлов")
		maxAge = flag.Duration("max-age", 30*time.Minute, "Удалять файлы старше указанного возраста")
		dryRun = flag.Bool("dry-run", false, "Показать что будет удалено без фактического удаления")
		ledger = flag.Bool("ledger", false, "Также удалить просроченные файлы из журнала в PostgreSQL")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := scheduler.NewArtifactSweepJob(*dir, *maxAge, cleanup.NewRegistry(logger), *dryRun, logger)
	stats, err := job.Sweep(ctx)
	if err != nil {
		logger.Fatal("Ошибка очистки каталога", zap.Error(err))
	}

	logger.Info("Очистка каталога завершена",
		zap.String("dir", *dir),
		zap.Duration("max_age", *maxAge),
		zap.Bool("dry_run", *dryRun),
		zap.Int("scanned", stats.Scanned),
		zap.Int("expired", stats.Expired),
		zap.Int("removed", stats.Removed),
		zap.Int("failed", stats.Failed))

	if !*ledger {
		return
	}

	if *dryRun {
		logger.Info("DRY RUN: очистка по журналу пропущена")
		return
	}

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}
	if !cfg.Database.Enabled() {
		logger.Fatal("Для -ledger нужен DB_NAME")
	}

	// Подключение к базе данных
	db, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
	}
	defer db.Close()

	if err := scheduler.NewLedgerSweepJob(db.Artifact(), logger).Run(ctx); err != nil {
		logger.Fatal("Ошибка очистки по журналу", zap.Error(err))
	}

	logger.Info("Очистка по журналу завершена успешно")
}

func defaultDir() string {
	if dir := os.Getenv("ARTIFACT_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "tts-vc")
}
