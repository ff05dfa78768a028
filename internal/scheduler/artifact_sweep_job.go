package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"tts-vc/internal/cleanup"
)

// ArtifactPatterns шаблоны имен файлов, которые создает сервис
var ArtifactPatterns = []string{"tts-*.mp3", "vc-*.wav", "ref-*", "text-*.txt"}

// Remover удаляет файл и сообщает результат
type Remover interface {
	Remove(path string) cleanup.Result
}

// SweepStats итоги одного прохода очистки
type SweepStats struct {
	Scanned int
	Expired int
	Removed int
	Failed  int
}

// ArtifactSweepJob удаляет из директории артефактов файлы старше maxAge.
// Подбирает то, что не успели удалить таймеры, например после перезапуска процесса.
type ArtifactSweepJob struct {
	dir     string
	maxAge  time.Duration
	remover Remover
	dryRun  bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewArtifactSweepJob создает задачу очистки директории
func NewArtifactSweepJob(dir string, maxAge time.Duration, remover Remover, dryRun bool, logger *zap.Logger) *ArtifactSweepJob {
	return &ArtifactSweepJob{
		dir:     dir,
		maxAge:  maxAge,
		remover: remover,
		dryRun:  dryRun,
		logger:  logger,
		now:     time.Now,
	}
}

// Name возвращает имя задачи
func (j *ArtifactSweepJob) Name() string {
	return "artifact_sweep"
}

// Run запускает очистку
func (j *ArtifactSweepJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep выполняет один проход и возвращает статистику
func (j *ArtifactSweepJob) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("ошибка чтения директории артефактов: %w", err)
	}

	cutoff := j.now().Add(-j.maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if !entry.Type().IsRegular() || !isArtifact(entry.Name()) {
			continue
		}
		stats.Scanned++

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		stats.Expired++

		path := filepath.Join(j.dir, entry.Name())
		if j.dryRun {
			j.logger.Info("DRY RUN: файл будет удален",
				zap.String("path", path),
				zap.Time("modified", info.ModTime()))
			continue
		}

		switch j.remover.Remove(path) {
		case cleanup.ResultRemoved, cleanup.ResultMissing:
			stats.Removed++
		case cleanup.ResultFailed:
			stats.Failed++
		}
	}

	if stats.Expired > 0 {
		j.logger.Info("очистка директории артефактов завершена",
			zap.String("dir", j.dir),
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int("removed", stats.Removed),
			zap.Int("failed", stats.Failed),
			zap.Bool("dry_run", j.dryRun))
	}

	return stats, nil
}

func isArtifact(name string) bool {
	for _, pattern := range ArtifactPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
