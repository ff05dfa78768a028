package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tts-vc/internal/cleanup"
	"tts-vc/pkg/models"
)

const ledgerBatchSize = 500

// ArtifactLedger журнал артефактов с истекшим сроком хранения
type ArtifactLedger interface {
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*models.Artifact, error)
	MarkDeleted(ctx context.Context, path string) error
}

// LedgerSweepJob удаляет файлы, срок которых истек по данным журнала
type LedgerSweepJob struct {
	ledger ArtifactLedger
	logger *zap.Logger
	now    func() time.Time
}

// NewLedgerSweepJob создает задачу очистки по журналу
func NewLedgerSweepJob(ledger ArtifactLedger, logger *zap.Logger) *LedgerSweepJob {
	return &LedgerSweepJob{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// Name возвращает имя задачи
func (j *LedgerSweepJob) Name() string {
	return "ledger_sweep"
}

// Run удаляет просроченные файлы и отмечает их в журнале
func (j *LedgerSweepJob) Run(ctx context.Context) error {
	expired, err := j.ledger.ListExpired(ctx, j.now(), ledgerBatchSize)
	if err != nil {
		return fmt.Errorf("ошибка получения просроченных артефактов: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	removed := 0
	for _, artifact := range expired {
		result, err := cleanup.RemoveFile(artifact.Path)
		if result == cleanup.ResultFailed {
			j.logger.Error("ошибка удаления просроченного файла",
				zap.String("path", artifact.Path),
				zap.Error(err))
			continue
		}
		if err := j.ledger.MarkDeleted(ctx, artifact.Path); err != nil {
			j.logger.Warn("не удалось отметить удаление в журнале",
				zap.String("path", artifact.Path),
				zap.Error(err))
			continue
		}
		removed++
	}

	j.logger.Info("очистка по журналу завершена",
		zap.Int("expired", len(expired)),
		zap.Int("removed", removed))

	return nil
}
