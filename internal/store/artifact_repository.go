package store

import (
	"context"
	"fmt"
	"time"

	"tts-vc/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ArtifactRepository интерфейс для работы с журналом временных файлов
type ArtifactRepository interface {
	Record(ctx context.Context, artifact *models.Artifact) error
	MarkDeleted(ctx context.Context, path string) error
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*models.Artifact, error)
}

// artifactRepository реализует ArtifactRepository
type artifactRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewArtifactRepository создает новый репозиторий артефактов
func NewArtifactRepository(db DBTX, logger *zap.Logger) ArtifactRepository {
	return &artifactRepository{
		db:     db,
		logger: logger,
	}
}

// Record записывает артефакт в журнал
func (r *artifactRepository) Record(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (id, path, kind, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`

	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		artifact.ID, artifact.Path, string(artifact.Kind), artifact.CreatedAt, artifact.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи артефакта: %w", err)
	}

	r.logger.Debug("артефакт записан в журнал",
		zap.String("id", artifact.ID.String()),
		zap.String("path", artifact.Path))

	return nil
}

// MarkDeleted отмечает все активные записи пути как удаленные
func (r *artifactRepository) MarkDeleted(ctx context.Context, path string) error {
	query := `
		UPDATE artifacts
		SET deleted_at = NOW()
		WHERE path = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, path)
	if err != nil {
		return fmt.Errorf("ошибка обновления артефакта: %w", err)
	}

	r.logger.Debug("артефакт отмечен удаленным",
		zap.String("path", path),
		zap.Int64("rows", tag.RowsAffected()))

	return nil
}

// ListExpired возвращает не удаленные артефакты с истекшим сроком хранения
func (r *artifactRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*models.Artifact, error) {
	query := `
		SELECT id, path, kind, created_at, expires_at, deleted_at
		FROM artifacts
		WHERE deleted_at IS NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения просроченных артефактов: %w", err)
	}

	artifacts, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Artifact])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения артефактов: %w", err)
	}

	return artifacts, nil
}
