package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tts-vc/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Проверяем SQL и аргументы без реальной БД

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls    []execCall
	execErr  error
	queryErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return nil, f.queryErr
}

func TestArtifactRepository_Record(t *testing.T) {
	db := &fakeDB{}
	repo := NewArtifactRepository(db, zap.NewNop())

	expires := time.Now().Add(30 * time.Minute)
	artifact := &models.Artifact{
		Path:      "/tmp/tts-vc/tts-1.mp3",
		Kind:      models.ArtifactSynthesis,
		ExpiresAt: expires,
	}

	require.NoError(t, repo.Record(context.Background(), artifact))

	assert.NotEqual(t, uuid.Nil, artifact.ID, "ID должен быть сгенерирован")
	assert.False(t, artifact.CreatedAt.IsZero())

	require.Len(t, db.calls, 1)
	assert.True(t, strings.Contains(db.calls[0].sql, "INSERT INTO artifacts"))
	assert.Equal(t, []any{artifact.ID, "/tmp/tts-vc/tts-1.mp3", "synthesis", artifact.CreatedAt, expires}, db.calls[0].args)
}

func TestArtifactRepository_MarkDeleted(t *testing.T) {
	db := &fakeDB{}
	repo := NewArtifactRepository(db, zap.NewNop())

	require.NoError(t, repo.MarkDeleted(context.Background(), "/tmp/tts-vc/vc-1.wav"))

	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "deleted_at IS NULL")
	assert.Equal(t, []any{"/tmp/tts-vc/vc-1.wav"}, db.calls[0].args)
}

func TestArtifactRepository_Errors(t *testing.T) {
	dbErr := errors.New("connection refused")
	db := &fakeDB{execErr: dbErr, queryErr: dbErr}
	repo := NewArtifactRepository(db, zap.NewNop())

	assert.ErrorIs(t, repo.Record(context.Background(), &models.Artifact{Path: "x"}), dbErr)
	assert.ErrorIs(t, repo.MarkDeleted(context.Background(), "x"), dbErr)

	_, err := repo.ListExpired(context.Background(), time.Now(), 10)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, 10, db.calls[2].args[1])
}
