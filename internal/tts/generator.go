package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"tts-vc/pkg/models"
)

// ErrEmptyAudio возвращается, если сервис вернул пустое аудио
var ErrEmptyAudio = errors.New("сервис TTS вернул пустое аудио")

// Generator синтезирует речь и сохраняет результат во временный MP3 файл
type Generator struct {
	service TTSService
	cleanup CleanupScheduler
	dir     string
	ttl     time.Duration
	logger  *zap.Logger
	metrics Recorder
}

// NewGenerator создает генератор речи. metrics может быть nil.
func NewGenerator(service TTSService, cleanup CleanupScheduler, dir string, ttl time.Duration, logger *zap.Logger, metrics Recorder) *Generator {
	return &Generator{
		service: service,
		cleanup: cleanup,
		dir:     dir,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// GenerateSpeech синтезирует текст и возвращает байты MP3 вместе с путем к файлу.
// Файл удаляется автоматически по истечении ttl.
func (g *Generator) GenerateSpeech(ctx context.Context, req models.SynthesisRequest) (*models.SynthesisResult, error) {
	start := time.Now()

	audio, err := g.service.Synthesize(ctx, req)
	g.observe(err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ошибка синтеза речи: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	path, err := g.persist(audio)
	if err != nil {
		return nil, err
	}

	g.cleanup.ScheduleKind(path, models.ArtifactSynthesis, g.ttl)

	g.logger.Info("аудио TTS сохранено",
		zap.String("path", path),
		zap.Int("size", len(audio)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.SynthesisResult{Audio: audio, Path: path}, nil
}

// ListVoices проксирует запрос списка голосов
func (g *Generator) ListVoices(ctx context.Context, languageCode string) ([]models.Voice, error) {
	voices, err := g.service.ListVoices(ctx, languageCode)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка голосов: %w", err)
	}
	return voices, nil
}

func (g *Generator) persist(audio []byte) (string, error) {
	if err := os.MkdirAll(g.dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории артефактов: %w", err)
	}

	f, err := os.CreateTemp(g.dir, "tts-*.mp3")
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("ошибка записи аудио: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return f.Name(), nil
}

func (g *Generator) observe(success bool, elapsed time.Duration) {
	if g.metrics != nil {
		g.metrics.RecordSynthesis(success, elapsed.Seconds())
	}
}
