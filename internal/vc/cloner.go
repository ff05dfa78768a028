package vc

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"tts-vc/pkg/models"
)

// CleanupScheduler планирует удаление временных файлов
type CleanupScheduler interface {
	ScheduleKind(path string, kind models.ArtifactKind, ttl time.Duration)
}

// Recorder принимает метрики клонирования
type Recorder interface {
	RecordCloning(device string, success bool, seconds float64)
}

// Cloner клонирует голос и сохраняет результат во временный WAV файл.
// При serialize=true вызовы модели выполняются строго по одному.
type Cloner struct {
	model     Model
	cleanup   CleanupScheduler
	dir       string
	ttl       time.Duration
	serialize bool
	logger    *zap.Logger
	metrics   Recorder

	mu sync.Mutex
}

// NewCloner создает адаптер клонирования. metrics может быть nil.
func NewCloner(model Model, cleanup CleanupScheduler, dir string, ttl time.Duration, serialize bool, logger *zap.Logger, metrics Recorder) *Cloner {
	return &Cloner{
		model:     model,
		cleanup:   cleanup,
		dir:       dir,
		ttl:       ttl,
		serialize: serialize,
		logger:    logger,
		metrics:   metrics,
	}
}

// CloneVoice переносит тембр эталонной записи на исходное аудио
func (c *Cloner) CloneVoice(ctx context.Context, req models.CloningRequest) (*models.CloningResult, error) {
	for _, p := range []string{req.SourcePath, req.TargetVoicePath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("аудио файл недоступен: %w", err)
		}
	}

	start := time.Now()
	wave, err := c.generate(ctx, req)
	c.observe(err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ошибка клонирования голоса: %w", err)
	}

	path, err := c.persist(wave)
	if err != nil {
		return nil, err
	}

	c.cleanup.ScheduleKind(path, models.ArtifactCloned, c.ttl)

	c.logger.Info("клонированное аудио сохранено",
		zap.String("path", path),
		zap.String("device", string(c.model.Device())),
		zap.Int("sample_rate", wave.SampleRate),
		zap.Int("samples", len(wave.Samples)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.CloningResult{Path: path, SampleRate: wave.SampleRate}, nil
}

func (c *Cloner) generate(ctx context.Context, req models.CloningRequest) (*Waveform, error) {
	if c.serialize {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	return c.model.Generate(ctx, req.SourcePath, req.TargetVoicePath)
}

func (c *Cloner) persist(wave *Waveform) (string, error) {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории артефактов: %w", err)
	}

	f, err := os.CreateTemp(c.dir, "vc-*.wav")
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if err := writeWAV(f, wave); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return f.Name(), nil
}

func (c *Cloner) observe(success bool, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordCloning(string(c.model.Device()), success, elapsed.Seconds())
	}
}
