package tts

import (
	"context"
	"time"

	"tts-vc/pkg/models"
)

// TTSService представляет интерфейс облачного Text-to-Speech сервиса
type TTSService interface {
	// Synthesize преобразует текст в MP3 аудио
	Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, error)
	// ListVoices возвращает доступные голоса для языка (пустая строка - все языки)
	ListVoices(ctx context.Context, languageCode string) ([]models.Voice, error)
}

// CleanupScheduler планирует удаление временных файлов
type CleanupScheduler interface {
	ScheduleKind(path string, kind models.ArtifactKind, ttl time.Duration)
}

// Recorder принимает метрики синтеза
type Recorder interface {
	RecordSynthesis(success bool, seconds float64)
}
