package studio

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"tts-vc/pkg/models"
)

// SpeechGenerator синтезирует речь из текста
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, req models.SynthesisRequest) (*models.SynthesisResult, error)
}

// VoiceCloner переносит тембр эталонной записи на аудио
type VoiceCloner interface {
	CloneVoice(ctx context.Context, req models.CloningRequest) (*models.CloningResult, error)
}

// Recorder принимает итоговые метрики запросов
type Recorder interface {
	RecordGeneration(result string)
}

// Service выполняет полный цикл: текст, синтез речи, клонирование голоса
type Service struct {
	speech  SpeechGenerator
	cloner  VoiceCloner
	logger  *zap.Logger
	metrics Recorder
}

// NewService создает сервис. metrics может быть nil.
func NewService(speech SpeechGenerator, cloner VoiceCloner, logger *zap.Logger, metrics Recorder) *Service {
	return &Service{
		speech:  speech,
		cloner:  cloner,
		logger:  logger,
		metrics: metrics,
	}
}

// SynthesizeSpeech синтезирует текст и клонирует результат голосом из in.ReferenceAudio.
// Пустой текст или отсутствующий файл не считаются ошибкой: возвращается nil без вызова внешних сервисов.
func (s *Service) SynthesizeSpeech(ctx context.Context, in models.GenerationInput) (*models.GenerationResult, error) {
	text, ok, err := s.resolveText(in)
	if err != nil {
		s.record("failed")
		return nil, err
	}
	if !ok {
		s.logger.Debug("пустой ввод, генерация пропущена", zap.String("input_method", string(in.Method)))
		s.record("empty")
		return nil, nil
	}

	s.logger.Info("🎙️ начинаем генерацию",
		zap.String("voice", in.Voice),
		zap.String("language_code", in.LanguageCode),
		zap.Int("text_length", len(text)))

	speech, err := s.speech.GenerateSpeech(ctx, models.SynthesisRequest{
		Text:         text,
		Voice:        in.Voice,
		LanguageCode: in.LanguageCode,
	})
	if err != nil {
		s.record("failed")
		return nil, err
	}

	cloned, err := s.cloner.CloneVoice(ctx, models.CloningRequest{
		SourcePath:      speech.Path,
		TargetVoicePath: in.ReferenceAudio,
	})
	if err != nil {
		s.record("failed")
		return nil, err
	}

	s.record("success")
	s.logger.Info("🎙️ генерация завершена",
		zap.String("tts_path", speech.Path),
		zap.String("cloned_path", cloned.Path))

	return &models.GenerationResult{
		TTSPath:    speech.Path,
		ClonedPath: cloned.Path,
	}, nil
}

// resolveText возвращает обрезанный текст; ok=false означает пустой ввод
func (s *Service) resolveText(in models.GenerationInput) (string, bool, error) {
	var text string

	// Пустой метод означает текстовый ввод, как и в форме
	if models.ParseInputMethod(string(in.Method)) == models.InputMethodText {
		text = in.Text
	} else {
		if in.TextFilePath == "" {
			return "", false, nil
		}
		data, err := os.ReadFile(in.TextFilePath)
		if err != nil {
			return "", false, fmt.Errorf("ошибка чтения текстового файла: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	return text, text != "", nil
}

func (s *Service) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordGeneration(result)
	}
}
