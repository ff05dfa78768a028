package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1beta1"
	"cloud.google.com/go/texttospeech/apiv1beta1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tts-vc/pkg/models"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// APIError ошибка, возвращенная Google Cloud TTS
type APIError struct {
	Code    codes.Code
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ошибка Google TTS (%s): %s", e.Code, e.Message)
}

// IsClientError сообщает, вызвана ли ошибка некорректным запросом (например, неизвестным голосом)
func (e *APIError) IsClientError() bool {
	switch e.Code {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied,
		codes.Unauthenticated, codes.FailedPrecondition, codes.OutOfRange:
		return true
	}
	return false
}

// speechClient часть клиента texttospeech, которую использует сервис
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	Close() error
}

// GoogleService предоставляет Text-to-Speech через Google Cloud TTS v1beta1 (голоса Chirp 3 HD)
type GoogleService struct {
	logger  *zap.Logger
	client  speechClient
	timeout time.Duration
}

// NewGoogleService создает сервис поверх клиента SDK.
// timeout ограничивает каждый вызов, 0 означает без ограничения.
func NewGoogleService(logger *zap.Logger, client speechClient, timeout time.Duration) *GoogleService {
	return &GoogleService{
		logger:  logger,
		client:  client,
		timeout: timeout,
	}
}

// NewDefaultGoogleService создает клиент SDK с Application Default Credentials.
// endpoint задается без схемы, например "us-texttospeech.googleapis.com".
func NewDefaultGoogleService(ctx context.Context, logger *zap.Logger, endpoint, projectID string, timeout time.Duration) (*GoogleService, error) {
	tokens, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("учетные данные Google не найдены: %w", err)
	}

	client, err := texttospeech.NewClient(ctx, clientOptions(endpoint, projectID, tokens)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента Google TTS: %w", err)
	}

	logger.Info("клиент Google TTS создан", zap.String("endpoint", endpoint))
	return NewGoogleService(logger, client, timeout), nil
}

func clientOptions(endpoint, projectID string, tokens oauth2.TokenSource) []option.ClientOption {
	opts := []option.ClientOption{
		option.WithEndpoint(endpoint + ":443"),
		option.WithTokenSource(tokens),
	}
	if projectID != "" {
		opts = append(opts, option.WithQuotaProject(projectID))
	}
	return opts
}

// Close закрывает соединение с API
func (s *GoogleService) Close() error {
	return s.client.Close()
}

// Synthesize преобразует текст в MP3 через Google Cloud TTS
func (s *GoogleService) Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, error) {
	voiceName := VoiceName(req.LanguageCode, req.Voice)

	s.logger.Info("🎵 генерируем аудио через Google TTS",
		zap.String("voice", voiceName),
		zap.Int("text_length", len(req.Text)))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.LanguageCode,
			Name:         voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	s.logger.Info("🎵 аудио успешно сгенерировано",
		zap.String("voice", voiceName),
		zap.Int("audio_size", len(audio)))

	return audio, nil
}

// ListVoices возвращает список голосов Chirp 3 HD для языка
func (s *GoogleService) ListVoices(ctx context.Context, languageCode string) ([]models.Voice, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: languageCode})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	voices := make([]models.Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		if !strings.Contains(v.GetName(), voiceFamily) {
			continue
		}
		voices = append(voices, models.Voice{
			Name:                   v.GetName(),
			LanguageCodes:          v.GetLanguageCodes(),
			SSMLGender:             v.GetSsmlGender().String(),
			NaturalSampleRateHertz: int(v.GetNaturalSampleRateHertz()),
		})
	}

	s.logger.Debug("получен список голосов",
		zap.String("language_code", languageCode),
		zap.Int("count", len(voices)))

	return voices, nil
}

func (s *GoogleService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// wrapAPIError переводит статус gRPC в APIError
func wrapAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("запрос к Google TTS прерван: %w", err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	return &APIError{Code: st.Code(), Message: st.Message()}
}

// AsAPIError извлекает APIError из цепочки ошибок
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
