package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tts-vc/internal/audio"
	"tts-vc/internal/tts"
	"tts-vc/pkg/models"
)

const (
	// Лимиты безопасности
	MaxFileSize     = 25 * 1024 * 1024 // 25MB максимум для аудио файлов
	MaxTextBytes    = 5000             // Лимит входного текста Google TTS в байтах
	DownloadTimeout = 30 * time.Second
)

var (
	// ErrNoReference нет ни пользовательского, ни эталона по умолчанию
	ErrNoReference  = errors.New("эталонная запись недоступна")
	ErrFileTooLarge = errors.New("файл превышает допустимый размер")
	ErrTextTooLong  = errors.New("текст превышает допустимую длину")
)

// TelegramAPI часть tgbotapi.BotAPI, которую использует обработчик
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Pipeline выполняет синтез и клонирование
type Pipeline interface {
	SynthesizeSpeech(ctx context.Context, in models.GenerationInput) (*models.GenerationResult, error)
}

// AudioConverter готовит пользовательские записи к клонированию
type AudioConverter interface {
	ToWAV(ctx context.Context, input, dir string) (string, error)
	ValidateReference(ctx context.Context, path string) error
}

// CleanupScheduler планирует удаление скачанных файлов
type CleanupScheduler interface {
	ScheduleKind(path string, kind models.ArtifactKind, ttl time.Duration)
}

// Options настройки обработчика
type Options struct {
	Token              string
	Dir                string
	TTL                time.Duration
	DefaultReference   string
	DefaultVoice       string
	DefaultLanguage    string
	RateLimitPerMinute int
}

// Handler представляет обработчик сообщений Telegram
type Handler struct {
	bot         TelegramAPI
	pipeline    Pipeline
	converter   AudioConverter
	cleanup     CleanupScheduler
	sessions    *Sessions
	rateLimiter *RateLimiter
	messages    *Messages
	opts        Options
	httpClient  *http.Client
	fileURL     func(tgbotapi.File) string
	logger      *zap.Logger
}

// NewHandler создает новый обработчик
func NewHandler(
	bot TelegramAPI,
	pipeline Pipeline,
	converter AudioConverter,
	cleanup CleanupScheduler,
	opts Options,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bot:         bot,
		pipeline:    pipeline,
		converter:   converter,
		cleanup:     cleanup,
		sessions:    NewSessions(opts.DefaultVoice, opts.DefaultLanguage),
		rateLimiter: NewRateLimiter(opts.RateLimitPerMinute, RateLimitWindow),
		messages:    NewMessages(),
		opts:        opts,
		httpClient:  &http.Client{Timeout: DownloadTimeout},
		fileURL:     func(f tgbotapi.File) string { return f.Link(opts.Token) },
		logger:      logger,
	}
}

// HandleUpdate обрабатывает входящее обновление
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	message := update.Message
	if message == nil || message.Chat == nil {
		return nil
	}

	if message.From != nil && !h.rateLimiter.IsAllowed(message.From.ID) {
		h.logger.Warn("rate limit exceeded", zap.Int64("user_id", message.From.ID))
		return h.sendMessage(message.Chat.ID, h.messages.RateLimited())
	}

	h.logger.Debug("получено обновление",
		zap.Int64("chat_id", message.Chat.ID),
		zap.Int("text_length", len(message.Text)))

	switch {
	case message.IsCommand():
		return h.handleCommand(ctx, message)
	case message.Voice != nil || message.Audio != nil || isAudioDocument(message.Document):
		return h.handleReference(ctx, message)
	case strings.TrimSpace(message.Text) != "":
		return h.handleText(ctx, message)
	default:
		return nil
	}
}

// handleCommand обрабатывает команды
func (h *Handler) handleCommand(_ context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	arg := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		return h.sendMessage(chatID, h.messages.Welcome(h.opts.TTL))
	case "help":
		return h.sendMessage(chatID, h.messages.Help(h.opts.TTL))
	case "settings":
		return h.sendMessage(chatID, h.messages.Settings(h.sessions.Get(chatID)))
	case "voice":
		if !tts.IsKnownVoice(arg) {
			return h.sendMessage(chatID, h.messages.UnknownOption("голос", tts.Voices))
		}
		h.sessions.SetVoice(chatID, arg)
		return h.sendMessage(chatID, h.messages.VoiceSet(arg))
	case "lang":
		if !tts.IsKnownLanguage(arg) {
			return h.sendMessage(chatID, h.messages.UnknownOption("язык", tts.LanguageCodes))
		}
		h.sessions.SetLanguage(chatID, arg)
		return h.sendMessage(chatID, h.messages.LanguageSet(arg))
	case "reset":
		h.sessions.SetReference(chatID, "")
		return h.sendMessage(chatID, h.messages.ReferenceReset())
	default:
		return h.sendMessage(chatID, h.messages.UnknownCommand())
	}
}

// handleText озвучивает текст и отправляет оба аудио
func (h *Handler) handleText(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	text, err := sanitizeText(message.Text)
	if err != nil {
		return h.sendMessage(chatID, h.messages.TextTooLong(MaxTextBytes))
	}

	sess := h.sessions.Get(chatID)
	ref, err := h.reference(chatID, sess)
	if err != nil {
		h.logger.Error("эталон недоступен", zap.Int64("chat_id", chatID), zap.Error(err))
		return h.sendErrorMessage(chatID, "Эталонная запись недоступна. Отправьте голосовое сообщение.")
	}

	processing := tgbotapi.NewMessage(chatID, h.messages.Processing())
	processing.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(processing); err != nil {
		h.logger.Warn("ошибка отправки сообщения об обработке", zap.Error(err))
	}

	result, err := h.pipeline.SynthesizeSpeech(ctx, models.GenerationInput{
		Method:         models.InputMethodText,
		Text:           text,
		Voice:          sess.Voice,
		LanguageCode:   sess.LanguageCode,
		ReferenceAudio: ref,
	})
	if err != nil {
		h.logger.Error("❌ ошибка генерации", zap.Int64("chat_id", chatID), zap.Error(err))
		return h.sendErrorMessage(chatID, "Ошибка генерации аудио. Попробуйте позже.")
	}
	if result == nil {
		return h.sendMessage(chatID, h.messages.EmptyText())
	}

	if err := h.sendAudio(chatID, result.TTSPath, fmt.Sprintf("🔊 Chirp 3 HD: %s (%s)", sess.Voice, sess.LanguageCode)); err != nil {
		return err
	}
	return h.sendAudio(chatID, result.ClonedPath, "🎭 Клонированный голос")
}

// handleReference сохраняет голосовое сообщение как эталон чата
func (h *Handler) handleReference(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	fileID, ext, size := audioAttachment(message)
	if size > MaxFileSize {
		return h.sendErrorMessage(chatID, "Файл слишком большой. Максимум 25MB.")
	}

	file, err := h.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		h.logger.Error("ошибка получения файла от Telegram", zap.Error(err))
		return h.sendErrorMessage(chatID, "Ошибка получения аудио")
	}
	if file.FileSize > MaxFileSize {
		return h.sendErrorMessage(chatID, "Файл слишком большой. Максимум 25MB.")
	}

	raw, err := h.download(ctx, h.fileURL(file), ext)
	if err != nil {
		h.logger.Error("ошибка скачивания файла", zap.Error(err))
		return h.sendErrorMessage(chatID, "Ошибка скачивания аудио")
	}

	wav, err := h.converter.ToWAV(ctx, raw, h.opts.Dir)
	if err != nil {
		h.logger.Error("ошибка конвертации эталона", zap.Error(err))
		return h.sendErrorMessage(chatID, "Не удалось прочитать аудио")
	}
	h.cleanup.ScheduleKind(wav, models.ArtifactUpload, h.opts.TTL)

	if err := h.converter.ValidateReference(ctx, wav); err != nil {
		if errors.Is(err, audio.ErrReferenceTooShort) {
			return h.sendErrorMessage(chatID, "Запись слишком короткая, нужна хотя бы секунда речи.")
		}
		h.logger.Error("ошибка проверки эталона", zap.Error(err))
		return h.sendErrorMessage(chatID, "Не удалось прочитать аудио")
	}

	h.sessions.SetReference(chatID, wav)
	h.logger.Info("🎤 эталон сохранен", zap.Int64("chat_id", chatID), zap.String("path", wav))

	return h.sendMessage(chatID, h.messages.ReferenceSaved())
}

// reference выбирает эталон чата или эталон по умолчанию
func (h *Handler) reference(chatID int64, sess Session) (string, error) {
	if sess.ReferenceAudio != "" {
		if _, err := os.Stat(sess.ReferenceAudio); err == nil {
			return sess.ReferenceAudio, nil
		}
		// Запись удалена по истечении срока хранения
		h.sessions.SetReference(chatID, "")
		if err := h.sendMessage(chatID, h.messages.ReferenceExpired()); err != nil {
			h.logger.Warn("ошибка отправки сообщения", zap.Error(err))
		}
	}

	if h.opts.DefaultReference == "" {
		return "", ErrNoReference
	}
	if _, err := os.Stat(h.opts.DefaultReference); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoReference, err)
	}
	return h.opts.DefaultReference, nil
}

// download скачивает файл в каталог артефактов с ограничением размера
func (h *Handler) download(ctx context.Context, url, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("неудачный статус скачивания: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(h.opts.Dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории: %w", err)
	}

	out, err := os.CreateTemp(h.opts.Dir, "ref-*"+ext)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла: %w", err)
	}
	h.cleanup.ScheduleKind(out.Name(), models.ArtifactUpload, h.opts.TTL)

	written, err := io.Copy(out, io.LimitReader(resp.Body, MaxFileSize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	if written > MaxFileSize {
		return "", ErrFileTooLarge
	}

	return out.Name(), nil
}

func (h *Handler) sendAudio(chatID int64, path, caption string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Error("ошибка чтения аудио", zap.String("path", path), zap.Error(err))
		return h.sendErrorMessage(chatID, "Аудио больше недоступно")
	}

	audioMsg := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{
		Name:  filepath.Base(path),
		Bytes: data,
	})
	audioMsg.Caption = caption

	if _, err := h.bot.Send(audioMsg); err != nil {
		h.logger.Error("ошибка отправки аудио", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("ошибка отправки сообщения",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return err
	}
	return nil
}

// sendErrorMessage отправляет сообщение об ошибке
func (h *Handler) sendErrorMessage(chatID int64, text string) error {
	return h.sendMessage(chatID, h.messages.Error(text))
}

// audioAttachment возвращает идентификатор, расширение и размер аудио во вложении
func audioAttachment(message *tgbotapi.Message) (string, string, int) {
	switch {
	case message.Voice != nil:
		return message.Voice.FileID, ".ogg", message.Voice.FileSize
	case message.Audio != nil:
		return message.Audio.FileID, extOr(message.Audio.FileName, ".mp3"), message.Audio.FileSize
	case message.Document != nil:
		return message.Document.FileID, extOr(message.Document.FileName, ".bin"), message.Document.FileSize
	}
	return "", "", 0
}

func isAudioDocument(doc *tgbotapi.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "audio/")
}

func extOr(name, def string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" || len(ext) > 6 || strings.Contains(ext, "*") {
		return def
	}
	return ext
}

// sanitizeText очищает текст от потенциально опасного содержимого.
// Текст длиннее MaxTextBytes не обрезается, а отклоняется.
func sanitizeText(text string) (string, error) {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}

	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	if len(text) > MaxTextBytes {
		return "", fmt.Errorf("%w: %d байт", ErrTextTooLong, len(text))
	}
	return text, nil
}
