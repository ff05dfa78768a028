package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"tts-vc/internal/metrics"
	"tts-vc/pkg/models"
)

//go:embed templates/index.html
var templateFS embed.FS

const (
	// MaxUploadSize ограничение на размер multipart формы
	MaxUploadSize = 32 << 20
	// ReadHeaderTimeout защита от медленных клиентов
	ReadHeaderTimeout = 10 * time.Second
)

// Pipeline выполняет синтез и клонирование
type Pipeline interface {
	SynthesizeSpeech(ctx context.Context, in models.GenerationInput) (*models.GenerationResult, error)
}

// VoiceLister возвращает голоса облачного TTS
type VoiceLister interface {
	ListVoices(ctx context.Context, languageCode string) ([]models.Voice, error)
}

// CleanupScheduler планирует удаление загруженных файлов
type CleanupScheduler interface {
	ScheduleKind(path string, kind models.ArtifactKind, ttl time.Duration)
}

// Publisher публикует готовые файлы во внешнее хранилище
type Publisher interface {
	Publish(ctx context.Context, path, contentType string) (string, error)
}

// Options параметры HTTP сервера
type Options struct {
	Dir                string
	TTL                time.Duration
	DefaultReference   string
	DefaultVoice       string
	DefaultLanguage    string
	RateLimitPerMinute int
}

// Server веб-интерфейс и HTTP API студии
type Server struct {
	pipeline  Pipeline
	voices    VoiceLister
	cleanup   CleanupScheduler
	publisher Publisher
	metrics   *metrics.Handler
	opts      Options
	page      *template.Template
	logger    *zap.Logger
	http      *http.Server
}

// New создает сервер. publisher и metricsHandler могут быть nil.
func New(
	pipeline Pipeline,
	voices VoiceLister,
	cleanup CleanupScheduler,
	publisher Publisher,
	metricsHandler *metrics.Handler,
	opts Options,
	logger *zap.Logger,
) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблона: %w", err)
	}

	return &Server{
		pipeline:  pipeline,
		voices:    voices,
		cleanup:   cleanup,
		publisher: publisher,
		metrics:   metricsHandler,
		opts:      opts,
		page:      page,
		logger:    logger,
	}, nil
}

// Routes собирает роутер со всеми маршрутами
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.logRequests,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/files/{name}", s.handleFile)

	r.Route("/api", func(api chi.Router) {
		if s.opts.RateLimitPerMinute > 0 {
			api.Use(httprate.LimitByIP(s.opts.RateLimitPerMinute, time.Minute))
		}
		api.Post("/synthesize", s.handleSynthesize)
		api.Get("/voices", s.handleVoices)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.MetricsHandler())
		r.Get("/health", s.metrics.HealthHandler)
	}

	return r
}

// Start запускает HTTP сервер и блокируется до его остановки
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	s.logger.Info("🚀 HTTP сервер запущен", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP запрос",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
