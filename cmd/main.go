package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tts-vc/internal/audio"
	"tts-vc/internal/bot"
	"tts-vc/internal/cleanup"
	"tts-vc/internal/config"
	"tts-vc/internal/metrics"
	"tts-vc/internal/migrations"
	"tts-vc/internal/scheduler"
	"tts-vc/internal/server"
	"tts-vc/internal/storage"
	"tts-vc/internal/store"
	"tts-vc/internal/studio"
	"tts-vc/internal/tts"
	"tts-vc/internal/vc"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения TTS + VC",
		zap.String("env", cfg.App.Env),
		zap.String("tts_endpoint", cfg.TTS.Endpoint()),
		zap.String("vc_url", cfg.VC.BaseURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация метрик
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsSystem := metrics.New(logger, registry)
	metricsHandler := metrics.NewHandler(metricsSystem, logger)

	// Журнал артефактов в PostgreSQL (необязательный)
	cleanupOpts := []cleanup.Option{cleanup.WithMetrics(metricsSystem)}
	var db store.Store
	if cfg.Database.Enabled() {
		db, err = store.NewStore(cfg, logger)
		if err != nil {
			logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
		}
		defer db.Close()

		if err := migrations.RunMigrations(cfg, logger); err != nil {
			logger.Fatal("ошибка применения миграций", zap.Error(err))
		}
		cleanupOpts = append(cleanupOpts, cleanup.WithLedger(db.Artifact()))
	} else {
		logger.Info("база данных не настроена, журнал артефактов отключен")
	}

	// Публикация в S3 (необязательная). Копии удаляются вместе с локальными файлами.
	var publisher server.Publisher
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Publisher(ctx, cfg.S3, logger)
		if err != nil {
			logger.Fatal("ошибка инициализации S3", zap.Error(err))
		}
		publisher = s3
		cleanupOpts = append(cleanupOpts, cleanup.WithRemoveHook(s3.Unpublish))
	}

	cleanupRegistry := cleanup.NewRegistry(logger, cleanupOpts...)

	// Инициализация Google Cloud TTS
	ttsService, err := tts.NewDefaultGoogleService(ctx, logger, cfg.TTS.Endpoint(), cfg.TTS.ProjectID, cfg.TTS.Timeout)
	if err != nil {
		logger.Fatal("ошибка инициализации Google TTS", zap.Error(err))
	}
	defer ttsService.Close()
	generator := tts.NewGenerator(ttsService, cleanupRegistry, cfg.Artifacts.Dir, cfg.Artifacts.TTL, logger, metricsSystem)

	// Загрузка модели клонирования голоса
	vcClient := vc.NewClient(cfg.VC.BaseURL, cfg.VC.Timeout, logger)
	loadCtx, loadCancel := ctx, context.CancelFunc(func() {})
	if cfg.VC.Timeout > 0 {
		loadCtx, loadCancel = context.WithTimeout(ctx, cfg.VC.Timeout)
	}
	model, err := vc.Load(loadCtx, vcClient, cfg.VC.Device, logger)
	loadCancel()
	if err != nil {
		logger.Fatal("ошибка загрузки модели клонирования голоса", zap.Error(err))
	}
	cloner := vc.NewCloner(model, cleanupRegistry, cfg.Artifacts.Dir, cfg.Artifacts.TTL, cfg.VC.Serialize, logger, metricsSystem)

	studioService := studio.NewService(generator, cloner, logger, metricsSystem)

	httpServer, err := server.New(studioService, generator, cleanupRegistry, publisher, metricsHandler, server.Options{
		Dir:                cfg.Artifacts.Dir,
		TTL:                cfg.Artifacts.TTL,
		DefaultReference:   cfg.VC.DefaultReference,
		DefaultVoice:       cfg.TTS.DefaultVoice,
		DefaultLanguage:    cfg.TTS.DefaultLanguage,
		RateLimitPerMinute: cfg.App.RateLimitPerMinute,
	}, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации HTTP сервера", zap.Error(err))
	}

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger)
	taskScheduler.AddJob(scheduler.NewArtifactSweepJob(cfg.Artifacts.Dir, cfg.Artifacts.TTL, cleanupRegistry, false, logger))
	if db != nil {
		taskScheduler.AddJob(scheduler.NewLedgerSweepJob(db.Artifact(), logger))
	}

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			logger.Error("ошибка HTTP сервера", zap.Error(err))
			cancel()
		}
	}()

	go taskScheduler.Start(ctx, cfg.Artifacts.SweepInterval)

	// Telegram бот (необязательный)
	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
		}
		logger.Info("Telegram бот инициализирован", zap.String("username", botAPI.Self.UserName))

		converter := audio.NewConverter(logger)
		if err := converter.Available(); err != nil {
			logger.Warn("⚠️ ffmpeg недоступен, голосовые эталоны в боте работать не будут", zap.Error(err))
		}

		handler := bot.NewHandler(botAPI, studioService, converter, cleanupRegistry, bot.Options{
			Token:              cfg.Telegram.BotToken,
			Dir:                cfg.Artifacts.Dir,
			TTL:                cfg.Artifacts.TTL,
			DefaultReference:   cfg.VC.DefaultReference,
			DefaultVoice:       cfg.TTS.DefaultVoice,
			DefaultLanguage:    cfg.TTS.DefaultLanguage,
			RateLimitPerMinute: cfg.App.RateLimitPerMinute,
		}, logger)

		go handleUpdates(ctx, botAPI, handler, logger)
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN не задан, бот отключен")
	}

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)))

	// Ожидание сигнала завершения
	select {
	case <-sigChan:
		logger.Info("получен сигнал завершения, начинаем graceful shutdown")
	case <-ctx.Done():
	}
	cancel()

	if botAPI != nil {
		botAPI.StopReceivingUpdates()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка при остановке HTTP сервера", zap.Error(err))
	}

	// Незавершенные таймеры удаления снимаются; оставшиеся файлы уберет
	// очистка каталога при следующем запуске
	pending := cleanupRegistry.Stop()
	logger.Info("приложение завершено", zap.Int("pending_files", pending))
}

// initLogger инициализирует логгер
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logConfig := zap.NewDevelopmentConfig()
	if cfg.App.IsProduction() {
		logConfig = zap.NewProductionConfig()
	}
	logConfig.Level = cfg.App.GetLogLevel()
	logConfig.OutputPaths = []string{"stdout", "logs/app.log"}
	logConfig.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return logConfig.Build()
}

// handleUpdates обрабатывает обновления от Telegram
func handleUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger *zap.Logger) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			// Генерация занимает время, каждое обновление обрабатывается в своей горутине
			go func(update tgbotapi.Update) {
				if err := handler.HandleUpdate(ctx, update); err != nil {
					logger.Error("ошибка обработки обновления",
						zap.Int64("chat_id", update.Message.Chat.ID),
						zap.Error(err))
				}
			}(update)

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			return
		}
	}
}
