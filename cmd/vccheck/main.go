package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tts-vc/internal/cleanup"
	"tts-vc/internal/vc"
	"tts-vc/pkg/models"

	"go.uber.org/zap"
)

// Проверка клонирования голоса без синтеза речи: переносит тембр эталона на готовую запись
func main() {
	var (
		source  = flag.String("audio", "resources/samples/LJ025-0076.wav", "Исходная запись")
		target  = flag.String("target", "resources/ref_speech.wav", "Эталон голоса")
		baseURL = flag.String("url", envOr("VC_BASE_URL", "http://localhost:8010"), "Адрес сервиса клонирования")
		device  = flag.String("device", envOr("VC_DEVICE", "auto"), "Устройство: auto, cuda, cpu, mps")
		outDir  = flag.String("out", filepath.Join(os.TempDir(), "tts-vc"), "Каталог для результата")
		timeout = flag.Duration("timeout", 10*time.Minute, "Таймаут запросов к сервису")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := vc.NewClient(*baseURL, *timeout, logger)
	if err := client.HealthCheck(ctx); err != nil {
		logger.Fatal("Сервис клонирования недоступен", zap.Error(err))
	}

	model, err := vc.Load(ctx, client, *device, logger)
	if err != nil {
		logger.Fatal("Ошибка загрузки модели", zap.Error(err))
	}

	registry := cleanup.NewRegistry(logger)
	cloner := vc.NewCloner(model, registry, *outDir, time.Hour, true, logger, nil)

	result, err := cloner.CloneVoice(ctx, models.CloningRequest{
		SourcePath:      *source,
		TargetVoicePath: *target,
	})
	if err != nil {
		logger.Fatal("Ошибка клонирования голоса", zap.Error(err))
	}

	// Результат проверки остается на диске
	registry.Cancel(result.Path)

	fmt.Printf("Cloned audio saved at: %s\n", result.Path)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
