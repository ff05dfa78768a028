package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tts-vc/internal/tts"
)

var (
	// ErrMissingProjectID возвращается, если не задан PROJECT_ID
	ErrMissingProjectID = errors.New("PROJECT_ID не установлен")
	// ErrMissingLocation возвращается, если не задан TTS_LOCATION
	ErrMissingLocation = errors.New("TTS_LOCATION не установлен")
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	TTS       TTSConfig
	VC        VCConfig
	Artifacts ArtifactsConfig
	Telegram  TelegramConfig
	Database  DatabaseConfig
	S3        S3Config
	App       AppConfig
}

// TTSConfig содержит настройки Google Cloud Text-to-Speech
type TTSConfig struct {
	ProjectID       string
	Location        string
	Timeout         time.Duration // на один вызов API, 0 отключает ограничение
	DefaultVoice    string
	DefaultLanguage string
}

// VCConfig содержит настройки сервиса клонирования голоса
type VCConfig struct {
	BaseURL          string
	Device           string // auto, cuda, cpu, mps
	Serialize        bool
	Timeout          time.Duration // 0 означает без ограничения
	DefaultReference string
}

// ArtifactsConfig описывает хранение временных аудиофайлов
type ArtifactsConfig struct {
	Dir           string
	TTL           time.Duration
	SweepInterval time.Duration
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	BotToken string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// S3Config содержит настройки публикации артефактов в S3-совместимое хранилище
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

type AppConfig struct {
	Env                string
	LogLevel           string
	Port               int
	RateLimitPerMinute int
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Google TTS
	cfg.TTS.ProjectID = os.Getenv("PROJECT_ID")
	cfg.TTS.Location = os.Getenv("TTS_LOCATION")
	cfg.TTS.Timeout = getEnvSecondsDefault("TTS_TIMEOUT_SECONDS", 60)
	cfg.TTS.DefaultVoice = getEnvDefault("TTS_DEFAULT_VOICE", tts.DefaultVoice)
	cfg.TTS.DefaultLanguage = getEnvDefault("TTS_DEFAULT_LANGUAGE", tts.DefaultLanguage)

	// Voice cloning
	cfg.VC.BaseURL = getEnvDefault("VC_BASE_URL", "http://localhost:8010")
	cfg.VC.Device = getEnvDefault("VC_DEVICE", "auto")
	cfg.VC.Serialize = getEnvBoolDefault("VC_SERIALIZE", true)
	cfg.VC.Timeout = getEnvSecondsDefault("VC_TIMEOUT_SECONDS", 600)
	cfg.VC.DefaultReference = getEnvDefault("VC_DEFAULT_REFERENCE", "resources/samples/LJ025-0076.wav")

	// Artifacts
	cfg.Artifacts.Dir = getEnvDefault("ARTIFACT_DIR", filepath.Join(os.TempDir(), "tts-vc"))
	cfg.Artifacts.TTL = getEnvSecondsDefault("ARTIFACT_TTL_SECONDS", 1800)
	cfg.Artifacts.SweepInterval = getEnvSecondsDefault("SWEEP_INTERVAL_SECONDS", 300)

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	// Database
	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")

	// S3
	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.S3.Bucket = os.Getenv("S3_BUCKET")
	cfg.S3.Region = os.Getenv("S3_REGION")
	cfg.S3.Secure = getEnvBoolDefault("S3_SECURE", true)

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 7860)
	cfg.App.RateLimitPerMinute = getEnvIntDefault("RATE_LIMIT_PER_MINUTE", 30)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvSecondsDefault читает целое число секунд и возвращает time.Duration
func getEnvSecondsDefault(key string, def int) time.Duration {
	return time.Duration(getEnvIntDefault(key, def)) * time.Second
}

func getEnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.TTS.ProjectID == "" {
		return ErrMissingProjectID
	}
	if config.TTS.Location == "" {
		return ErrMissingLocation
	}
	switch config.VC.Device {
	case "auto", "cuda", "cpu", "mps":
	default:
		return fmt.Errorf("неизвестное значение VC_DEVICE: %q", config.VC.Device)
	}
	if config.TTS.Timeout < 0 || config.VC.Timeout < 0 {
		return fmt.Errorf("таймауты не могут быть отрицательными")
	}
	if config.Artifacts.TTL <= 0 {
		return fmt.Errorf("ARTIFACT_TTL_SECONDS должен быть положительным")
	}
	if config.Artifacts.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS должен быть положительным")
	}
	if config.Database.Enabled() {
		if config.Database.User == "" {
			return fmt.Errorf("DB_USER не установлен")
		}
		if config.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD не установлен")
		}
	}
	if config.S3.Enabled() && (config.S3.AccessKey == "" || config.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY и S3_SECRET_KEY обязательны при заданном S3_ENDPOINT")
	}

	return nil
}

// Endpoint возвращает хост API с учетом региона
func (c *TTSConfig) Endpoint() string {
	if c.Location == "global" {
		return "texttospeech.googleapis.com"
	}
	return c.Location + "-texttospeech.googleapis.com"
}

// Enabled сообщает, настроен ли журнал артефактов в Postgres
func (c *DatabaseConfig) Enabled() bool {
	return c.Name != ""
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetURL возвращает строку подключения в формате URL (для database/sql)
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Enabled сообщает, настроена ли публикация в S3
func (c *S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
