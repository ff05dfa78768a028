package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"tts-vc/internal/config"
)

const removeTimeout = 30 * time.Second

// objectStore часть minio.Client, которую использует публикатор
type objectStore interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Publisher загружает сгенерированные файлы в S3-совместимое хранилище.
// Опубликованные копии живут столько же, сколько локальный файл: Unpublish
// вызывается реестром очистки при удалении файла.
type S3Publisher struct {
	client objectStore
	bucket string
	host   string
	logger *zap.Logger

	mu        sync.Mutex
	published map[string][]string // локальный путь -> ключи объектов
}

// NewS3Publisher создает клиент и проверяет, что бакет существует
func NewS3Publisher(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации S3 клиента: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки бакета: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("бакет %q не существует", cfg.Bucket)
	}

	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}

	logger.Info("S3 хранилище подключено",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket))

	return newS3Publisher(client, cfg.Bucket, fmt.Sprintf("%s://%s", scheme, cfg.Endpoint), logger), nil
}

func newS3Publisher(client objectStore, bucket, host string, logger *zap.Logger) *S3Publisher {
	return &S3Publisher{
		client:    client,
		bucket:    bucket,
		host:      host,
		logger:    logger,
		published: make(map[string][]string),
	}
}

// Publish загружает файл и возвращает публичный URL
func (p *S3Publisher) Publish(ctx context.Context, filePath, contentType string) (string, error) {
	key := ObjectKey(uuid.New(), filePath)

	_, err := p.client.FPutObject(ctx, p.bucket, key, filePath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"uploaded-at": time.Now().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки в S3: %w", err)
	}

	p.mu.Lock()
	p.published[filePath] = append(p.published[filePath], key)
	p.mu.Unlock()

	publicURL := PublicURL(p.host, p.bucket, key)
	p.logger.Debug("файл опубликован", zap.String("key", key), zap.String("url", publicURL))

	return publicURL, nil
}

// Unpublish удаляет объекты, опубликованные из filePath. Ошибки только логируются.
func (p *S3Publisher) Unpublish(filePath string) {
	p.mu.Lock()
	keys := p.published[filePath]
	delete(p.published, filePath)
	p.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	for _, key := range keys {
		if err := p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			p.logger.Warn("не удалось удалить объект из S3",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		p.logger.Debug("объект удален из S3", zap.String("key", key))
	}
}

// ObjectKey строит ключ объекта вида "{id}/{имя файла}"
func ObjectKey(id uuid.UUID, filePath string) string {
	return path.Join(id.String(), filepath.Base(filePath))
}

// PublicURL строит публичную ссылку на объект
func PublicURL(host, bucket, key string) string {
	segments := strings.Split(filepath.ToSlash(key), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s", host, bucket, strings.Join(segments, "/"))
}
