package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tts-vc/pkg/models"
)

// DefaultTTL время жизни сгенерированных файлов
const DefaultTTL = 30 * time.Minute

const ledgerTimeout = 5 * time.Second

// Result итог попытки удаления файла
type Result string

const (
	ResultRemoved   Result = "removed"
	ResultMissing   Result = "missing"
	ResultFailed    Result = "failed"
	ResultCancelled Result = "cancelled"
)

// Ledger хранит сведения о файлах вне памяти процесса
type Ledger interface {
	Record(ctx context.Context, artifact *models.Artifact) error
	MarkDeleted(ctx context.Context, path string) error
}

// Recorder принимает метрики удаления
type Recorder interface {
	RecordCleanup(result string)
	SetPendingFiles(count int)
}

// Registry удаляет временные файлы по истечении срока хранения.
// Каждый вызов Schedule заводит отдельный таймер; повторное планирование
// одного пути допустимо, вторая попытка удаления ничего не делает.
type Registry struct {
	logger  *zap.Logger
	ledger  Ledger
	metrics Recorder
	hooks   []func(path string)

	mu      sync.Mutex
	entries map[string][]*entry
	stopped bool
}

type entry struct {
	timer *time.Timer
}

// Option настраивает Registry
type Option func(*Registry)

// WithLedger подключает журнал артефактов
func WithLedger(l Ledger) Option {
	return func(r *Registry) {
		r.ledger = l
	}
}

// WithMetrics подключает метрики
func WithMetrics(m Recorder) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithRemoveHook добавляет обработчик, вызываемый после удаления файла
// (или если файла уже нет). Используется для удаления опубликованных копий.
func WithRemoveHook(fn func(path string)) Option {
	return func(r *Registry) {
		r.hooks = append(r.hooks, fn)
	}
}

// NewRegistry создает реестр временных файлов
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:  logger,
		entries: make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule планирует удаление файла через ttl и сразу возвращает управление
func (r *Registry) Schedule(path string, ttl time.Duration) {
	r.ScheduleKind(path, "", ttl)
}

// ScheduleKind то же, что Schedule, но с указанием типа артефакта для журнала
func (r *Registry) ScheduleKind(path string, kind models.ArtifactKind, ttl time.Duration) {
	if path == "" {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.logger.Warn("реестр остановлен, файл не будет удален по таймеру", zap.String("path", path))
		return
	}

	e := &entry{}
	e.timer = time.AfterFunc(ttl, func() {
		r.fire(path, e)
	})
	r.entries[path] = append(r.entries[path], e)
	r.setPending(r.pendingLocked())
	r.mu.Unlock()

	r.logger.Debug("🗑️ удаление файла запланировано",
		zap.String("path", path),
		zap.Duration("ttl", ttl))

	if r.ledger != nil {
		now := time.Now()
		artifact := &models.Artifact{
			ID:        uuid.New(),
			Path:      path,
			Kind:      kind,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
			defer cancel()
			if err := r.ledger.Record(ctx, artifact); err != nil {
				r.logger.Warn("не удалось записать артефакт в журнал",
					zap.String("path", path),
					zap.Error(err))
			}
		}()
	}
}

// Cancel отменяет все запланированные удаления пути и возвращает их количество
func (r *Registry) Cancel(path string) int {
	r.mu.Lock()
	entries := r.entries[path]
	delete(r.entries, path)
	r.setPending(r.pendingLocked())
	r.mu.Unlock()

	cancelled := 0
	for _, e := range entries {
		if e.timer.Stop() {
			cancelled++
			r.record(ResultCancelled)
		}
	}

	return cancelled
}

// Pending возвращает количество еще не сработавших таймеров
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingLocked()
}

// Stop останавливает все таймеры. Оставшиеся файлы подберет периодическая очистка.
func (r *Registry) Stop() int {
	r.mu.Lock()
	r.stopped = true
	entries := r.entries
	r.entries = make(map[string][]*entry)
	r.setPending(0)
	r.mu.Unlock()

	left := 0
	for _, list := range entries {
		for _, e := range list {
			if e.timer.Stop() {
				left++
			}
		}
	}

	r.logger.Info("реестр временных файлов остановлен", zap.Int("pending_left", left))
	return left
}

// Remove удаляет файл немедленно. Ошибки логируются и не возвращаются.
func (r *Registry) Remove(path string) Result {
	result, err := RemoveFile(path)

	switch result {
	case ResultRemoved:
		r.logger.Info("временный файл удален", zap.String("path", path))
	case ResultMissing:
		r.logger.Debug("файл уже отсутствует", zap.String("path", path))
	case ResultFailed:
		r.logger.Error("ошибка удаления временного файла",
			zap.String("path", path),
			zap.Error(err))
	}
	r.record(result)

	if result == ResultFailed {
		return result
	}

	for _, hook := range r.hooks {
		hook(path)
	}

	if r.ledger != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
			defer cancel()
			if err := r.ledger.MarkDeleted(ctx, path); err != nil {
				r.logger.Warn("не удалось отметить удаление в журнале",
					zap.String("path", path),
					zap.Error(err))
			}
		}()
	}

	return result
}

func (r *Registry) fire(path string, fired *entry) {
	r.mu.Lock()
	list := r.entries[path]
	for i, e := range list {
		if e == fired {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.entries, path)
	} else {
		r.entries[path] = list
	}
	r.setPending(r.pendingLocked())
	r.mu.Unlock()

	r.Remove(path)
}

func (r *Registry) pendingLocked() int {
	n := 0
	for _, list := range r.entries {
		n += len(list)
	}
	return n
}

func (r *Registry) record(result Result) {
	if r.metrics != nil {
		r.metrics.RecordCleanup(string(result))
	}
}

// setPending вызывается под r.mu, чтобы значение гаужа не устаревало
func (r *Registry) setPending(n int) {
	if r.metrics != nil {
		r.metrics.SetPendingFiles(n)
	}
}

// RemoveFile удаляет файл, если он существует. Отсутствие файла не считается ошибкой.
func RemoveFile(path string) (Result, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ResultMissing, nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ResultMissing, nil
		}
		return ResultFailed, err
	}
	return ResultRemoved, nil
}
