package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// Счетчики
	synthesisRequests *prometheus.CounterVec
	cloningRequests   *prometheus.CounterVec
	generations       *prometheus.CounterVec
	cleanupDeletions  *prometheus.CounterVec

	// Гистограммы
	synthesisDuration prometheus.Histogram
	cloningDuration   *prometheus.HistogramVec

	// Gauge метрики
	pendingFiles prometheus.Gauge

	// Мьютекс для thread-safety
	mu sync.RWMutex
}

// New создает метрики и регистрирует их в registry
func New(logger *zap.Logger, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		logger:   logger,
		registry: registry,

		synthesisRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthesis_requests_total",
				Help: "Общее количество запросов к облачному TTS",
			},
			[]string{"status"}, // success, failed
		),

		cloningRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloning_requests_total",
				Help: "Общее количество запросов к модели клонирования",
			},
			[]string{"status", "device"},
		),

		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generations_total",
				Help: "Запросы пользователей на синтез и клонирование",
			},
			[]string{"status"}, // success, failed, empty
		),

		cleanupDeletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanup_deletions_total",
				Help: "Результаты удаления временных файлов",
			},
			[]string{"result"}, // removed, missing, failed, cancelled
		),

		synthesisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "synthesis_duration_seconds",
				Help:    "Время синтеза речи в секундах",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Инференс на CPU занимает десятки секунд
		cloningDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cloning_duration_seconds",
				Help:    "Время клонирования голоса в секундах",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"device"},
		),

		pendingFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cleanup_pending_files",
				Help: "Количество файлов, ожидающих удаления",
			},
		),
	}

	registry.MustRegister(
		m.synthesisRequests,
		m.cloningRequests,
		m.generations,
		m.cleanupDeletions,
		m.synthesisDuration,
		m.cloningDuration,
		m.pendingFiles,
	)

	return m
}

// IncrementCounter увеличивает счетчик
func (m *Metrics) IncrementCounter(name string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counter *prometheus.CounterVec

	switch name {
	case "synthesis_requests_total":
		counter = m.synthesisRequests
	case "cloning_requests_total":
		counter = m.cloningRequests
	case "generations_total":
		counter = m.generations
	case "cleanup_deletions_total":
		counter = m.cleanupDeletions
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	counter.WithLabelValues(labels...).Inc()
	m.logger.Debug("метрика увеличена", zap.String("metric", name), zap.Strings("labels", labels))
}

// SetGauge устанавливает значение gauge метрики
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "cleanup_pending_files":
		m.pendingFiles.Set(value)
	default:
		m.logger.Error("неизвестная gauge метрика", zap.String("name", name))
		return
	}
}

// ObserveHistogram добавляет наблюдение в гистограмму
func (m *Metrics) ObserveHistogram(name string, value float64, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "synthesis_duration_seconds":
		m.synthesisDuration.Observe(value)
	case "cloning_duration_seconds":
		m.cloningDuration.WithLabelValues(labels...).Observe(value)
	default:
		m.logger.Error("неизвестная гистограмма", zap.String("name", name))
		return
	}

	m.logger.Debug("гистограмма обновлена", zap.String("metric", name), zap.Float64("value", value))
}

// RecordSynthesis записывает вызов облачного TTS
func (m *Metrics) RecordSynthesis(success bool, seconds float64) {
	m.IncrementCounter("synthesis_requests_total", status(success))
	m.ObserveHistogram("synthesis_duration_seconds", seconds)
}

// RecordCloning записывает вызов модели клонирования
func (m *Metrics) RecordCloning(device string, success bool, seconds float64) {
	m.IncrementCounter("cloning_requests_total", status(success), device)
	m.ObserveHistogram("cloning_duration_seconds", seconds, device)
}

// RecordGeneration записывает итог пользовательского запроса: success, failed или empty
func (m *Metrics) RecordGeneration(result string) {
	m.IncrementCounter("generations_total", result)
}

// RecordCleanup записывает результат удаления временного файла
func (m *Metrics) RecordCleanup(result string) {
	m.IncrementCounter("cleanup_deletions_total", result)
}

// SetPendingFiles обновляет количество файлов, ожидающих удаления
func (m *Metrics) SetPendingFiles(count int) {
	m.SetGauge("cleanup_pending_files", float64(count))
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
