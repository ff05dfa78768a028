package vc

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Waveform волновая форма, полученная от модели (отсчеты чередуются по каналам)
type Waveform struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Model предоставляет единственную операцию модели: перенос тембра
type Model interface {
	Generate(ctx context.Context, sourcePath, targetVoicePath string) (*Waveform, error)
	Device() Device
}

// Backend сервис, в котором выполняется инференс
type Backend interface {
	Devices(ctx context.Context) ([]Device, error)
	LoadModel(ctx context.Context, device Device, precision Precision) (*ModelInfo, error)
	Convert(ctx context.Context, sourcePath, targetPath string) (*Waveform, error)
}

// RemoteModel модель, загруженная в сервис инференса
type RemoteModel struct {
	backend Backend
	info    ModelInfo
}

// Load выбирает устройство и загружает модель. Вызывается один раз при старте;
// ошибка означает, что веса модели недоступны.
func Load(ctx context.Context, backend Backend, preference string, logger *zap.Logger) (*RemoteModel, error) {
	available, err := backend.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка устройств: %w", err)
	}

	device, err := SelectDevice(available, preference)
	if err != nil {
		return nil, err
	}
	precision := PrecisionFor(device)

	info, err := backend.LoadModel(ctx, device, precision)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки модели: %w", err)
	}

	logger.Info("модель клонирования голоса загружена",
		zap.String("model", info.Model),
		zap.String("device", string(info.Device)),
		zap.String("precision", string(info.Precision)),
		zap.Int("sample_rate", info.SampleRate),
		zap.Any("available_devices", available))

	return &RemoteModel{backend: backend, info: *info}, nil
}

// Generate выполняет перенос тембра
func (m *RemoteModel) Generate(ctx context.Context, sourcePath, targetVoicePath string) (*Waveform, error) {
	w, err := m.backend.Convert(ctx, sourcePath, targetVoicePath)
	if err != nil {
		return nil, err
	}
	if w.SampleRate == 0 {
		w.SampleRate = m.info.SampleRate
	}
	return w, nil
}

// Device возвращает устройство, на котором загружена модель
func (m *RemoteModel) Device() Device {
	return m.info.Device
}

// Info возвращает сведения о модели
func (m *RemoteModel) Info() ModelInfo {
	return m.info
}
