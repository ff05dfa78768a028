package vc

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNoDevice возвращается, если запрошенное устройство недоступно
var ErrNoDevice = errors.New("запрошенное устройство недоступно")

// Device вычислительное устройство для инференса
type Device string

const (
	DeviceCUDA Device = "cuda"
	DeviceMPS  Device = "mps"
	DeviceCPU  Device = "cpu"
)

// Precision точность вычислений модели
type Precision string

const (
	PrecisionFloat16 Precision = "float16"
	PrecisionFloat32 Precision = "float32"
)

// SelectDevice выбирает устройство один раз при старте процесса.
// В режиме auto приоритет такой: cuda, затем cpu. MPS пропускается,
// модель на нем работает нестабильно из-за нехватки памяти.
// Явно заданное устройство должно присутствовать в списке доступных.
func SelectDevice(available []Device, preference string) (Device, error) {
	switch preference {
	case "", "auto":
		if slices.Contains(available, DeviceCUDA) {
			return DeviceCUDA, nil
		}
		return DeviceCPU, nil
	default:
		d := Device(preference)
		if d == DeviceCPU || slices.Contains(available, d) {
			return d, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNoDevice, preference)
	}
}

// PrecisionFor возвращает точность для устройства: float16 только на cuda
func PrecisionFor(d Device) Precision {
	if d == DeviceCUDA {
		return PrecisionFloat16
	}
	return PrecisionFloat32
}
