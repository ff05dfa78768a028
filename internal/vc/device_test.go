package vc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectDevice(t *testing.T) {
	tests := []struct {
		name       string
		available  []Device
		preference string
		expected   Device
		wantErr    bool
	}{
		{"cuda в приоритете", []Device{DeviceCPU, DeviceCUDA}, "auto", DeviceCUDA, false},
		{"mps пропускается", []Device{DeviceMPS, DeviceCPU}, "auto", DeviceCPU, false},
		{"только mps", []Device{DeviceMPS}, "", DeviceCPU, false},
		{"пустой список", nil, "auto", DeviceCPU, false},
		{"явный cpu", []Device{DeviceCUDA}, "cpu", DeviceCPU, false},
		{"явный mps", []Device{DeviceMPS, DeviceCPU}, "mps", DeviceMPS, false},
		{"cuda недоступна", []Device{DeviceCPU}, "cuda", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectDevice(tt.available, tt.preference)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoDevice)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPrecisionFor(t *testing.T) {
	assert.Equal(t, PrecisionFloat16, PrecisionFor(DeviceCUDA))
	assert.Equal(t, PrecisionFloat32, PrecisionFor(DeviceCPU))
	assert.Equal(t, PrecisionFloat32, PrecisionFor(DeviceMPS))
}
