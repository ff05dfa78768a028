package vc

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// writeWAV кодирует волновую форму в 16-битный PCM WAV
func writeWAV(w io.WriteSeeker, wave *Waveform) error {
	if wave.SampleRate <= 0 {
		return fmt.Errorf("некорректная частота дискретизации: %d", wave.SampleRate)
	}
	channels := wave.Channels
	if channels <= 0 {
		channels = 1
	}

	data := make([]int, len(wave.Samples))
	for i, s := range wave.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	encoder := wav.NewEncoder(w, wave.SampleRate, wavBitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  wave.SampleRate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("ошибка записи WAV: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("ошибка завершения WAV: %w", err)
	}
	return nil
}
