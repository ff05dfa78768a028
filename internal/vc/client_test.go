package vc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pcmBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func writeAudioFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF-fixture-"+name), 0o600))
	return path
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8010/", time.Minute, zap.NewNop())

	if client == nil {
		t.Fatal("клиент не должен быть nil")
	}
	assert.Equal(t, "http://localhost:8010", client.apiURL)
	assert.Equal(t, time.Minute, client.httpClient.Timeout)
}

func TestClient_DevicesAndLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/devices":
			w.Write([]byte(`{"devices":["mps","cpu"]}`))
		case "/v1/model/load":
			var req loadRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, DeviceCPU, req.Device)
			assert.Equal(t, PrecisionFloat32, req.Precision)
			w.Write([]byte(`{"model":"chatterbox-vc","sample_rate":24000}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second*5, zap.NewNop())

	model, err := Load(context.Background(), client, "auto", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, DeviceCPU, model.Device())
	assert.Equal(t, PrecisionFloat32, model.Info().Precision)
	assert.Equal(t, 24000, model.Info().SampleRate)
	assert.Equal(t, "chatterbox-vc", model.Info().Model)
}

func TestClient_LoadFailureIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/devices" {
			w.Write([]byte(`{"devices":["cuda","cpu"]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"weights not found"}`))
	}))
	defer server.Close()

	_, err := Load(context.Background(), NewClient(server.URL, time.Second*5, zap.NewNop()), "auto", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights not found")
}

func TestClient_ConvertPCM(t *testing.T) {
	dir := t.TempDir()
	source := writeAudioFixture(t, dir, "tts-source.mp3")
	target := writeAudioFixture(t, dir, "reference.wav")
	samples := []float32{0, 0.5, -0.5, 1}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/convert", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		audioFile, header, err := r.FormFile("audio")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(audioFile)
			assert.Equal(t, "RIFF-fixture-tts-source.mp3", string(data))
			assert.Equal(t, "tts-source.mp3", header.Filename)
		}
		_, _, err = r.FormFile("target_voice")
		assert.NoError(t, err)

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Sample-Rate", "24000")
		w.Write(pcmBytes(samples))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second*5, zap.NewNop())
	wave, err := client.Convert(context.Background(), source, target)
	require.NoError(t, err)

	assert.Equal(t, 24000, wave.SampleRate)
	assert.Equal(t, 1, wave.Channels)
	assert.Equal(t, samples, wave.Samples)
}

func TestClient_ConvertWAV(t *testing.T) {
	dir := t.TempDir()
	source := writeAudioFixture(t, dir, "a.mp3")
	target := writeAudioFixture(t, dir, "b.wav")

	wavPath := filepath.Join(dir, "response.wav")
	f, err := os.Create(wavPath)
	require.NoError(t, err)
	require.NoError(t, writeWAV(f, &Waveform{Samples: []float32{0, 0.25, -0.25}, SampleRate: 16000, Channels: 1}))
	require.NoError(t, f.Close())
	wavBytes, err := os.ReadFile(wavPath)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wavBytes)
	}))
	defer server.Close()

	wave, err := NewClient(server.URL, time.Second*5, zap.NewNop()).Convert(context.Background(), source, target)
	require.NoError(t, err)

	assert.Equal(t, 16000, wave.SampleRate)
	require.Len(t, wave.Samples, 3)
	assert.InDelta(t, 0.25, wave.Samples[1], 0.001)
	assert.InDelta(t, -0.25, wave.Samples[2], 0.001)
}

func TestClient_ConvertErrors(t *testing.T) {
	dir := t.TempDir()
	source := writeAudioFixture(t, dir, "a.mp3")
	target := writeAudioFixture(t, dir, "b.wav")

	t.Run("ошибка модели", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"reference audio too short"}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, time.Second*5, zap.NewNop()).Convert(context.Background(), source, target)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "422")
		assert.Contains(t, err.Error(), "reference audio too short")
	})

	t.Run("нет частоты дискретизации", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(pcmBytes([]float32{0.1}))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, time.Second*5, zap.NewNop()).Convert(context.Background(), source, target)
		assert.Error(t, err)
	})

	t.Run("файл не найден", func(t *testing.T) {
		client := NewClient("http://localhost:1", time.Second, zap.NewNop())
		_, err := client.Convert(context.Background(), filepath.Join(dir, "missing.mp3"), target)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestHealthCheck(t *testing.T) {
	client := NewClient("http://localhost:1", time.Second, zap.NewNop())

	// Тест с несуществующим сервером должен вернуть ошибку
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("ожидалась ошибка при проверке несуществующего сервера")
	}
}
