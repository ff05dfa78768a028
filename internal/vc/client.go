package vc

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

// Client представляет клиент для сервиса инференса модели клонирования голоса
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создает клиент сервиса клонирования
func NewClient(apiURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout, // инференс на CPU может занимать минуты
		},
		logger: logger,
	}
}

// ModelInfo описывает загруженную модель
type ModelInfo struct {
	Model      string    `json:"model"`
	Device     Device    `json:"device"`
	Precision  Precision `json:"precision"`
	SampleRate int       `json:"sample_rate"`
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

type loadRequest struct {
	Device    Device    `json:"device"`
	Precision Precision `json:"precision"`
}

// Devices возвращает устройства, доступные сервису инференса
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/devices", nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var response devicesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w, тело: %s", err, string(body))
	}

	return response.Devices, nil
}

// LoadModel загружает веса модели на устройство
func (c *Client) LoadModel(ctx context.Context, device Device, precision Precision) (*ModelInfo, error) {
	payload, err := json.Marshal(loadRequest{Device: device, Precision: precision})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/model/load", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("загрузка модели клонирования",
		zap.String("device", string(device)),
		zap.String("precision", string(precision)))

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var info ModelInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w, тело: %s", err, string(body))
	}
	if info.Device == "" {
		info.Device = device
	}
	if info.Precision == "" {
		info.Precision = precision
	}

	return &info, nil
}

// Convert переносит тембр target на аудио source и возвращает волновую форму
func (c *Client) Convert(ctx context.Context, sourcePath, targetPath string) (*Waveform, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	if err := attachFile(writer, "audio", sourcePath); err != nil {
		return nil, err
	}
	if err := attachFile(writer, "target_voice", targetPath); err != nil {
		return nil, err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/convert", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Info("отправка запроса на клонирование голоса",
		zap.String("source", sourcePath),
		zap.String("target", targetPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "audio/wav") {
		return decodeWAV(body)
	}
	return decodePCM(body, resp.Header)
}

// HealthCheck проверяет доступность сервиса инференса
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("нездоровый статус API: %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("ошибка создания формы: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("ошибка копирования файла: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	// Пытаемся парсить как JSON для детальных ошибок
	var errorResponse map[string]interface{}
	if json.Unmarshal(body, &errorResponse) == nil {
		errorJSON, _ := json.Marshal(errorResponse)
		return fmt.Errorf("ошибка API (статус %d): %s", status, string(errorJSON))
	}
	return fmt.Errorf("ошибка API (статус %d): %s", status, string(body))
}

// decodePCM разбирает float32 little-endian PCM с параметрами в заголовках
func decodePCM(body []byte, header http.Header) (*Waveform, error) {
	sampleRate, err := strconv.Atoi(header.Get("X-Sample-Rate"))
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("некорректный заголовок X-Sample-Rate: %q", header.Get("X-Sample-Rate"))
	}
	channels := 1
	if v := header.Get("X-Channels"); v != "" {
		channels, err = strconv.Atoi(v)
		if err != nil || channels <= 0 {
			return nil, fmt.Errorf("некорректный заголовок X-Channels: %q", v)
		}
	}
	if len(body) == 0 || len(body)%4 != 0 {
		return nil, fmt.Errorf("некорректная длина PCM данных: %d", len(body))
	}

	samples := make([]float32, len(body)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}

	return &Waveform{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

func decodeWAV(body []byte) (*Waveform, error) {
	decoder := wav.NewDecoder(bytes.NewReader(body))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("сервис вернул некорректный WAV")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования WAV: %w", err)
	}

	scale := float32(int(1) << (decoder.BitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}
