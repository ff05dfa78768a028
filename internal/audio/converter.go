package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// ReferenceSampleRate частота, с которой модель клонирования читает эталон
	ReferenceSampleRate = 24000
	// MinReferenceSeconds минимальная длительность эталонной записи
	MinReferenceSeconds = 1.0
)

// ErrReferenceTooShort эталонная запись слишком короткая для клонирования
var ErrReferenceTooShort = errors.New("эталонная запись слишком короткая")

// Converter преобразует аудио с помощью ffmpeg и ffprobe
type Converter struct {
	logger  *zap.Logger
	ffmpeg  string
	ffprobe string
}

// NewConverter создает конвертер, использующий ffmpeg и ffprobe из PATH
func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{
		logger:  logger,
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
	}
}

// Available проверяет, что ffmpeg и ffprobe установлены
func (c *Converter) Available() error {
	for _, bin := range []string{c.ffmpeg, c.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s не найден: %w", bin, err)
		}
	}
	return nil
}

// ToWAV перекодирует файл в моно WAV во временный файл в dir.
// Вызывающий отвечает за удаление результата.
func (c *Converter) ToWAV(ctx context.Context, input, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории: %w", err)
	}

	out, err := os.CreateTemp(dir, "ref-*.wav")
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	out.Close()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ffmpeg, wavArgs(input, out.Name())...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("ошибка конвертации в WAV: %w: %s", err, lastLine(stderr.String()))
	}

	c.logger.Debug("аудио конвертировано в WAV",
		zap.String("input", input),
		zap.String("output", out.Name()))

	return out.Name(), nil
}

// Duration возвращает длительность аудиофайла в секундах
func (c *Converter) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ошибка выполнения ffprobe: %w", err)
	}

	return parseDuration(string(output))
}

// ValidateReference проверяет, что в эталонной записи достаточно речи для клонирования
func (c *Converter) ValidateReference(ctx context.Context, path string) error {
	duration, err := c.Duration(ctx, path)
	if err != nil {
		return err
	}

	speech := duration
	silence, err := c.DetectSilence(ctx, path, duration)
	if err != nil {
		c.logger.Warn("анализ тишины не удался, учитывается полная длительность", zap.Error(err))
	} else {
		speech = SpeechDuration(duration, silence)
	}

	if speech < MinReferenceSeconds {
		return fmt.Errorf("%w: %.2f с речи из %.2f с", ErrReferenceTooShort, speech, duration)
	}
	return nil
}

func wavArgs(input, output string) []string {
	return []string{
		"-y", // Перезаписать файл
		"-i", input,
		"-ar", strconv.Itoa(ReferenceSampleRate),
		"-ac", "1", // Моно
		"-f", "wav",
		output,
	}
}

func parseDuration(s string) (float64, error) {
	duration, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка парсинга длительности: %w", err)
	}
	return duration, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
