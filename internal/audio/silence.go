package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

// SilenceSegment представляет сегмент тишины
type SilenceSegment struct {
	Start    float64 `json:"start"`    // Время начала в секундах
	Duration float64 `json:"duration"` // Длительность в секундах
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start: (-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end: ([\d.]+) \| silence_duration: ([\d.]+)`)
)

// DetectSilence находит сегменты тишины в записи.
// total нужна, чтобы закрыть тишину, которая длится до конца файла.
func (c *Converter) DetectSilence(ctx context.Context, path string, total float64) ([]SilenceSegment, error) {
	// -30dB порог тишины, 0.5 минимальная длительность тишины
	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-i", path,
		"-af", "silencedetect=noise=-30dB:d=0.5",
		"-f", "null",
		"-")

	// FFmpeg выводит результаты анализа в stderr
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ошибка анализа тишины: %w: %s", err, lastLine(stderr.String()))
	}

	segments, err := parseSilence(&stderr, total)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("найдено сегментов тишины", zap.String("path", path), zap.Int("count", len(segments)))
	return segments, nil
}

// parseSilence разбирает вывод фильтра silencedetect
func parseSilence(r io.Reader, total float64) ([]SilenceSegment, error) {
	var segments []SilenceSegment
	var currentStart *float64

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if matches := silenceStartRe.FindStringSubmatch(line); matches != nil {
			if start, err := strconv.ParseFloat(matches[1], 64); err == nil {
				start = max(start, 0)
				currentStart = &start
			}
		}

		if matches := silenceEndRe.FindStringSubmatch(line); matches != nil && currentStart != nil {
			if duration, err := strconv.ParseFloat(matches[2], 64); err == nil {
				segments = append(segments, SilenceSegment{Start: *currentStart, Duration: duration})
			}
			currentStart = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения результатов анализа: %w", err)
	}

	// Тишина до конца записи не получает silence_end
	if currentStart != nil && total > *currentStart {
		segments = append(segments, SilenceSegment{Start: *currentStart, Duration: total - *currentStart})
	}

	return segments, nil
}

// SpeechDuration длительность записи без сегментов тишины
func SpeechDuration(total float64, silence []SilenceSegment) float64 {
	speech := total
	for _, s := range silence {
		speech -= s.Duration
	}
	return max(speech, 0)
}
