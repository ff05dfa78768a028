package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWavArgs(t *testing.T) {
	args := wavArgs("in.ogg", "out.wav")
	assert.Equal(t, []string{"-y", "-i", "in.ogg", "-ar", "24000", "-ac", "1", "-f", "wav", "out.wav"}, args)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("12.480000\n")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 0.0001)

	_, err = parseDuration("N/A")
	assert.Error(t, err)
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "in.ogg: Invalid data found", lastLine("ffmpeg version 6\n...\nin.ogg: Invalid data found\n"))
	assert.Equal(t, "single", lastLine("single"))
}

func TestConverter_ToWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg не установлен")
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "tone.mp3")
	gen := exec.Command("ffmpeg", "-f", "lavfi", "-i", "sine=frequency=440:duration=2", "-y", source)
	require.NoError(t, gen.Run())

	c := NewConverter(zap.NewNop())
	require.NoError(t, c.Available())

	out, err := c.ToWAV(context.Background(), source, dir)
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.Equal(t, ".wav", filepath.Ext(out))

	duration, err := c.Duration(context.Background(), out)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, duration, 0.1)
	assert.NoError(t, c.ValidateReference(context.Background(), out))
}

func TestConverter_ToWAVInvalidInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg не установлен")
	}

	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.ogg")
	require.NoError(t, os.WriteFile(bogus, []byte("not audio"), 0o600))

	_, err := NewConverter(zap.NewNop()).ToWAV(context.Background(), bogus, dir)
	assert.Error(t, err)

	// Неудачная конвертация не оставляет файлов
	matches, _ := filepath.Glob(filepath.Join(dir, "ref-*.wav"))
	assert.Empty(t, matches)
}
