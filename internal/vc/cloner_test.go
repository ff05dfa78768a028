package vc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tts-vc/pkg/models"
)

type fakeModel struct {
	wave  *Waveform
	err   error
	delay time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (m *fakeModel) Generate(_ context.Context, _, _ string) (*Waveform, error) {
	m.calls.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(m.delay)
	return m.wave, m.err
}

func (m *fakeModel) Device() Device { return DeviceCPU }

type fakeScheduler struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeScheduler) ScheduleKind(path string, _ models.ArtifactKind, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
}

func cloningRequest(t *testing.T) models.CloningRequest {
	dir := t.TempDir()
	return models.CloningRequest{
		SourcePath:      writeAudioFixture(t, dir, "tts.mp3"),
		TargetVoicePath: writeAudioFixture(t, dir, "ref.wav"),
	}
}

func TestCloner_CloneVoice(t *testing.T) {
	dir := t.TempDir()
	model := &fakeModel{wave: &Waveform{Samples: []float32{0, 0.5, -0.5, 0.25}, SampleRate: 24000, Channels: 1}}
	sched := &fakeScheduler{}
	c := NewCloner(model, sched, dir, time.Minute, true, zap.NewNop(), nil)

	res, err := c.CloneVoice(context.Background(), cloningRequest(t))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.Path, ".wav"))
	assert.Equal(t, dir, filepath.Dir(res.Path))
	assert.Equal(t, 24000, res.SampleRate)
	assert.Equal(t, []string{res.Path}, sched.paths)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()

	decoder := wav.NewDecoder(f)
	require.True(t, decoder.IsValidFile())
	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(24000), decoder.SampleRate)
	assert.Len(t, buf.Data, 4)
	assert.Equal(t, 16383, buf.Data[1])
}

func TestCloner_ModelErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	modelErr := errors.New("CUDA out of memory")
	sched := &fakeScheduler{}
	c := NewCloner(&fakeModel{err: modelErr}, sched, dir, time.Minute, true, zap.NewNop(), nil)

	res, err := c.CloneVoice(context.Background(), cloningRequest(t))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, modelErr)
	assert.Empty(t, sched.paths)

	entries, err := os.ReadDir(dir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestCloner_MissingReference(t *testing.T) {
	model := &fakeModel{wave: &Waveform{Samples: []float32{0}, SampleRate: 24000}}
	c := NewCloner(model, &fakeScheduler{}, t.TempDir(), time.Minute, true, zap.NewNop(), nil)

	req := cloningRequest(t)
	req.TargetVoicePath = filepath.Join(t.TempDir(), "missing.wav")

	_, err := c.CloneVoice(context.Background(), req)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestCloner_SerializesInference(t *testing.T) {
	model := &fakeModel{
		wave:  &Waveform{Samples: []float32{0.1}, SampleRate: 24000},
		delay: 20 * time.Millisecond,
	}
	c := NewCloner(model, &fakeScheduler{}, t.TempDir(), time.Minute, true, zap.NewNop(), nil)
	req := cloningRequest(t)

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.CloneVoice(context.Background(), req)
			if assert.NoError(t, err) {
				paths[i] = res.Path
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), model.maxActive.Load())
	seen := make(map[string]bool)
	for _, p := range paths {
		assert.False(t, seen[p], "пути не должны повторяться")
		seen[p] = true
	}
}

func TestCloner_ParallelWhenNotSerialized(t *testing.T) {
	model := &fakeModel{
		wave:  &Waveform{Samples: []float32{0.1}, SampleRate: 24000},
		delay: 50 * time.Millisecond,
	}
	c := NewCloner(model, &fakeScheduler{}, t.TempDir(), time.Minute, false, zap.NewNop(), nil)
	req := cloningRequest(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CloneVoice(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Greater(t, model.maxActive.Load(), int32(1))
}
