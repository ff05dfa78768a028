package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-4b7d-4f3e-9a21-0c5d8e7f6a10")

	assert.Equal(t, "6f1c2a8e-4b7d-4f3e-9a21-0c5d8e7f6a10/tts-123.mp3",
		ObjectKey(id, "/tmp/tts-vc/tts-123.mp3"))
	assert.Equal(t, "6f1c2a8e-4b7d-4f3e-9a21-0c5d8e7f6a10/vc-9.wav",
		ObjectKey(id, "vc-9.wav"))
}

func TestPublicURL(t *testing.T) {
	url := PublicURL("https://s3.example.com", "artifacts", "abc/tts-1.mp3")
	assert.Equal(t, "https://s3.example.com/artifacts/abc/tts-1.mp3", url)

	// Пробелы и спецсимволы экранируются внутри сегмента
	url = PublicURL("http://localhost:9000", "b", "id/my file.wav")
	assert.Equal(t, "http://localhost:9000/b/id/my%20file.wav", url)
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string]string
	failRm  bool
}

func (f *fakeObjectStore) FPutObject(_ context.Context, _, objectName, filePath string, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectName] = filePath
	return minio.UploadInfo{Key: objectName}, nil
}

func (f *fakeObjectStore) RemoveObject(_ context.Context, _, objectName string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRm {
		return errors.New("access denied")
	}
	delete(f.objects, objectName)
	return nil
}

func (f *fakeObjectStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func TestS3Publisher_UnpublishRemovesObjects(t *testing.T) {
	store := &fakeObjectStore{objects: map[string]string{}}
	p := newS3Publisher(store, "artifacts", "https://s3.example.com", zap.NewNop())

	u, err := p.Publish(context.Background(), "/tmp/tts-vc/vc-1.wav", "audio/wav")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://s3.example.com/artifacts/"))
	assert.True(t, strings.HasSuffix(u, "/vc-1.wav"))

	_, err = p.Publish(context.Background(), "/tmp/tts-vc/tts-1.mp3", "audio/mpeg")
	require.NoError(t, err)
	require.Equal(t, 2, store.len())

	p.Unpublish("/tmp/tts-vc/vc-1.wav")
	assert.Equal(t, 1, store.len())

	// Повторный вызов и неизвестный путь ничего не делают
	p.Unpublish("/tmp/tts-vc/vc-1.wav")
	p.Unpublish("/tmp/tts-vc/other.wav")
	assert.Equal(t, 1, store.len())
}

func TestS3Publisher_UnpublishFailureIsLogged(t *testing.T) {
	store := &fakeObjectStore{objects: map[string]string{}, failRm: true}
	p := newS3Publisher(store, "artifacts", "http://localhost:9000", zap.NewNop())

	_, err := p.Publish(context.Background(), "/tmp/tts-vc/vc-2.wav", "audio/wav")
	require.NoError(t, err)

	assert.NotPanics(t, func() { p.Unpublish("/tmp/tts-vc/vc-2.wav") })
	assert.Equal(t, 1, store.len())
}
