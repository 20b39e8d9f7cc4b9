package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"loan-intake/internal/common/config"
	"loan-intake/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of calls MinioStore makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case key == "" && r.Method == http.MethodHead:
		if f.buckets[bucket] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, bucket+"/"+key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func setupStore(t *testing.T) (*MinioStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewMinioStore(context.Background(), config.StorageConfig{
		Endpoint:      strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:     "minio",
		SecretKey:     "minio123",
		Bucket:        "loan-documents",
		PublicBaseURL: "https://files.example.test/",
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return store, fake
}

func TestNewMinioStore_CreatesBucket(t *testing.T) {
	_, fake := setupStore(t)
	assert.True(t, fake.buckets["loan-documents"])
}

func TestUploadAndDelete(t *testing.T) {
	store, fake := setupStore(t)
	ctx := context.Background()

	key := ObjectKey("app-1", "drivers-licence", "file-1", "front side.png")
	assert.Equal(t, "applications/app-1/drivers-licence/file-1-front_side.png", key)

	obj, err := store.Upload(ctx, key, strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, key, obj.ProviderID)
	assert.Equal(t, "https://files.example.test/"+key, obj.URL)
	assert.Contains(t, string(fake.objects["loan-documents/"+key]), "png-bytes")

	require.NoError(t, store.Delete(ctx, obj.ProviderID))
	_, ok := fake.objects["loan-documents/"+key]
	assert.False(t, ok)
}
