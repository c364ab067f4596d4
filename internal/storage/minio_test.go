package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestStore(t *testing.T, publicURL string) (*MinIO, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4("key", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return New(client, "product-images", publicURL), fake
}

func TestUploadAndDelete(t *testing.T) {
	store, fake := newTestStore(t, "https://cdn.byteshop.dev/product-images/")
	ctx := context.Background()

	url, err := store.Upload(ctx, "laptops/1_x.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.byteshop.dev/product-images/laptops/1_x.png", url)
	assert.Equal(t, "png-bytes", fake.objects["/product-images/laptops/1_x.png"])
	assert.Equal(t, "image/png", fake.types["/product-images/laptops/1_x.png"])

	require.NoError(t, store.Delete(ctx, store.PathFromURL(url)))
	assert.Empty(t, fake.objects)
}

func TestUploadBackup(t *testing.T) {
	store, fake := newTestStore(t, "")
	path, err := store.UploadBackup(context.Background(), "dump.jsonl", strings.NewReader("{}"), 2)
	require.NoError(t, err)
	assert.Equal(t, "backups/dump.jsonl", path)
	assert.Contains(t, fake.objects, "/product-images/backups/dump.jsonl")
}

func TestPathFromURL(t *testing.T) {
	store, _ := newTestStore(t, "https://cdn.byteshop.dev/product-images")

	assert.Equal(t, "laptops/a b.png", store.PathFromURL("https://cdn.byteshop.dev/product-images/laptops/a%20b.png"))
	assert.Equal(t, "laptops/a.png", store.PathFromURL("https://cdn.byteshop.dev/product-images/laptops/a.png?v=2"))
	assert.Equal(t, "", store.PathFromURL("https://elsewhere.example.com/laptops/a.png"))
	assert.Equal(t, "", store.PathFromURL(""))
}

func TestDefaultPublicURL(t *testing.T) {
	store, _ := newTestStore(t, "")
	assert.True(t, strings.HasPrefix(store.PublicURL("x.png"), "http://127.0.0.1:"))
	assert.True(t, strings.HasSuffix(store.PublicURL("x.png"), "/product-images/x.png"))
}
