package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://cdn.example/" + key, nil
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) URL(ctx context.Context, key string) (string, error) {
	return "https://cdn.example/" + key, nil
}

func pngBytes(t *testing.T, w, h int, noisy bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if noisy {
				img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
			} else {
				img.Set(x, y, color.NRGBA{200, 100, 50, 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T, routes map[string][]byte, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestObjectKey(t *testing.T) {
	a := ObjectKey("products/abc", "https://img.example/a.jpg")
	b := ObjectKey("products/abc/", "https://img.example/a.jpg")
	c := ObjectKey("products/abc", "https://img.example/b.jpg")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "products/abc/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(a, "products/abc/"), ".jpg"), 32)
}

func TestProcessImages_OutcomesInInputOrder(t *testing.T) {
	srv := imageServer(t, map[string][]byte{
		"/good.png":    pngBytes(t, 100, 50, false),
		"/garbage.png": []byte("definitely not an image"),
	}, nil)

	storage := newMemStorage()
	p := NewProcessor(storage, srv.Client(), Options{}, zaptest.NewLogger(t))

	out := p.ProcessImages(context.Background(), []string{
		srv.URL + "/good.png",
		srv.URL + "/missing.png",
		srv.URL + "/garbage.png",
	}, "products/p1")

	require.Len(t, out, 3)
	assert.Equal(t, OutcomeUploaded, out[0].Outcome)
	assert.Equal(t, 100, out[0].Width, "small images are not enlarged")
	assert.Equal(t, 50, out[0].Height)
	assert.Equal(t, "https://cdn.example/"+out[0].Key, out[0].StoredURL)

	assert.Equal(t, OutcomeFailed, out[1].Outcome)
	assert.True(t, errors.Is(out[1].Error, ErrDownload))

	assert.Equal(t, OutcomeFailed, out[2].Outcome)
	assert.True(t, errors.Is(out[2].Error, ErrDecode))

	assert.Equal(t, []string{out[0].StoredURL}, StoredURLs(out))
	assert.Equal(t, models.ImagesUploaded, UploadStatus(out))
}

func TestProcessImages_ReusesExistingKey(t *testing.T) {
	var hits int32
	srv := imageServer(t, map[string][]byte{"/a.png": pngBytes(t, 10, 10, false)}, &hits)
	storage := newMemStorage()
	p := NewProcessor(storage, srv.Client(), Options{}, nil)

	first := p.ProcessImages(context.Background(), []string{srv.URL + "/a.png"}, "products/p1")
	second := p.ProcessImages(context.Background(), []string{srv.URL + "/a.png"}, "products/p1")

	assert.Equal(t, OutcomeUploaded, first[0].Outcome)
	assert.Equal(t, OutcomeReused, second[0].Outcome)
	assert.Equal(t, first[0].StoredURL, second[0].StoredURL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestProcessImages_UploadFailure(t *testing.T) {
	srv := imageServer(t, map[string][]byte{"/a.png": pngBytes(t, 10, 10, false)}, nil)
	storage := newMemStorage()
	storage.uploadErr = errors.New("bucket gone")
	p := NewProcessor(storage, srv.Client(), Options{}, nil)

	out := p.ProcessImages(context.Background(), []string{srv.URL + "/a.png"}, "products/p1")
	assert.Equal(t, OutcomeFailed, out[0].Outcome)
	assert.True(t, errors.Is(out[0].Error, ErrUpload))
	assert.Equal(t, models.ImagesFailed, UploadStatus(out))
}

func TestProcessImages_NoisyImageStillUploaded(t *testing.T) {
	srv := imageServer(t, map[string][]byte{"/noise.png": pngBytes(t, 2000, 2000, true)}, nil)
	storage := newMemStorage()
	p := NewProcessor(storage, srv.Client(), Options{}, nil)

	out := p.ProcessImages(context.Background(), []string{srv.URL + "/noise.png"}, "products/p1")
	require.Len(t, out, 1)
	assert.Equal(t, OutcomeUploaded, out[0].Outcome)
	assert.NoError(t, out[0].Error)
	assert.LessOrEqual(t, out[0].Width, 1200)
	assert.LessOrEqual(t, out[0].Height, 1200)
	assert.GreaterOrEqual(t, out[0].Quality, 60)
	assert.NotEmpty(t, storage.objects[out[0].Key])
}

func TestCompress_StepsDownToFallbackDimension(t *testing.T) {
	p := NewProcessor(newMemStorage(), nil, Options{MaxBytes: 1}, nil)
	img, err := png.Decode(bytes.NewReader(pngBytes(t, 1000, 1000, true)))
	require.NoError(t, err)

	enc := p.Compress(img)
	assert.Equal(t, 60, enc.Quality)
	assert.Equal(t, 800, enc.Width)
	assert.NotEmpty(t, enc.Data)
}

func TestCompress_FirstQualityWithinBudget(t *testing.T) {
	p := NewProcessor(newMemStorage(), nil, Options{}, nil)
	img, err := png.Decode(bytes.NewReader(pngBytes(t, 300, 200, false)))
	require.NoError(t, err)

	enc := p.Compress(img)
	assert.Equal(t, 80, enc.Quality)
	assert.Equal(t, 300, enc.Width)
	assert.Equal(t, 200, enc.Height)
}

func TestUploadStatus_Empty(t *testing.T) {
	assert.Equal(t, models.ImagesFailed, UploadStatus(nil))
	assert.Empty(t, StoredURLs(nil))
}
