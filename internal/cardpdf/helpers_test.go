package cardpdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cardapi/internal/storage"
)

var templateColor = color.RGBA{R: 20, G: 24, B: 48, A: 255}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// writeTemplates creates the default asset set in a temp dir. Fronts are
// 600x380 JPEGs and backs are 640x400 PNGs.
func writeTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	front := encodeJPEG(t, solidImage(600, 380, templateColor))
	back := encodePNG(t, solidImage(640, 400, color.RGBA{R: 200, G: 180, B: 40, A: 255}))
	for _, prefix := range []string{"edu", "scholar", "infinite"} {
		writeFile(t, filepath.Join(dir, prefix+"_front.jpg"), front)
		writeFile(t, filepath.Join(dir, prefix+"_back.jpg"), back)
	}
	return dir
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(DefaultRegistryConfig(writeTemplates(t)))
	require.NoError(t, err)
	return reg
}

func testRenderer(t *testing.T, opts ...RendererOption) *Renderer {
	t.Helper()
	fonts, err := LoadFonts(FontConfig{})
	require.NoError(t, err)
	r, err := NewRenderer(fonts, opts...)
	require.NoError(t, err)
	return r
}

// pdfPages reads a PDF back and returns each page's MediaBox width and height.
func pdfPages(t *testing.T, data []byte) []PageSize {
	t.Helper()
	pages, err := InspectPages(data)
	require.NoError(t, err)
	return pages
}

// memoryStore is an in-memory storage.Storage.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	putErr  error
	urlErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: opt.ContentType, LastModified: time.Now()}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (m *memoryStore) PublicURL(key string) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return "https://cdn.example.com/elite-cards/" + key, nil
}
