package assets_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newStore(t *testing.T, maxMB int64) (*assets.Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "assets")
	s, err := assets.NewStore(assets.Config{Dir: dir, MaxFileSizeMB: maxMB}, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStore_Save(t *testing.T) {
	t.Parallel()
	s, dir := newStore(t, 5)

	name, err := s.Save(bytes.NewReader(pngBytes(t)), "image/png")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f-]{36}\.png$`), name)
	require.True(t, s.Exists(name))
	require.Equal(t, []string{name}, listDir(t, dir))

	name, err = s.Save(bytes.NewReader(jpegBytes(t)), "image/jpeg; charset=binary")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(name, ".jpg"))
}

func TestStore_SaveExtensionFollowsContent(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t, 5)

	name, err := s.Save(bytes.NewReader(pngBytes(t)), "image/jpeg")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(name, ".png"), name)
}

func TestStore_SaveRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		body     func(t *testing.T) []byte
		declared string
		maxMB    int64
		wantErr  error
	}{
		{
			name:     "declared text/plain",
			body:     pngBytes,
			declared: "text/plain",
			maxMB:    5,
			wantErr:  assets.ErrUnsupportedMediaType,
		},
		{
			name:     "declared gif",
			body:     pngBytes,
			declared: "image/gif",
			maxMB:    5,
			wantErr:  assets.ErrUnsupportedMediaType,
		},
		{
			name:     "content is not an image",
			body:     func(*testing.T) []byte { return []byte("hello, i am plain text") },
			declared: "image/png",
			maxMB:    5,
			wantErr:  assets.ErrUnsupportedMediaType,
		},
		{
			name: "too large",
			body: func(t *testing.T) []byte {
				return append(pngBytes(t), make([]byte, 1<<20)...)
			},
			declared: "image/png",
			maxMB:    1,
			wantErr:  assets.ErrFileTooLarge,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, dir := newStore(t, tt.maxMB)
			_, err := s.Save(bytes.NewReader(tt.body(t)), tt.declared)
			require.ErrorIs(t, err, tt.wantErr)
			require.Empty(t, listDir(t, dir))
		})
	}
}

func TestStore_SaveConcurrentNamesUnique(t *testing.T) {
	t.Parallel()
	s, dir := newStore(t, 5)
	data := pngBytes(t)

	const n = 25
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		names = make(map[string]struct{}, n)
		errs  []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := s.Save(bytes.NewReader(data), "image/png")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			names[name] = struct{}{}
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	require.Len(t, names, n)
	require.Len(t, listDir(t, dir), n)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	s, dir := newStore(t, 5)

	name, err := s.Save(bytes.NewReader(pngBytes(t)), "image/png")
	require.NoError(t, err)

	require.NoError(t, s.Delete(name))
	require.False(t, s.Exists(name))
	require.NoError(t, s.Delete(name), "second delete is a no-op")
	require.Empty(t, listDir(t, dir))
}

func TestStore_DeleteRejectsTraversal(t *testing.T) {
	t.Parallel()
	s, dir := newStore(t, 5)

	outside := filepath.Join(filepath.Dir(dir), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	for _, name := range []string{"../keep.txt", "..", ".", "", "sub/keep.txt", `..\keep.txt`, ".hidden"} {
		require.ErrorIs(t, s.Delete(name), assets.ErrInvalidName, name)
	}
	_, err := os.Stat(outside)
	require.NoError(t, err)
}

func TestURLFor(t *testing.T) {
	t.Parallel()
	require.Equal(t, "/assets/1-abc.png", assets.URLFor("1-abc.png"))
	require.Equal(t, "/assets/fallback.png", assets.URLFor(""))
}
