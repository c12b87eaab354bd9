package upload

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveAndRemove(t *testing.T) {
	s := NewLocalStore(t.TempDir(), 5<<20)

	path, err := s.Save(context.Background(), "cover.png", bytes.NewReader(pngBytes(t, 4, 4)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "/uploads/courses/course-"))
	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.True(t, s.Owns(path))

	disk := filepath.Join(s.Dir, "courses", filepath.Base(path))
	_, err = os.Stat(disk)
	require.NoError(t, err)

	require.NoError(t, s.Remove(path))
	_, err = os.Stat(disk)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Remove(path), "removing twice is not an error")
}

func TestSaveDownscalesWideImages(t *testing.T) {
	s := NewLocalStore(t.TempDir(), 5<<20)
	s.MaxWidth = 8

	path, err := s.Save(context.Background(), "wide.png", bytes.NewReader(pngBytes(t, 32, 16)))
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(s.Dir, "courses", filepath.Base(path)))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestSaveRejects(t *testing.T) {
	s := NewLocalStore(t.TempDir(), 64)

	_, err := s.Save(context.Background(), "notes.txt", strings.NewReader("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(context.Background(), "fake.png", strings.NewReader("plain text pretending"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(context.Background(), "big.png", bytes.NewReader(bytes.Repeat([]byte{0}, 65)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRemoveIgnoresForeignPaths(t *testing.T) {
	s := NewLocalStore(t.TempDir(), 1<<20)
	assert.False(t, s.Owns("https://cdn.example.com/a.png"))
	assert.NoError(t, s.Remove("https://cdn.example.com/a.png"))
	assert.Error(t, s.Remove("/uploads/../../etc/passwd"))
}
