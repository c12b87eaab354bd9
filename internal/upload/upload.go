// Package upload stores course images on local disk under the directory
// served at /uploads.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds size limit")
)

// allowed maps sniffed content types to the extension files are saved with.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// LocalStore writes images to Dir/SubDir and exposes them as
// URLPrefix/SubDir/<name>.
type LocalStore struct {
	Dir       string
	URLPrefix string
	SubDir    string
	MaxBytes  int64
	// JPEG and PNG uploads wider than MaxWidth are downscaled on save.
	MaxWidth int
}

func NewLocalStore(dir string, maxBytes int64) *LocalStore {
	return &LocalStore{Dir: dir, URLPrefix: "/uploads", SubDir: "courses", MaxBytes: maxBytes, MaxWidth: 1600}
}

// Save validates and stores one image and returns its public path.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if ext := strings.ToLower(filepath.Ext(name)); !allowedExt[ext] {
		return "", ErrUnsupportedType
	}
	buf, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(buf)) > s.MaxBytes {
		return "", ErrTooLarge
	}
	ext, ok := allowed[http.DetectContentType(buf)]
	if !ok {
		return "", ErrUnsupportedType
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.Dir, s.SubDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir uploads: %w", err)
	}
	filename := "course-" + uuid.NewString() + ext
	dst := filepath.Join(dir, filename)

	if err := s.write(dst, ext, buf); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return s.URLPrefix + "/" + s.SubDir + "/" + filename, nil
}

func (s *LocalStore) write(dst, ext string, buf []byte) error {
	switch ext {
	case ".jpg", ".png", ".gif":
		img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
		if err != nil {
			return ErrUnsupportedType
		}
		// animated GIFs keep their original bytes
		if ext != ".gif" && s.MaxWidth > 0 && img.Bounds().Dx() > s.MaxWidth {
			return imaging.Save(imaging.Resize(img, s.MaxWidth, 0, imaging.Lanczos), dst, imaging.JPEGQuality(85))
		}
	}
	return os.WriteFile(dst, buf, 0o644)
}

// Owns reports whether path points into this store rather than at an
// external URL.
func (s *LocalStore) Owns(path string) bool {
	return strings.HasPrefix(path, s.URLPrefix+"/")
}

// Remove deletes a stored image. Paths outside the store and files that are
// already gone are ignored.
func (s *LocalStore) Remove(path string) error {
	if !s.Owns(path) {
		return nil
	}
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(path, s.URLPrefix+"/")))
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove %q", path)
	}
	err := os.Remove(filepath.Join(s.Dir, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
