package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"nagarpalika/backend/internal/models"

	"github.com/google/uuid"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 5 << 20

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// ImageStore keeps an uploaded image and returns a reference clients can fetch.
// Delete discards an image whose report was never stored.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// DiskImageStore writes images into Dir and serves them under URLPrefix.
type DiskImageStore struct {
	Dir       string
	URLPrefix string
}

func NewDiskImageStore(dir string) *DiskImageStore {
	return &DiskImageStore{Dir: dir, URLPrefix: "/uploads"}
}

func (s *DiskImageStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExt[ext] {
		return "", models.NewValidationError("image", "Images only (jpg, jpeg, png, gif, webp)")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := "image-" + uuid.New().String() + ext
	full := filepath.Join(s.Dir, name)
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxImageBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxImageBytes {
		err = models.NewValidationError("image", "Image is larger than 5MB")
	}
	if err != nil {
		os.Remove(full)
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return "", err
		}
		return "", fmt.Errorf("write image file: %w", err)
	}

	return path.Join(s.URLPrefix, name), nil
}

// Delete removes the file behind ref. A missing file is not an error.
func (s *DiskImageStore) Delete(ctx context.Context, ref string) error {
	name := path.Base(ref)
	if !strings.HasPrefix(ref, s.URLPrefix+"/") || !strings.HasPrefix(name, "image-") {
		return fmt.Errorf("not an upload reference: %q", ref)
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}
