package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
)

const thumbnailSize = 320

// StoredImage describes one persisted upload.
type StoredImage struct {
	Name          string
	Path          string
	ThumbnailPath string
	CapturedAt    *time.Time
}

// ImageStore writes uploaded images (and admin-screen thumbnails) to disk.
// Files are served statically under /uploads.
type ImageStore struct {
	directory string
	logger    *zap.Logger
}

func NewImageStore(directory string, logger *zap.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(filepath.Join(directory, "thumbs"), 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &ImageStore{directory: directory, logger: logger}, nil
}

// Save writes the image under a unique name derived from the original
// filename. Thumbnail and EXIF extraction are best effort: a file that cannot
// be decoded is still stored and served as-is.
func (s *ImageStore) Save(originalName string, data []byte) (*StoredImage, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("image-%s%s", uuid.New().String(), ext)
	path := filepath.Join(s.directory, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image file: %w", err)
	}

	stored := &StoredImage{Name: name, Path: path}

	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
		thumbPath := filepath.Join(s.directory, "thumbs", name)
		if err := imaging.Save(thumb, thumbPath); err != nil {
			s.logger.Warn("failed to save thumbnail", zap.String("image", name), zap.Error(err))
		} else {
			stored.ThumbnailPath = thumbPath
		}
	} else {
		s.logger.Warn("failed to decode image for thumbnail", zap.String("image", name), zap.Error(err))
	}

	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		if taken, err := x.DateTime(); err == nil {
			stored.CapturedAt = &taken
		}
	}

	return stored, nil
}

// URLPath returns the public path a stored file is served under.
func (s *ImageStore) URLPath(path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(s.directory, path)
	if err != nil {
		return ""
	}
	return "/uploads/" + filepath.ToSlash(rel)
}
