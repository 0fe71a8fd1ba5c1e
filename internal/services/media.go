package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// MaxImageBytes caps article cover uploads.
const MaxImageBytes = 5 << 20

const imageKeyPrefix = "articles/"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrMediaDisabled is returned when an upload arrives but no object storage
// backend is configured.
var ErrMediaDisabled = errors.New("image uploads are not configured")

// ImageStore is the subset of object storage used for article images.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Image is an uploaded cover image.
type Image struct {
	Filename string
	Data     []byte
}

// Media stores article images and maps object keys to public URLs.
type Media struct {
	store     ImageStore
	publicURL string
}

// NewMedia wraps store. A nil store disables uploads.
func NewMedia(store ImageStore, publicURL string) *Media {
	return &Media{store: store, publicURL: strings.TrimRight(publicURL, "/")}
}

// Enabled reports whether uploads can be stored.
func (m *Media) Enabled() bool {
	return m != nil && m.store != nil
}

// Upload validates and stores img, returning its public URL.
func (m *Media) Upload(ctx context.Context, img Image) (string, error) {
	if !m.Enabled() {
		return "", validationError("%s", ErrMediaDisabled.Error())
	}
	if len(img.Data) == 0 {
		return "", validationError("image is empty")
	}
	if len(img.Data) > MaxImageBytes {
		return "", validationError("image is too large")
	}

	contentType := http.DetectContentType(img.Data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", validationError("unsupported image type %s", contentType)
	}

	key := imageKeyPrefix + uuid.NewString() + ext
	if err := m.store.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), contentType); err != nil {
		return "", err
	}
	return m.publicURL + "/" + key, nil
}

// Open streams a stored image by file name (the last path element of the
// URL returned by Upload).
func (m *Media) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !m.Enabled() {
		return nil, ErrMediaDisabled
	}
	if !validImageName(name) {
		return nil, validationError("invalid image name")
	}
	return m.store.Get(ctx, imageKeyPrefix+name)
}

// Remove deletes the object behind url when it was stored by Upload.
// URLs pointing elsewhere are ignored.
func (m *Media) Remove(ctx context.Context, url string) error {
	key, ok := m.keyFor(url)
	if !ok {
		return nil
	}
	return m.store.Delete(ctx, key)
}

func (m *Media) keyFor(url string) (string, bool) {
	if !m.Enabled() || url == "" {
		return "", false
	}
	prefix := m.publicURL + "/" + imageKeyPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if !validImageName(name) {
		return "", false
	}
	return imageKeyPrefix + name, true
}

func validImageName(name string) bool {
	return name != "" && name != "." && name != ".." && path.Base(name) == name
}
