package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ThumbnailWidth is the width of generated thumbnails; height keeps the aspect ratio.
const ThumbnailWidth = 200

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

var (
	// ErrUnsupportedImage is returned for payloads that are not an accepted image type.
	ErrUnsupportedImage = errors.New("unsupported image type, allowed: jpg, png, gif")
	// ErrImageTooLarge is returned when the payload exceeds the configured limit.
	ErrImageTooLarge = errors.New("image exceeds the maximum upload size")
)

// ImageRefs points at a stored image and its thumbnail.
type ImageRefs struct {
	Image     string
	Thumbnail string
}

// Refs lists the non-empty references.
func (r ImageRefs) Refs() []string {
	refs := make([]string, 0, 2)
	for _, ref := range []string{r.Image, r.Thumbnail} {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Images stores product pictures with a generated thumbnail.
type Images struct {
	store    Store
	prefix   string
	maxBytes int64
	logger   *slog.Logger
}

// NewImages wraps store; objects are written under prefix.
func NewImages(store Store, prefix string, maxBytes int64, logger *slog.Logger) *Images {
	if logger == nil {
		logger = slog.Default()
	}
	return &Images{store: store, prefix: strings.Trim(prefix, "/"), maxBytes: maxBytes, logger: logger}
}

// Save validates data, writes it and its thumbnail, and returns both references.
// On partial failure the already written object is removed.
func (i *Images) Save(ctx context.Context, data []byte) (ImageRefs, error) {
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return ImageRefs{}, ErrImageTooLarge
	}
	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return ImageRefs{}, ErrUnsupportedImage
	}

	thumb, err := Thumbnail(data)
	if err != nil {
		return ImageRefs{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	id := uuid.NewString()
	refs := ImageRefs{
		Image:     path.Join(i.prefix, id+ext),
		Thumbnail: path.Join(i.prefix, "thumbnails", id+".jpg"),
	}
	if err := i.store.Put(ctx, refs.Image, data, contentType); err != nil {
		return ImageRefs{}, err
	}
	if err := i.store.Put(ctx, refs.Thumbnail, thumb, "image/jpeg"); err != nil {
		i.Release(ctx, ImageRefs{Image: refs.Image})
		return ImageRefs{}, err
	}
	return refs, nil
}

// Delete removes every reference and reports the ones that failed.
func (i *Images) Delete(ctx context.Context, refs ImageRefs) (failed []string, err error) {
	var errs []error
	for _, ref := range refs.Refs() {
		if delErr := i.store.Delete(ctx, ref); delErr != nil {
			failed = append(failed, ref)
			errs = append(errs, delErr)
		}
	}
	return failed, errors.Join(errs...)
}

// DeleteRef removes a single reference.
func (i *Images) DeleteRef(ctx context.Context, ref string) error {
	return i.store.Delete(ctx, ref)
}

// Release deletes refs and only logs failures.
func (i *Images) Release(ctx context.Context, refs ImageRefs) {
	if _, err := i.Delete(ctx, refs); err != nil {
		i.logger.Warn("release image", slog.Any("refs", refs.Refs()), slog.Any("error", err))
	}
}

// URL resolves a reference to its public address, empty for no reference.
func (i *Images) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return i.store.URL(ref)
}

// Thumbnail renders a ThumbnailWidth-wide JPEG of the image in data.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
