package app

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/blob"
)

// OpenBlobStore builds the image store selected by BLOB_DRIVER. The returned
// directory is non-empty for the local driver and is served under /uploads.
func OpenBlobStore(ctx context.Context, cfg *Config) (blob.Store, string, error) {
	if strings.EqualFold(cfg.BlobDriver, "gcs") {
		store, err := blob.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON, cfg.BlobPublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}
	store, err := blob.NewLocalStore(cfg.BlobLocalDir, cfg.BlobPublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.Root(), nil
}
