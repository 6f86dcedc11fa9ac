package filestorage

import (
	"context"
	"fmt"
	"strings"

	"github.com/00Thor/CCPUR-sub000/internal/config"
)

// New builds the blob store selected by storage.driver
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "local", "":
		return NewLocalStorage(cfg.Storage.LocalPath, strings.TrimRight(cfg.Server.BaseURL, "/")+"/uploads")
	case "minio":
		m := cfg.Storage.MinIO
		store, err := NewMinIOStorage(MinIOConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			Region:    m.Region,
			UseSSL:    m.UseSSL,
			PublicURL: m.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "cloudinary":
		return NewCloudinaryStorage(cfg.Storage.Cloudinary.URL, cfg.Storage.Cloudinary.Folder)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
