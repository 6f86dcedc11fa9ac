package filestorage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStorage stores files as Cloudinary assets
type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage creates a store from a cloudinary:// URL
func NewCloudinaryStorage(cloudinaryURL, folder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: strings.Trim(folder, "/")}, nil
}

// Put implements BlobStore
func (s *CloudinaryStorage) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	publicID := strings.TrimSuffix(key, path.Ext(key))
	if s.folder != "" {
		publicID = s.folder + "/" + publicID
	}

	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload asset: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// Delete implements BlobStore
func (s *CloudinaryStorage) Delete(ctx context.Context, url string) error {
	resourceType, publicID, ok := parseCloudinaryURL(url)
	if !ok {
		return ErrForeignURL
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("destroy asset: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("destroy asset: %s", res.Error.Message)
	}
	// "not found" counts as deleted
	return nil
}

var versionSegment = regexp.MustCompile(`^v[0-9]+$`)

// parseCloudinaryURL extracts resource type and public id from a delivery URL of the form
// https://res.cloudinary.com/<cloud>/<type>/upload/[v<version>/]<public_id>[.<ext>]
func parseCloudinaryURL(raw string) (resourceType, publicID string, ok bool) {
	const host = "res.cloudinary.com/"
	i := strings.Index(raw, host)
	if i < 0 {
		return "", "", false
	}
	parts := strings.Split(raw[i+len(host):], "/")
	// cloud, type, "upload", ...public id
	if len(parts) < 4 || parts[2] != "upload" {
		return "", "", false
	}
	resourceType = parts[1]
	rest := parts[3:]
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	publicID = strings.Join(rest, "/")
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	if publicID == "" {
		return "", "", false
	}
	return resourceType, publicID, true
}
