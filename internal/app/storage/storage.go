/*
Package storage is the blob store of the server: profile pictures and subject files
kept in an S3-compatible bucket and served from a public base URL.
*/
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"schoolmaps/internal/pkg/errs"
)

const (
	// MaxUploadBytes is the default upload limit (20 MB).
	MaxUploadBytes = 20 << 20

	// DownloadURLDuration is how long a presigned download URL stays valid.
	DownloadURLDuration = 15 * time.Minute

	// PrefixProfilePictures and PrefixFiles are the only top-level blob folders.
	PrefixProfilePictures = "profilePictures"
	PrefixFiles           = "files"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	PublicBaseURL     string
}

// BlobStore defines the public interface for the file storage service.
type BlobStore interface {
	// Put stores the object and returns its public URL.
	Put(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error
}

// NewBlobStore is the factory function for BlobStore.
func NewBlobStore(ctx context.Context, cfg ServiceConfig) (BlobStore, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(ctx, cfg)
}

// AuthorizePath checks that key lies inside one of uid's folders and is a clean path.
func AuthorizePath(uid, key string) error {
	if uid == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.Contains(key, "\\") {
		return errs.NewError(errs.ErrInvalidParams)
	}

	for _, prefix := range []string{PrefixProfilePictures, PrefixFiles} {
		folder := prefix + "/" + uid + "/"
		if strings.HasPrefix(key, folder) && len(key) > len(folder) {
			return nil
		}
	}
	return errs.NewError(errs.ErrBlobPathForbidden)
}

// imageTypes are accepted for profile pictures.
var imageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ValidateUpload checks size and, for profile pictures, the content type.
func ValidateUpload(key, contentType string, size, limit int64) error {
	if size <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if limit <= 0 {
		limit = MaxUploadBytes
	}
	if size > limit {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	if strings.HasPrefix(key, PrefixProfilePictures+"/") {
		mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		if _, ok := imageTypes[mediaType]; !ok {
			return errs.NewError(errs.ErrFileTypeInvalid)
		}
	}
	return nil
}

// PublicURL joins the public base URL and key, escaping each path segment.
func PublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.Join(segments, "/"))
}
