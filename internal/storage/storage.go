package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrNotFound     = errors.New("storage: object not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrAccessDenied = errors.New("storage: access denied")
)

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error)
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Key namespaces. Originals and processed outputs are scoped per owner;
// filters live in a shared namespace unless owned.
func UploadKey(ownerID, objectID, ext string) string {
	return path.Join("uploads", ownerID, objectID+ext)
}

func ProcessedKey(ownerID, objectID, ext string) string {
	return path.Join("processed", ownerID, objectID+ext)
}

func FilterKey(objectID, ext string) string {
	return path.Join("filters", objectID+ext)
}

func OwnerFilterKey(ownerID, objectID, ext string) string {
	return path.Join("filters", ownerID, objectID+ext)
}

// ValidateKey rejects keys that could escape the bucket namespace.
func ValidateKey(key string) error {
	if key == "" || len(key) > 1024 {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
