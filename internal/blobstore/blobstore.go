package blobstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("blob_not_found")
	ErrInvalidKey   = errors.New("invalid_blob_key")
	ErrNotPublicURL = errors.New("url_not_served_by_store")
)

// Store keeps QR images keyed by file name. Upload overwrites an existing key.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Fetch(ctx context.Context, url string) ([]byte, error)
}
