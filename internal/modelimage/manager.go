// Package modelimage stores device model images in cloud blob storage.
//
// One Manager interface has two variants: Azure Blob Storage and AWS S3,
// selected by portal.cloud_provider. Images are keyed by device model ID,
// served publicly and carry a Cache-Control header built from
// images.cache_max_age. Vendor failures are reported as ErrInternalServer
// joined with the original error; nothing is retried.
package modelimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrInternalServer classifies every storage vendor failure.
	ErrInternalServer = errors.New("modelimage: internal server error")

	// ErrNotSupported is returned by operations a provider does not implement.
	ErrNotSupported = errors.New("modelimage: operation not supported")

	// ErrInvalidModelID is returned for an empty model ID.
	ErrInvalidModelID = errors.New("modelimage: model id is required")
)

// Manager manages device model images.
type Manager interface {
	// ChangeImage uploads image under modelID, replacing any existing
	// object, and returns the public URI.
	ChangeImage(ctx context.Context, modelID string, image io.Reader) (string, error)

	// DeleteImage removes the image for modelID. A missing object is not an error.
	DeleteImage(ctx context.Context, modelID string) error

	// SetDefaultImage uploads the bundled default image under modelID.
	SetDefaultImage(ctx context.Context, modelID string) (string, error)

	// InitializeDefaultImageBlob uploads the default image under its own key.
	InitializeDefaultImageBlob(ctx context.Context) error

	// SyncImagesCacheControl re-applies the Cache-Control header to every
	// stored image.
	SyncImagesCacheControl(ctx context.Context) error

	// ComputeImageURI returns the public URI for modelID without contacting
	// the storage service.
	ComputeImageURI(modelID string) string
}

// cacheControl formats the Cache-Control header value.
func cacheControl(maxAge int) string {
	return fmt.Sprintf("max-age=%d, must-revalidate", maxAge)
}

// vendorError classifies err as ErrInternalServer while keeping it matchable.
func vendorError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrInternalServer, op, key, err)
}

// bufferImage reads the whole image so it can be sized, sniffed and replayed.
func bufferImage(r io.Reader) (*bytes.Reader, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	return bytes.NewReader(data), http.DetectContentType(data), nil
}

func checkModelID(id string) error {
	if id == "" {
		return ErrInvalidModelID
	}
	return nil
}
