package modelimage

import (
	"context"
	"errors"
	"io"
)

// Operation names reported to an OperationRecorder.
const (
	OpChange     = "change_image"
	OpDelete     = "delete_image"
	OpSetDefault = "set_default_image"
	OpInitialize = "initialize_default_image"
	OpSyncCache  = "sync_cache_control"
)

// Operation statuses reported to an OperationRecorder.
const (
	StatusSuccess      = "success"
	StatusError        = "error"
	StatusNotSupported = "not_supported"
)

// OperationRecorder counts image operations.
type OperationRecorder interface {
	RecordImageOperation(provider, operation, status string)
}

// Instrument wraps m so that every operation is reported to rec.
func Instrument(m Manager, provider string, rec OperationRecorder) Manager {
	if rec == nil {
		return m
	}
	return &instrumented{next: m, provider: provider, rec: rec}
}

type instrumented struct {
	next     Manager
	provider string
	rec      OperationRecorder
}

func (i *instrumented) observe(op string, err error) {
	status := StatusSuccess
	switch {
	case errors.Is(err, ErrNotSupported):
		status = StatusNotSupported
	case err != nil:
		status = StatusError
	}
	i.rec.RecordImageOperation(i.provider, op, status)
}

func (i *instrumented) ChangeImage(ctx context.Context, modelID string, image io.Reader) (string, error) {
	uri, err := i.next.ChangeImage(ctx, modelID, image)
	i.observe(OpChange, err)
	return uri, err
}

func (i *instrumented) DeleteImage(ctx context.Context, modelID string) error {
	err := i.next.DeleteImage(ctx, modelID)
	i.observe(OpDelete, err)
	return err
}

func (i *instrumented) SetDefaultImage(ctx context.Context, modelID string) (string, error) {
	uri, err := i.next.SetDefaultImage(ctx, modelID)
	i.observe(OpSetDefault, err)
	return uri, err
}

func (i *instrumented) InitializeDefaultImageBlob(ctx context.Context) error {
	err := i.next.InitializeDefaultImageBlob(ctx)
	i.observe(OpInitialize, err)
	return err
}

func (i *instrumented) SyncImagesCacheControl(ctx context.Context) error {
	err := i.next.SyncImagesCacheControl(ctx)
	i.observe(OpSyncCache, err)
	return err
}

func (i *instrumented) ComputeImageURI(modelID string) string {
	return i.next.ComputeImageURI(modelID)
}
