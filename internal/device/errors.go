package device

import (
	"errors"
	"fmt"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
)

// Domain errors for the device package. Not-found errors also match
// database.ErrNotFound.
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = fmt.Errorf("device: %w", database.ErrNotFound)

	// ErrDeviceExists is returned when inserting a device whose ID is taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrModelNotFound is returned when a device model ID does not exist.
	ErrModelNotFound = fmt.Errorf("device model: %w", database.ErrNotFound)

	// ErrModelExists is returned when creating a model whose ID is taken.
	ErrModelExists = errors.New("device model: already exists")

	// ErrInvalidModel is returned when model validation fails.
	ErrInvalidModel = errors.New("device model: invalid")
)
