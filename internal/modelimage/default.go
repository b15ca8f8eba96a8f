package modelimage

import (
	"bytes"
	_ "embed"
)

//go:embed assets/default-template-icon.png
var defaultImage []byte

// DefaultImage returns a copy of the bundled default model image.
func DefaultImage() []byte {
	return bytes.Clone(defaultImage)
}
