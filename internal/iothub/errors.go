package iothub

import "errors"

var (
	// ErrInvalidConnectionString is returned when the connection string lacks
	// HostName, SharedAccessKeyName or a base64 SharedAccessKey.
	ErrInvalidConnectionString = errors.New("iothub: invalid connection string")

	// ErrRequestFailed is returned when the registry answers with a non-2xx status.
	ErrRequestFailed = errors.New("iothub: request failed")

	// ErrInvalidResponse is returned when a response body cannot be decoded.
	ErrInvalidResponse = errors.New("iothub: invalid response")
)
