package iothub

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ConnectionString holds the parts of an IoT Hub service connection string.
type ConnectionString struct {
	HostName string
	KeyName  string
	Key      []byte
}

// ParseConnectionString parses
// "HostName=<hub>.azure-devices.net;SharedAccessKeyName=<policy>;SharedAccessKey=<base64>".
// Keys are matched case-insensitively and unknown keys are ignored.
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString
	var rawKey string

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Base64 keys end in '=', so split on the first one only.
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionString{}, fmt.Errorf("%w: malformed segment %q", ErrInvalidConnectionString, k)
		}
		switch strings.ToLower(k) {
		case "hostname":
			cs.HostName = v
		case "sharedaccesskeyname":
			cs.KeyName = v
		case "sharedaccesskey":
			rawKey = v
		}
	}

	var missing []string
	if cs.HostName == "" {
		missing = append(missing, "HostName")
	}
	if cs.KeyName == "" {
		missing = append(missing, "SharedAccessKeyName")
	}
	if rawKey == "" {
		missing = append(missing, "SharedAccessKey")
	}
	if len(missing) > 0 {
		return ConnectionString{}, fmt.Errorf("%w: missing %s", ErrInvalidConnectionString, strings.Join(missing, ", "))
	}

	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return ConnectionString{}, fmt.Errorf("%w: SharedAccessKey is not base64: %w", ErrInvalidConnectionString, err)
	}
	cs.Key = key

	return cs, nil
}
