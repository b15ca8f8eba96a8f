package twin

import (
	"context"
	"fmt"
	"time"
)

// Well-known tag keys written by the portal when devices are provisioned.
const (
	TagDeviceName = "deviceName"
	TagModelID    = "modelId"
	TagDeviceType = "deviceType"
	TagLoraRegion = "loraRegion"
)

// DeviceTypeConcentrator is the deviceType tag carried by LoRaWAN concentrators.
const DeviceTypeConcentrator = "LoRa Concentrator"

// Registry query filters for each mirrored category.
const (
	FilterDevices       = "(NOT is_defined(tags.deviceType) OR tags.deviceType != 'LoRa Concentrator') AND capabilities.iotEdge = false"
	FilterConcentrators = "tags.deviceType = 'LoRa Concentrator'"
	FilterEdgeDevices   = "capabilities.iotEdge = true"
)

// Twin is a read-only snapshot of one registry entry.
type Twin struct {
	DeviceID          string         `json:"deviceId"`
	ETag              string         `json:"etag,omitempty"`
	Version           int64          `json:"version"`
	Status            string         `json:"status,omitempty"`
	ConnectionState   string         `json:"connectionState,omitempty"`
	StatusUpdatedTime *time.Time     `json:"statusUpdatedTime,omitempty"`
	LastActivityTime  *time.Time     `json:"lastActivityTime,omitempty"`
	DeviceScope       string         `json:"deviceScope,omitempty"`
	Capabilities      Capabilities   `json:"capabilities"`
	Tags              map[string]any `json:"tags,omitempty"`
	Properties        Properties     `json:"properties"`
}

// Capabilities lists registry-managed device capabilities.
type Capabilities struct {
	IoTEdge bool `json:"iotEdge"`
}

// Properties holds the desired and reported property documents.
type Properties struct {
	Desired  map[string]any `json:"desired,omitempty"`
	Reported map[string]any `json:"reported,omitempty"`
}

// Page is one response of a paged registry query.
type Page struct {
	Items      []Twin
	TotalItems int
	// NextPage is the opaque continuation token; empty when no page follows.
	NextPage string
}

// Registry reads twins from the external device registry.
// An empty continuationToken requests the first page.
type Registry interface {
	GetAllDevices(ctx context.Context, continuationToken, filter string, pageSize int) (*Page, error)
}

// Tag returns a tag value rendered as a string, or "" when unset.
func (t *Twin) Tag(key string) string {
	return stringValue(t.Tags[key])
}

// Desired returns a desired property rendered as a string.
func (t *Twin) Desired(key string) string {
	return stringValue(t.Properties.Desired[key])
}

// Reported returns a reported property rendered as a string.
func (t *Twin) Reported(key string) string {
	return stringValue(t.Properties.Reported[key])
}

// DesiredBool returns a desired property as a bool; non-bool values are false.
func (t *Twin) DesiredBool(key string) bool {
	b, _ := t.Properties.Desired[key].(bool)
	return b
}

// ReportedBool returns a reported property as a bool; non-bool values are false.
func (t *Twin) ReportedBool(key string) bool {
	b, _ := t.Properties.Reported[key].(bool)
	return b
}

// IsConnected reports whether the registry sees the device as connected.
func (t *Twin) IsConnected() bool {
	return t.ConnectionState == "Connected"
}

// IsEnabled reports whether the device may connect.
func (t *Twin) IsEnabled() bool {
	return t.Status == "enabled"
}

// StringTags returns every tag except the listed keys, rendered as strings.
func (t *Twin) StringTags(exclude ...string) map[string]string {
	skip := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		skip[k] = true
	}

	out := make(map[string]string, len(t.Tags))
	for k, v := range t.Tags {
		if skip[k] || v == nil {
			continue
		}
		out[k] = stringValue(v)
	}
	return out
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; integral values print without a fraction.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}
