package device

import "time"

// Device is the local mirror of a registry twin for a standard or LoRaWAN device.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DeviceModelID string `json:"device_model_id,omitempty"`

	// Version is the registry twin version this row was last synced from.
	Version int64 `json:"version"`

	IsConnected       bool       `json:"is_connected"`
	IsEnabled         bool       `json:"is_enabled"`
	StatusUpdatedTime *time.Time `json:"status_updated_time,omitempty"`
	LastActiveTime    *time.Time `json:"last_active_time,omitempty"`

	// Tags are the custom twin tags, excluding the ones mapped to fields above.
	Tags map[string]string `json:"tags,omitempty"`

	SupportsLoRaWAN bool             `json:"supports_lorawan"`
	LoRaWAN         *LoRaWANSettings `json:"lorawan,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoRaWANSettings are the network settings of a LoRaWAN device, read from
// the twin's desired and reported properties.
type LoRaWANSettings struct {
	UseOTAA             bool   `json:"use_otaa"`
	AppEUI              string `json:"app_eui,omitempty"`
	DevAddr             string `json:"dev_addr,omitempty"`
	GatewayID           string `json:"gateway_id,omitempty"`
	SensorDecoder       string `json:"sensor_decoder,omitempty"`
	ClassType           string `json:"class_type,omitempty"`
	Deduplication       string `json:"deduplication,omitempty"`
	PreferredWindow     string `json:"preferred_window,omitempty"`
	Downlink            bool   `json:"downlink"`
	AlreadyLoggedInOnce bool   `json:"already_logged_in_once"`
}

// GetID implements the sync entity contract.
func (d *Device) GetID() string { return d.ID }

// GetVersion implements the sync entity contract.
func (d *Device) GetVersion() int64 { return d.Version }

// Model is a device model: the template devices are provisioned from.
// Its ID is the key under which the model image is stored.
type Model struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	SupportsLoRaWAN bool      `json:"supports_lorawan"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
