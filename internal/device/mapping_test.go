package device

import (
	"testing"
	"time"

	"github.com/nerrad567/iot-portal/internal/twin"
)

func sampleTwin() *twin.Twin {
	seen := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	return &twin.Twin{
		DeviceID:         "lora-7",
		Version:          12,
		Status:           "enabled",
		ConnectionState:  "Disconnected",
		LastActivityTime: &seen,
		Tags: map[string]any{
			twin.TagDeviceName: "Car park sensor",
			twin.TagModelID:    "model-lora",
			"zone":             "B2",
		},
		Properties: twin.Properties{
			Desired: map[string]any{
				"AppEUI":        "70B3D57ED0000001",
				"GatewayID":     "gw-1",
				"SensorDecoder": "DecoderValueSensor",
				"ClassType":     "C",
				"Downlink":      true,
			},
			Reported: map[string]any{
				"DevAddr":             "0028B1B0",
				"AlreadyLoggedInOnce": true,
			},
		},
	}
}

func TestFromTwin_LoRaWANModel(t *testing.T) {
	d := FromTwin(sampleTwin(), &Model{ID: "model-lora", SupportsLoRaWAN: true})

	if d.ID != "lora-7" || d.Name != "Car park sensor" || d.DeviceModelID != "model-lora" || d.Version != 12 {
		t.Errorf("identity = %+v", d)
	}
	if d.IsConnected || !d.IsEnabled {
		t.Errorf("flags connected=%v enabled=%v, want false/true", d.IsConnected, d.IsEnabled)
	}
	if len(d.Tags) != 1 || d.Tags["zone"] != "B2" {
		t.Errorf("Tags = %v, want only custom tags", d.Tags)
	}
	if !d.SupportsLoRaWAN || d.LoRaWAN == nil {
		t.Fatal("expected LoRaWAN settings")
	}
	lw := d.LoRaWAN
	if !lw.UseOTAA || lw.AppEUI != "70B3D57ED0000001" || lw.DevAddr != "0028B1B0" || lw.GatewayID != "gw-1" {
		t.Errorf("LoRaWAN = %+v", lw)
	}
	if lw.ClassType != "C" || !lw.Downlink || !lw.AlreadyLoggedInOnce {
		t.Errorf("LoRaWAN = %+v", lw)
	}
}

func TestFromTwin_StandardAndUnknownModel(t *testing.T) {
	for name, model := range map[string]*Model{
		"standard model": {ID: "model-lora", SupportsLoRaWAN: false},
		"unknown model":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			d := FromTwin(sampleTwin(), model)
			if d.SupportsLoRaWAN || d.LoRaWAN != nil {
				t.Errorf("expected standard device, got %+v", d.LoRaWAN)
			}
			if d.DeviceModelID != "model-lora" {
				t.Errorf("DeviceModelID = %q", d.DeviceModelID)
			}
		})
	}
}

func TestFromTwin_NameFallsBackToID(t *testing.T) {
	d := FromTwin(&twin.Twin{DeviceID: "bare", Version: 1}, nil)
	if d.Name != "bare" {
		t.Errorf("Name = %q, want device ID", d.Name)
	}
	if d.Tags != nil {
		t.Errorf("Tags = %v, want nil", d.Tags)
	}
}
