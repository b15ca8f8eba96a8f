package device

import (
	"github.com/nerrad567/iot-portal/internal/twin"
)

// LoRaWAN twin property names.
const (
	propAppEUI              = "AppEUI"
	propDevAddr             = "DevAddr"
	propGatewayID           = "GatewayID"
	propSensorDecoder       = "SensorDecoder"
	propClassType           = "ClassType"
	propDeduplication       = "Deduplication"
	propPreferredWindow     = "PreferredWindow"
	propDownlink            = "Downlink"
	propAlreadyLoggedInOnce = "AlreadyLoggedInOnce"
)

// FromTwin maps a registry twin to a local device. model may be nil when the
// twin's modelId tag does not match a known model; the device is then
// mirrored as a standard device. LoRaWAN settings are mapped only when the
// model supports LoRaWAN.
func FromTwin(tw *twin.Twin, model *Model) *Device {
	d := &Device{
		ID:                tw.DeviceID,
		Name:              tw.Tag(twin.TagDeviceName),
		DeviceModelID:     tw.Tag(twin.TagModelID),
		Version:           tw.Version,
		IsConnected:       tw.IsConnected(),
		IsEnabled:         tw.IsEnabled(),
		StatusUpdatedTime: tw.StatusUpdatedTime,
		LastActiveTime:    tw.LastActivityTime,
		Tags:              tw.StringTags(twin.TagDeviceName, twin.TagModelID),
	}
	if d.Name == "" {
		d.Name = tw.DeviceID
	}
	if len(d.Tags) == 0 {
		d.Tags = nil
	}

	if model != nil && model.SupportsLoRaWAN {
		d.SupportsLoRaWAN = true
		d.LoRaWAN = loRaWANFromTwin(tw)
	}
	return d
}

func loRaWANFromTwin(tw *twin.Twin) *LoRaWANSettings {
	devAddr := tw.Reported(propDevAddr)
	if devAddr == "" {
		devAddr = tw.Desired(propDevAddr)
	}
	appEUI := tw.Desired(propAppEUI)

	return &LoRaWANSettings{
		UseOTAA:             appEUI != "",
		AppEUI:              appEUI,
		DevAddr:             devAddr,
		GatewayID:           tw.Desired(propGatewayID),
		SensorDecoder:       tw.Desired(propSensorDecoder),
		ClassType:           tw.Desired(propClassType),
		Deduplication:       tw.Desired(propDeduplication),
		PreferredWindow:     tw.Desired(propPreferredWindow),
		Downlink:            tw.DesiredBool(propDownlink),
		AlreadyLoggedInOnce: tw.ReportedBool(propAlreadyLoggedInOnce),
	}
}
