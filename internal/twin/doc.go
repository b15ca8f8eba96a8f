// Package twin defines the device registry contract the sync jobs consume.
//
// A Twin is the registry's view of one device: identity, a monotonically
// increasing version, connectivity, tags and desired/reported properties.
// Registry pages through twins matching a filter; the iothub package provides
// the Azure IoT Hub implementation.
package twin
