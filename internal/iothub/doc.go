// Package iothub is a minimal Azure IoT Hub service client for reading the
// device twin registry.
//
// It signs requests with a shared access signature derived from the hub's
// service connection string and pages through query results using the
// x-ms-continuation header.
//
//	client, err := iothub.New(cfg.Azure.IoTHub.ConnectionString, iothub.Options{})
//	page, err := client.GetAllDevices(ctx, "", twin.FilterConcentrators, 100)
package iothub
