// Package device holds the local mirror of registry devices and the device
// models they are provisioned from.
//
// Devices are written only by the devices sync job, which maps each twin
// with FromTwin and upserts it guarded by the twin version. Models are
// managed through the API; a model's ID is the key of its image in blob
// storage.
package device
