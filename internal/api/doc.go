// Package api implements the portal HTTP REST API.
//
// Endpoints live under /api/v1:
//   - device model CRUD and model images (avatars)
//   - read access to the mirrored devices, concentrators and edge devices
//   - the LoRaWAN gateway ID list
//   - sync job status and on-demand triggers
//   - health and Prometheus metrics
//
// Mirrored entities are read-only here; they are written by the sync jobs.
//
// # Graceful Degradation
//
// Image storage, the scheduler and the metrics handler are optional. Without
// them the corresponding endpoints answer 503 or are not mounted, and the
// rest of the API keeps working.
package api
