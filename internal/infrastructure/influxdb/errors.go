package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: run history disabled")

	// ErrConnectionFailed wraps the failure of the ping performed by Connect.
	ErrConnectionFailed = errors.New("influxdb: cannot reach server")

	// ErrNotConnected is returned by HealthCheck after Close or on a zero Client.
	ErrNotConnected = errors.New("influxdb: client closed")

	// ErrUnhealthy is returned when the server answers the ping but reports
	// itself unhealthy.
	ErrUnhealthy = errors.New("influxdb: server unhealthy")
)
