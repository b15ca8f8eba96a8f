package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/iot-portal/internal/audit"
	"github.com/nerrad567/iot-portal/internal/concentrator"
	"github.com/nerrad567/iot-portal/internal/device"
	"github.com/nerrad567/iot-portal/internal/edgedevice"
	"github.com/nerrad567/iot-portal/internal/gateway"
	"github.com/nerrad567/iot-portal/internal/infrastructure/config"
	"github.com/nerrad567/iot-portal/internal/infrastructure/logging"
	"github.com/nerrad567/iot-portal/internal/modelimage"
	"github.com/nerrad567/iot-portal/internal/scheduler"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SyncController triggers sync jobs and reports their state.
// *scheduler.Scheduler implements it.
type SyncController interface {
	Trigger(name string) error
	Status() []scheduler.JobStatus
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Version string

	Models        device.ModelRepository
	Devices       device.Repository
	Concentrators concentrator.Repository
	EdgeDevices   edgedevice.Repository
	Gateways      *gateway.IDList

	// Images is optional; avatar endpoints answer 503 without it.
	Images modelimage.Manager

	// Sync is optional; trigger endpoints answer 503 without it.
	Sync SyncController

	// Metrics is mounted at /api/v1/metrics when set.
	Metrics http.Handler

	// Health lists the components reported by /api/v1/health, by name.
	Health map[string]HealthChecker

	// Audit is optional; changes are not recorded and GET /audit answers
	// 503 without it.
	Audit audit.Repository
}

// Server is the portal HTTP API server.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	version string

	models        device.ModelRepository
	devices       device.Repository
	concentrators concentrator.Repository
	edgeDevices   edgedevice.Repository
	gateways      *gateway.IDList
	images        modelimage.Manager
	sync          SyncController
	metrics       http.Handler
	health        map[string]HealthChecker
	audit         audit.Repository

	server *http.Server
}

// New creates a new API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Models == nil || deps.Devices == nil || deps.Concentrators == nil || deps.EdgeDevices == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Gateways == nil {
		deps.Gateways = gateway.NewIDList()
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		version:       deps.Version,
		models:        deps.Models,
		devices:       deps.Devices,
		concentrators: deps.Concentrators,
		edgeDevices:   deps.EdgeDevices,
		gateways:      deps.Gateways,
		images:        deps.Images,
		sync:          deps.Sync,
		metrics:       deps.Metrics,
		health:        deps.Health,
		audit:         deps.Audit,
	}, nil
}

// Handler returns the fully wired router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// Listener errors after startup are logged and also reported on the
// returned channel, which is closed when the listener exits.
func (s *Server) Start(_ context.Context) <-chan error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.GetReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.GetWriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.GetIdleTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
			errCh <- err
		}
	}()
	return errCh
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
