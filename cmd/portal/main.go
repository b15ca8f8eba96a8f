// IoT Portal backend.
//
// The portal mirrors the cloud device registry (devices, LoRa concentrators,
// IoT Edge devices and LoRaWAN gateway IDs) into a local SQLite store on a
// schedule, manages device model images in blob storage and serves both over
// a REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/iot-portal/migrations"

	"github.com/nerrad567/iot-portal/internal/api"
	"github.com/nerrad567/iot-portal/internal/audit"
	"github.com/nerrad567/iot-portal/internal/concentrator"
	"github.com/nerrad567/iot-portal/internal/device"
	"github.com/nerrad567/iot-portal/internal/edgedevice"
	"github.com/nerrad567/iot-portal/internal/gateway"
	"github.com/nerrad567/iot-portal/internal/infrastructure/config"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	"github.com/nerrad567/iot-portal/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-portal/internal/infrastructure/logging"
	"github.com/nerrad567/iot-portal/internal/infrastructure/metrics"
	"github.com/nerrad567/iot-portal/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-portal/internal/iothub"
	"github.com/nerrad567/iot-portal/internal/modelimage"
	"github.com/nerrad567/iot-portal/internal/scheduler"
	"github.com/nerrad567/iot-portal/internal/syncjob"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// startupTimeout bounds the blob storage bootstrap at startup.
const startupTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the portal and blocks until ctx is cancelled or the API
// listener fails. Components are closed in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting IoT portal",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"cloud_provider", cfg.Portal.CloudProvider,
		"level", cfg.Logging.Level,
	)

	db, err := database.Open(database.Config{
		Path:           cfg.Database.Path,
		WALMode:        cfg.Database.WALMode,
		BusyTimeout:    cfg.Database.BusyTimeout,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry := metrics.New()
	health := map[string]api.HealthChecker{"database": db}
	auditRepo := audit.NewSQLiteRepository(db)

	images, err := modelimage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating image manager: %w", err)
	}
	images = modelimage.Instrument(images, cfg.Portal.CloudProvider, registry)
	initImages(ctx, images, log)

	recorders := []syncjob.Recorder{registry}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, influxRecorder{client: influxClient})
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		recorders = append(recorders, mqttRecorder{client: mqttClient, logger: log})
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	gateways := gateway.NewIDList()
	executor := syncjob.NewExecutor(log.With("component", "sync"), recorders...)
	sched := scheduler.New(executor, log.With("component", "scheduler"))

	if err := addSyncJobs(sched, cfg, db, gateways, log); err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	if mqttClient != nil {
		if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllSyncCommands(), byte(cfg.MQTT.QoS), syncCommandHandler(sched, auditRepo, log)); subErr != nil { //nolint:gosec // QoS validated by config
			log.Warn("subscribing to sync commands", "error", subErr)
		}
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Logger:        log.With("component", "api"),
		Version:       version,
		Models:        device.NewSQLiteModelRepository(db),
		Devices:       device.NewSQLiteRepository(db),
		Concentrators: concentrator.NewSQLiteRepository(db),
		EdgeDevices:   edgedevice.NewSQLiteRepository(db),
		Gateways:      gateways,
		Images:        images,
		Sync:          sched,
		Metrics:       registry.Handler(),
		Health:        health,
		Audit:         auditRepo,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	listenErr := server.Start(gctx)
	g.Go(func() error {
		select {
		case err, ok := <-listenErr:
			if ok && err != nil {
				return fmt.Errorf("API server: %w", err)
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})

	log.Info("IoT portal started", "api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port), "jobs", sched.Jobs())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down")
	return nil
}

// addSyncJobs registers every enabled job. Registry sync reads IoT Hub
// twins, so it only runs with the azure provider.
func addSyncJobs(sched *scheduler.Scheduler, cfg *config.Config, db *database.DB, gateways *gateway.IDList, log *logging.Logger) error {
	if !cfg.SyncEnabled() {
		log.Info("registry sync disabled")
		return nil
	}
	if cfg.Portal.CloudProvider != config.ProviderAzure {
		log.Warn("registry sync is only available with the azure provider", "cloud_provider", cfg.Portal.CloudProvider)
		return nil
	}

	hub, err := iothub.New(cfg.Azure.IoTHub.ConnectionString, iothub.Options{
		APIVersion: cfg.Azure.IoTHub.APIVersion,
		Timeout:    cfg.Azure.IoTHub.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating IoT Hub client: %w", err)
	}

	guard, err := syncjob.ParseGuard(cfg.Sync.ConcentratorGuard)
	if err != nil {
		return fmt.Errorf("concentrator guard: %w", err)
	}

	jobLog := log.With("component", "sync")
	pageSize := cfg.Sync.PageSize
	jobs := []struct {
		job syncjob.Job
		cfg config.SyncJobConfig
	}{
		{syncjob.NewDevicesJob(db, hub, pageSize, jobLog), cfg.Sync.Devices},
		{syncjob.NewConcentratorsJob(db, hub, pageSize, guard, jobLog), cfg.Sync.Concentrators},
		{syncjob.NewEdgeDevicesJob(db, hub, pageSize, jobLog), cfg.Sync.EdgeDevices},
		{syncjob.NewGatewayIDJob(hub, pageSize, gateways, jobLog), cfg.Sync.GatewayIDs},
	}
	for _, j := range jobs {
		if !j.cfg.Enabled {
			continue
		}
		if err := sched.Add(j.job, j.cfg.Interval); err != nil {
			return fmt.Errorf("scheduling %s: %w", j.job.Name(), err)
		}
	}
	return nil
}

// initImages uploads the default model image. A storage outage at startup
// is logged; the API reports image errors per request.
func initImages(ctx context.Context, images modelimage.Manager, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if err := images.InitializeDefaultImageBlob(ctx); err != nil {
		log.Error("initializing default model image", "error", err)
		return
	}
	log.Info("default model image ready")
}

// getConfigPath returns PORTAL_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("PORTAL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
