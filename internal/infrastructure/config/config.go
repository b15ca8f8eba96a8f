package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v7"
	"gopkg.in/yaml.v3"
)

// Cloud providers supported by the portal.
const (
	ProviderAzure = "azure"
	ProviderAWS   = "aws"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "PORTAL_"

// Config is the root configuration structure for the IoT portal.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Portal   PortalConfig   `yaml:"portal"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Azure    AzureConfig    `yaml:"azure" envPrefix:"AZURE_"`
	AWS      AWSConfig      `yaml:"aws" envPrefix:"AWS_"`
	Images   ImagesConfig   `yaml:"images" envPrefix:"IMAGES_"`
	Sync     SyncConfig     `yaml:"sync" envPrefix:"SYNC_"`
	MQTT     MQTTConfig     `yaml:"mqtt" envPrefix:"MQTT_"`
	API      APIConfig      `yaml:"api" envPrefix:"API_"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" envPrefix:"INFLUXDB_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOGGING_"`
}

// PortalConfig contains deployment-wide settings.
type PortalConfig struct {
	Name string `yaml:"name" env:"NAME"`
	// CloudProvider selects the registry and blob storage backends: "azure" or "aws".
	CloudProvider string `yaml:"cloud_provider" env:"CLOUD_PROVIDER"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"PATH"`
	WALMode     bool   `yaml:"wal_mode" env:"WAL_MODE"`
	BusyTimeout int    `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`

	// MaxConnections sizes the pool in WAL mode; without WAL the pool is
	// always a single connection.
	MaxConnections int `yaml:"max_connections" env:"MAX_CONNECTIONS"`
}

// AzureConfig groups the Azure IoT Hub and Blob Storage settings.
type AzureConfig struct {
	IoTHub  IoTHubConfig       `yaml:"iothub" envPrefix:"IOTHUB_"`
	Storage AzureStorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
}

// IoTHubConfig contains the device registry connection.
type IoTHubConfig struct {
	ConnectionString string        `yaml:"connection_string" env:"CONNECTION_STRING"`
	APIVersion       string        `yaml:"api_version" env:"API_VERSION"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// AzureStorageConfig contains the blob container used for device model images.
type AzureStorageConfig struct {
	ConnectionString string `yaml:"connection_string" env:"CONNECTION_STRING"`
	ContainerName    string `yaml:"container_name" env:"CONTAINER_NAME"`
}

// AWSConfig contains S3 settings for device model images.
type AWSConfig struct {
	Region       string `yaml:"region" env:"REGION"`
	AccessKey    string `yaml:"access_key" env:"ACCESS_KEY"`
	AccessSecret string `yaml:"access_secret" env:"ACCESS_SECRET"`
	S3Bucket     string `yaml:"s3_bucket" env:"S3_BUCKET"`
	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// ImagesConfig contains device model image settings.
type ImagesConfig struct {
	CacheMaxAge      int    `yaml:"cache_max_age" env:"CACHE_MAX_AGE"`
	DefaultImageName string `yaml:"default_image_name" env:"DEFAULT_IMAGE_NAME"`
}

// SyncConfig contains the periodic registry synchronization settings.
type SyncConfig struct {
	PageSize      int           `yaml:"page_size" env:"PAGE_SIZE"`
	Devices       SyncJobConfig `yaml:"devices" envPrefix:"DEVICES_"`
	Concentrators SyncJobConfig `yaml:"concentrators" envPrefix:"CONCENTRATORS_"`
	EdgeDevices   SyncJobConfig `yaml:"edge_devices" envPrefix:"EDGE_DEVICES_"`
	GatewayIDs    SyncJobConfig `yaml:"gateway_ids" envPrefix:"GATEWAY_IDS_"`

	// ConcentratorGuard selects when an existing concentrator row is
	// overwritten: GuardNewer (incoming version strictly greater) or
	// GuardInsertOnly (existing rows are never updated).
	ConcentratorGuard string `yaml:"concentrator_guard" env:"CONCENTRATOR_GUARD"`
}

// Version guard modes for SyncConfig.ConcentratorGuard.
const (
	GuardNewer      = "newer"
	GuardInsertOnly = "insert_only"
)

// SyncJobConfig controls one scheduled job.
type SyncJobConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker" envPrefix:"BROKER_"`
	Auth      MQTTAuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	QoS       int                 `yaml:"qos" env:"QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect" envPrefix:"RECONNECT_"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	TLS      bool   `yaml:"tls" env:"TLS"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     int `yaml:"max_delay" env:"MAX_DELAY"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host         string           `yaml:"host" env:"HOST"`
	Port         int              `yaml:"port" env:"PORT"`
	Timeouts     APITimeoutConfig `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	CORS         CORSConfig       `yaml:"cors"`
	MaxBodyBytes int64            `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" env:"READ"`
	Write int `yaml:"write" env:"WRITE"`
	Idle  int `yaml:"idle" env:"IDLE"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	Token         string `yaml:"token" env:"TOKEN"`
	Org           string `yaml:"org" env:"ORG"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	BatchSize     int    `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval int    `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern PORTAL_SECTION_KEY, for example
// PORTAL_DATABASE_PATH or PORTAL_AZURE_IOTHUB_CONNECTION_STRING.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			Name:          "IoT Portal",
			CloudProvider: ProviderAzure,
		},
		Database: DatabaseConfig{
			Path:           "./data/portal.db",
			WALMode:        true,
			BusyTimeout:    5,
			MaxConnections: 4,
		},
		Azure: AzureConfig{
			IoTHub: IoTHubConfig{
				APIVersion:     "2021-04-12",
				RequestTimeout: 30 * time.Second,
			},
			Storage: AzureStorageConfig{
				ContainerName: "device-images",
			},
		},
		Images: ImagesConfig{
			CacheMaxAge:      86400,
			DefaultImageName: "default-template-icon.png",
		},
		Sync: SyncConfig{
			PageSize:      100,
			Devices:       SyncJobConfig{Enabled: true, Interval: 10 * time.Minute},
			Concentrators: SyncJobConfig{Enabled: true, Interval: 10 * time.Minute},
			EdgeDevices:   SyncJobConfig{Enabled: true, Interval: 10 * time.Minute},
			GatewayIDs:    SyncJobConfig{Enabled: true, Interval: 5 * time.Minute},

			ConcentratorGuard: GuardNewer,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iot-portal",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodyBytes: 4 << 20,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies PORTAL_* environment variables on top of cfg.
// Variables that are not set leave the loaded value untouched.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	switch c.Portal.CloudProvider {
	case ProviderAzure:
		if c.Azure.Storage.ConnectionString == "" {
			errs = append(errs, "azure.storage.connection_string is required (set PORTAL_AZURE_STORAGE_CONNECTION_STRING)")
		}
		if c.Azure.Storage.ContainerName == "" {
			errs = append(errs, "azure.storage.container_name is required")
		}
		if c.SyncEnabled() && c.Azure.IoTHub.ConnectionString == "" {
			errs = append(errs, "azure.iothub.connection_string is required when sync is enabled")
		}
	case ProviderAWS:
		if c.AWS.Region == "" {
			errs = append(errs, "aws.region is required")
		}
		if c.AWS.S3Bucket == "" {
			errs = append(errs, "aws.s3_bucket is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("portal.cloud_provider must be %q or %q", ProviderAzure, ProviderAWS))
	}

	if c.Images.CacheMaxAge < 0 {
		errs = append(errs, "images.cache_max_age must not be negative")
	}
	if c.Images.DefaultImageName == "" {
		errs = append(errs, "images.default_image_name is required")
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 1000 {
		errs = append(errs, "sync.page_size must be between 1 and 1000")
	}
	if c.Sync.ConcentratorGuard != GuardNewer && c.Sync.ConcentratorGuard != GuardInsertOnly {
		errs = append(errs, fmt.Sprintf("sync.concentrator_guard must be %q or %q", GuardNewer, GuardInsertOnly))
	}
	for name, job := range map[string]SyncJobConfig{
		"devices":       c.Sync.Devices,
		"concentrators": c.Sync.Concentrators,
		"edge_devices":  c.Sync.EdgeDevices,
		"gateway_ids":   c.Sync.GatewayIDs,
	} {
		if job.Enabled && job.Interval < time.Second {
			errs = append(errs, fmt.Sprintf("sync.%s.interval must be at least 1s", name))
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SyncEnabled reports whether any registry sync job is enabled.
func (c *Config) SyncEnabled() bool {
	return c.Sync.Devices.Enabled || c.Sync.Concentrators.Enabled ||
		c.Sync.EdgeDevices.Enabled || c.Sync.GatewayIDs.Enabled
}

// GetReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) GetReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// GetWriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) GetWriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// GetIdleTimeout returns the keep-alive idle timeout as a Duration.
func (t APITimeoutConfig) GetIdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
