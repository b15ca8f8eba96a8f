// Package config handles loading and validating the IoT portal configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with PORTAL_* environment variables
//   - Validation of required fields per cloud provider
//   - Default value handling
//
// Secrets (IoT Hub and storage connection strings, AWS keys, MQTT passwords)
// should be supplied through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Portal.CloudProvider)
package config
