// Package config handles loading and validating scene engine configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a local .env file for development secrets
//   - Overriding with GRAYLOGIC_* environment variables
//   - Validation of required fields
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Engine.StageConcurrency)
package config
