// Package config provides configuration management for backstop.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Unknown fields in the file are rejected.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention BACKSTOP_SECTION_FIELD.
// For example:
//
//   - BACKSTOP_STORE_BACKEND overrides store.backend
//   - BACKSTOP_RETENTION_WINDOW overrides retention.window
//   - BACKSTOP_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A variable that does not parse for its field fails the load.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	store:
//	  backend: s3
//	  s3:
//	    bucket: cluster-backups
//	    region: eu-west-1
//	cluster:
//	  partition_count: 3
//	  positions_file: /var/lib/backstop/positions.yaml
//	  watch_positions: true
//	retention:
//	  window: 168h
//	  schedule: "0 * * * *"
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
