package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "BACKSTOP_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. Unknown fields are
// rejected. The result is not validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention BACKSTOP_SECTION_FIELD (e.g., BACKSTOP_STORE_BACKEND).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = Default()
	} else {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, readErr)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// A variable that cannot be parsed for its field is an error.
func applyEnvOverrides(cfg *Config) error {
	env := envReader{}

	// Store overrides
	env.string("STORE_BACKEND", &cfg.Store.Backend)
	env.string("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	env.string("STORE_SQLITE_DRIVER", &cfg.Store.SQLite.Driver)
	env.boolPtr("STORE_SQLITE_WAL_MODE", &cfg.Store.SQLite.WALMode)
	env.string("STORE_S3_BUCKET", &cfg.Store.S3.Bucket)
	env.string("STORE_S3_REGION", &cfg.Store.S3.Region)
	env.string("STORE_S3_PREFIX", &cfg.Store.S3.Prefix)
	env.string("STORE_S3_ENDPOINT", &cfg.Store.S3.Endpoint)
	env.string("STORE_S3_ACCESS_KEY_ID", &cfg.Store.S3.AccessKeyID)
	env.string("STORE_S3_SECRET_ACCESS_KEY", &cfg.Store.S3.SecretAccessKey)
	env.bool("STORE_S3_FORCE_PATH_STYLE", &cfg.Store.S3.ForcePathStyle)
	env.int("STORE_S3_FETCH_CONCURRENCY", &cfg.Store.S3.FetchConcurrency)

	// Cluster overrides
	env.int("CLUSTER_PARTITION_COUNT", &cfg.Cluster.PartitionCount)
	env.string("CLUSTER_POSITIONS_FILE", &cfg.Cluster.PositionsFile)
	env.bool("CLUSTER_WATCH_POSITIONS", &cfg.Cluster.WatchPositions)
	env.int64("CLUSTER_CHECKPOINT_ID_OFFSET", &cfg.Cluster.CheckpointIDOffset)

	// Retention overrides
	env.boolPtr("RETENTION_ENABLED", &cfg.Retention.Enabled)
	env.duration("RETENTION_WINDOW", &cfg.Retention.Window)
	env.string("RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	env.int("RETENTION_PARALLELISM", &cfg.Retention.Parallelism)
	env.bool("RETENTION_DRY_RUN", &cfg.Retention.DryRun)

	// Restore overrides
	env.int("RESTORE_PARALLELISM", &cfg.Restore.Parallelism)

	// Telemetry overrides
	env.string("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.string("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolPtr("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.string("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	env.string("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	env.bool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.string("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	env.bool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)

	if len(env.errs) > 0 {
		return ValidationError{Errors: env.errs}
	}
	return nil
}

// envReader reads BACKSTOP_ variables into configuration fields and collects
// the variables that fail to parse.
type envReader struct {
	errs []FieldError
}

func (r *envReader) lookup(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	return val, val != ""
}

func (r *envReader) fail(name string, err error) {
	r.errs = append(r.errs, FieldError{Field: EnvPrefix + name, Message: err.Error()})
}

func (r *envReader) string(name string, dst *string) {
	if val, ok := r.lookup(name); ok {
		*dst = val
	}
}

func (r *envReader) bool(name string, dst *bool) {
	if val, ok := r.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) boolPtr(name string, dst **bool) {
	if val, ok := r.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = &b
	}
}

func (r *envReader) int(name string, dst *int) {
	if val, ok := r.lookup(name); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = i
	}
}

func (r *envReader) int64(name string, dst *int64) {
	if val, ok := r.lookup(name); ok {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = i
	}
}

func (r *envReader) float(name string, dst *float64) {
	if val, ok := r.lookup(name); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) duration(name string, dst *time.Duration) {
	if val, ok := r.lookup(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = d
	}
}
