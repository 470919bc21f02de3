package config

import "time"

// Config is the root configuration structure for backstop.
// It contains all configuration sections for the different components.
type Config struct {
	// Store selects and configures the backup store.
	Store StoreConfig `yaml:"store"`

	// Cluster describes the partitions of the cluster and where their
	// exporter positions come from.
	Cluster ClusterConfig `yaml:"cluster"`

	// Retention configures the scheduled pruning of old backups.
	Retention RetentionConfig `yaml:"retention"`

	// Restore configures restore plan resolution.
	Restore RestoreConfig `yaml:"restore"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing, and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and configures the backup store.
type StoreConfig struct {
	// Backend is the store implementation.
	// Options: "memory", "sqlite", "s3"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite catalog configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// S3 contains S3 object storage configuration.
	S3 S3Config `yaml:"s3"`
}

// SQLiteConfig contains SQLite catalog configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/backups.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// WAL reports whether Write-Ahead Logging is enabled.
func (c SQLiteConfig) WAL() bool {
	return c.WALMode == nil || *c.WALMode
}

// S3Config contains S3 object storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `yaml:"bucket"`

	// Region is the AWS region.
	Region string `yaml:"region"`

	// Prefix is the key prefix all objects are stored under.
	// Default: "backups"
	Prefix string `yaml:"prefix"`

	// Endpoint is a custom endpoint for S3-compatible storage.
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey are static credentials.
	// The AWS default credential chain is used when they are empty.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// ForcePathStyle uses path-style addressing, required by most
	// S3-compatible servers.
	ForcePathStyle bool `yaml:"force_path_style"`

	// FetchConcurrency bounds concurrent status downloads when listing.
	// Default: 8
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

// ClusterConfig describes the cluster being backed up.
type ClusterConfig struct {
	// PartitionCount is the number of partitions, numbered from 1.
	PartitionCount int `yaml:"partition_count"`

	// PositionsFile is a YAML file mapping partition ids to the last
	// position acknowledged by the exporter.
	PositionsFile string `yaml:"positions_file"`

	// WatchPositions reloads the positions file when it changes.
	// Default: false
	WatchPositions bool `yaml:"watch_positions"`

	// CheckpointIDOffset is subtracted from checkpoint ids before they are
	// read as epoch milliseconds.
	// Default: 0
	CheckpointIDOffset int64 `yaml:"checkpoint_id_offset"`
}

// RetentionConfig configures the scheduled pruning of old backups.
type RetentionConfig struct {
	// Enabled controls whether the retention scheduler runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Window is how long backups are kept, measured back from the newest
	// completed backup of each partition.
	// Default: 168h
	Window time.Duration `yaml:"window"`

	// Schedule is a cron expression or "@every <duration>" descriptor.
	// Default: "@every 5m"
	Schedule string `yaml:"schedule"`

	// Parallelism bounds the number of partitions pruned concurrently.
	// Default: 4
	Parallelism int `yaml:"parallelism"`

	// DryRun computes decisions without changing the store.
	// Default: false
	DryRun bool `yaml:"dry_run"`
}

// IsEnabled reports whether the retention scheduler runs.
func (c RetentionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RestoreConfig configures restore plan resolution.
type RestoreConfig struct {
	// Parallelism bounds the number of partitions resolved concurrently.
	// Default: 8
	Parallelism int `yaml:"parallelism"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks credentials and secret-looking values in logs.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`
}

// Redact reports whether secrets are masked in logs.
func (c LoggingConfig) Redact() bool {
	return c.RedactSecrets == nil || *c.RedactSecrets
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is the address the metrics and health endpoints listen on.
	// Default: "127.0.0.1:9600"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "backstop"
	Namespace string `yaml:"namespace"`

	// Subsystem is the subsystem of the retention gauges.
	// Default: "retention"
	Subsystem string `yaml:"subsystem"`
}

// IsEnabled reports whether the metrics endpoint is served.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "backstop"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for span exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/healthz"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/readyz"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
