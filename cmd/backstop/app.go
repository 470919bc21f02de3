package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/backup/retention"
	"mercator-hq/backstop/pkg/backup/store"
	"mercator-hq/backstop/pkg/cli"
	"mercator-hq/backstop/pkg/cluster"
	"mercator-hq/backstop/pkg/config"
	"mercator-hq/backstop/pkg/restore"
	"mercator-hq/backstop/pkg/telemetry/logging"
)

// loadConfig loads the configuration named by --config and applies the
// global flags to it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	lc := logging.ConfigFrom(cfg.Telemetry.Logging)
	lc.Writer = os.Stderr
	logger, err := logging.New(lc)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

func storeConfig(cfg *config.StoreConfig) store.Config {
	return store.Config{
		Backend: cfg.Backend,
		SQLite: &store.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WAL(),
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		},
		S3: &store.S3Config{
			Bucket:           cfg.S3.Bucket,
			Region:           cfg.S3.Region,
			Prefix:           cfg.S3.Prefix,
			Endpoint:         cfg.S3.Endpoint,
			AccessKeyID:      cfg.S3.AccessKeyID,
			SecretAccessKey:  cfg.S3.SecretAccessKey,
			ForcePathStyle:   cfg.S3.ForcePathStyle,
			FetchConcurrency: cfg.S3.FetchConcurrency,
		},
	}
}

func openStore(ctx context.Context, cfg *config.Config) (backup.Store, error) {
	st, err := store.New(ctx, storeConfig(&cfg.Store))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	return st, nil
}

func idGenerator(cfg *config.Config) backup.CheckpointIDGenerator {
	return backup.CheckpointIDGenerator{Offset: cfg.Cluster.CheckpointIDOffset}
}

func retentionConfig(cfg *config.RetentionConfig) *retention.Config {
	schedule := cfg.Schedule
	if !cfg.IsEnabled() {
		schedule = ""
	}
	return &retention.Config{
		Window:      cfg.Window,
		Schedule:    schedule,
		Parallelism: cfg.Parallelism,
		DryRun:      cfg.DryRun,
	}
}

func restoreConfig(cfg *config.RestoreConfig) *restore.Config {
	return &restore.Config{Parallelism: cfg.Parallelism}
}

// partitionsToList returns the partitions a listing covers: the one given
// by --partition, or every partition of the cluster when it is 0.
func partitionsToList(cfg *config.Config, partition int) ([]int, error) {
	if partition < 0 || partition > cfg.Cluster.PartitionCount {
		return nil, fmt.Errorf("partition %d out of range 1..%d", partition, cfg.Cluster.PartitionCount)
	}
	if partition > 0 {
		return []int{partition}, nil
	}
	topology, err := cluster.NewStaticTopology(cfg.Cluster.PartitionCount)
	if err != nil {
		return nil, err
	}
	return topology.Partitions(context.Background())
}

// parsePositions parses repeated "partition=position" flag values.
func parsePositions(values []string) (cluster.StaticPositions, error) {
	positions := make(cluster.StaticPositions, len(values))
	for _, v := range values {
		p, pos, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid position %q (expected partition=position)", v)
		}
		partition, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || partition < 1 {
			return nil, fmt.Errorf("invalid partition in %q", v)
		}
		position, err := strconv.ParseInt(strings.TrimSpace(pos), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid position in %q: %w", v, err)
		}
		positions[partition] = position
	}
	return positions, nil
}
