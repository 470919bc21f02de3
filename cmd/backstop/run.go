package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/backstop/pkg/backup/retention"
	"mercator-hq/backstop/pkg/cli"
	"mercator-hq/backstop/pkg/cluster"
	"mercator-hq/backstop/pkg/config"
	"mercator-hq/backstop/pkg/telemetry"
	"mercator-hq/backstop/pkg/telemetry/health"
	"mercator-hq/backstop/pkg/telemetry/metrics"
)

const shutdownTimeout = 10 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled retention and serve metrics and health",
	Long: `Run the retention scheduler until interrupted.

Each scheduled round prunes every partition. Metrics, liveness and readiness
are served on telemetry.metrics.listen_address; readiness checks that the
store is reachable and, when a positions file is configured, that every
partition has an exported position.

Examples:
  # Start with a config file
  backstop run --config /etc/backstop/backstop.yaml

  # Override the telemetry listen address
  backstop run --listen 0.0.0.0:9600

  # Log what each round would delete without deleting
  backstop run --dry-run`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override telemetry listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "compute retention decisions without changing the store")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.dryRun {
		cfg.Retention.DryRun = true
	}

	tel, err := telemetry.New(&cfg.Telemetry, health.VersionInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err != nil {
		return cli.NewConfigError("telemetry", err.Error())
	}
	logger := tel.Logger()
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := cli.SetupSignalHandler(parent)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer st.Close()

	topology, err := cluster.NewStaticTopology(cfg.Cluster.PartitionCount)
	if err != nil {
		return cli.NewConfigError("cluster.partition_count", err.Error())
	}

	tel.Health().RegisterCheck("store", health.StoreCheck(st))
	if cfg.Cluster.PositionsFile != "" {
		positions, err := watchPositions(ctx, logger, &cfg.Cluster)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer positions.StopWatching()
		tel.Health().RegisterCheck("positions", health.PositionsCheck(positions, cfg.Cluster.PartitionCount))
	}

	if err := tel.Metrics().WatchStore(metrics.InventorySource{Store: st, Topology: topology}); err != nil {
		return cli.NewCommandError("run", err)
	}

	pruner, err := retention.NewPruner(st, topology, retentionConfig(&cfg.Retention),
		retention.WithRegisterer(tel.Metrics().Registerer()),
		retention.WithMetricsNamespace(tel.Metrics().Namespace(), cfg.Telemetry.Metrics.Subsystem),
		retention.WithIDGenerator(idGenerator(cfg)),
		retention.WithLogger(logger),
	)
	if err != nil {
		return cli.NewConfigError("retention", err.Error())
	}
	if err := pruner.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer pruner.Stop()

	addr, err := tel.Serve()
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backstop v%s\n", Version)
	fmt.Fprintf(out, "✓ Store opened (%s, %d partitions)\n", cfg.Store.Backend, cfg.Cluster.PartitionCount)
	if next := pruner.NextPruning(); next != nil {
		fmt.Fprintf(out, "✓ Retention scheduled, next round %s\n", cli.FormatTime(*next))
	} else {
		fmt.Fprintln(out, "✓ Retention not scheduled")
	}
	if addr != "" {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(out, "✓ Readiness endpoint: http://%s%s\n", addr, cfg.Telemetry.Health.ReadinessPath)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Stopped")
	return nil
}

// watchPositions opens the positions file and, when configured, reloads it
// on change until ctx is done.
func watchPositions(ctx context.Context, logger *slog.Logger, cfg *config.ClusterConfig) (*cluster.FilePositions, error) {
	positions, err := cluster.NewFilePositions(cfg.PositionsFile)
	if err != nil {
		return nil, err
	}
	if !cfg.WatchPositions {
		return positions, nil
	}
	go func() {
		if err := positions.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Error("positions watcher stopped", "path", cfg.PositionsFile, "error", err)
		}
	}()
	return positions, nil
}
