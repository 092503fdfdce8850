package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/target-parquet/internal/pipeline"
	"github.com/ajitpratap0/target-parquet/pkg/compression"
	"github.com/ajitpratap0/target-parquet/pkg/config"
	"github.com/ajitpratap0/target-parquet/pkg/logger"
	"github.com/ajitpratap0/target-parquet/pkg/metrics"
	"github.com/ajitpratap0/target-parquet/pkg/observability"
	"github.com/ajitpratap0/target-parquet/pkg/storage"
)

var version = "0.1.0"

// rootOptions holds the flags of the sync command.
type rootOptions struct {
	configFile  string
	input       string
	logLevel    string
	metricsFile string
	trace       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "target-parquet",
		Short: "Write tap output to Parquet files",
		Long: `target-parquet reads SCHEMA, RECORD and STATE messages, one JSON object per line,
flattens nested records into columns and writes each stream as Parquet files.

State messages are echoed to stdout. Logs go to stderr.

Example:
  tap-users | target-parquet --config config.json > state.jsonl`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), opts, stdin, stdout, stderr)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a JSON or YAML configuration file")
	root.Flags().StringVarP(&opts.input, "input", "i", "", "Read messages from this file instead of stdin (.gz, .zst, .lz4, .sz and .s2 are decompressed)")
	root.Flags().StringVar(&opts.logLevel, "log-level", "", "Override log_level (debug, info, warn, error)")
	root.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when the sync ends")
	root.Flags().BoolVar(&opts.trace, "trace", false, "Export OpenTelemetry spans to stderr")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newInspectCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "target-parquet v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			data, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// runSync executes one sync from stdin (or --input) to the configured
// destination.
func runSync(ctx context.Context, opts *rootOptions, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "json", OutputPaths: []string{"stderr"}})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("component", "target-parquet-cli"))

	if opts.trace {
		tc := observability.DefaultTracingConfig(version)
		tc.Output = stderr
		shutdown, err := observability.InitTracing(ctx, tc)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to shut down tracing", zap.Error(err))
			}
		}()
	}

	if opts.metricsFile != "" {
		defer func() {
			if _, err := metrics.UpdateProcessMemory(); err != nil {
				log.Debug("failed to sample process memory", zap.Error(err))
			}
			if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
				log.Warn("failed to write metrics", zap.Error(err))
			}
		}()
	}

	input := stdin
	if opts.input != "" {
		rc, err := compression.Open(opts.input)
		if err != nil {
			return err
		}
		defer rc.Close()
		input = rc
	}

	store, err := storage.New(ctx, cfg.DestinationPath, storage.Options{
		S3Region:           cfg.S3Region,
		S3Endpoint:         cfg.S3Endpoint,
		GCSCredentialsFile: cfg.GCSCredentialsFile,
		Logger:             log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()

	target, err := pipeline.NewTarget(cfg, store, stdout, log)
	if err != nil {
		return err
	}

	log.Info("starting target",
		zap.String("version", version),
		zap.String("destination", cfg.DestinationPath),
		zap.String("compression", cfg.CompressionCodec()),
		zap.Int("max_batch_size", cfg.MaxBatchSize),
		zap.Float64("max_table_size_mb", cfg.MaxTableSizeMB))

	if err := target.Run(ctx, input); err != nil {
		log.Error("sync failed", zap.String("sync_id", target.SyncID()), zap.Error(err))
		return err
	}
	return nil
}
