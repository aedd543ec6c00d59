package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haivivi/mlptask/pkg/cli"
	"github.com/haivivi/mlptask/pkg/config"
	"github.com/haivivi/mlptask/pkg/metrics"
	"github.com/haivivi/mlptask/pkg/task"
)

var (
	// Global flags
	verbose      bool
	configFile   string
	envFile      string
	formatOutput string
	metricsFile  string
)

var rootCmd = &cobra.Command{
	Use:   "mlptask",
	Short: "Fit, query and prune a storage-backed lookup task",
	Long: `mlptask - fit a lookup model from texts, persist it to local disk,
S3-compatible object storage or BadgerDB, and answer predictions from it.

Configuration comes from an optional YAML file (--config or MLP_CONFIG)
overridden by MLP_* environment variables:

  MLP_STORAGE_TYPE   local | s3 | badger
  MLP_STORAGE_DIR    storage root
  MLP_S3_BUCKET, MLP_S3_REGION, MLP_S3_ACCESS_KEY,
  MLP_S3_SECRET_KEY, MLP_S3_ENDPOINT

Examples:
  MLP_STORAGE_TYPE=local MLP_STORAGE_DIR=./models mlptask fit hello world
  mlptask predict 0 1
  mlptask prune`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load MLP_* variables from a .env file (existing variables win)")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "format", "o", "yaml", "output format (yaml, json, raw)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
}

// openTask loads the configuration and constructs the task, restoring any
// persisted state. The returned func closes the task and writes
// --metrics-file; the caller must defer it.
func openTask(cmd *cobra.Command) (*task.Task, func(), error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	tc, err := cfg.Task()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr(), verbose)

	opts := []task.Option{task.WithLogger(logger)}
	var reg *prometheus.Registry
	if metricsFile != "" {
		reg = prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, task.WithMetrics(m))
	}

	tk, err := task.New(cmd.Context(), tc, opts...)
	if err != nil {
		return nil, nil, err
	}
	done := func() {
		if err := tk.Close(); err != nil {
			logger.Warn("close storage", "error", err)
		}
		if reg != nil {
			if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
				logger.Error("write metrics", "file", metricsFile, "error", err)
			}
		}
	}
	return tk, done, nil
}

// output writes result to the command's stdout in the selected format.
func output(cmd *cobra.Command, result any) error {
	f, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: f, Writer: cmd.OutOrStdout()})
}
