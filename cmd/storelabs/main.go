// Package main implements the storelabs binary, which runs each data-store
// lab workload as a subcommand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storelabs/storelabs/internal/app"
	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/report"
)

var (
	version = "dev"
	commit  = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	envFiles   []string
	dataDir    string
	logLevel   string
	logFormat  string
	output     string
}

var flags globalFlags

func main() {
	rootCmd := &cobra.Command{
		Use:           "storelabs",
		Short:         "Data-store lab workloads",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "Dotenv files loaded before the environment is read")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Base directory for generated files and results")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVarP(&flags.output, "output", "o", "table", "Timing report format: table or json")

	rootCmd.AddCommand(
		newGenCommand(),
		newExportCommand(),
		newLoadSQLCommand(),
		newCassandraCommand(),
		newUniversityCommand(),
		newLMSCommand(),
		newHelpdeskCommand(),
		newBookstoreCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults or the config file, dotenv files, the
// environment and finally command line flags.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(flags.configFile); err != nil {
			return nil, err
		}
	}

	if err := config.LoadDotEnv(flags.envFiles...); err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	return cfg, nil
}

// run builds the application from the layered config, lets adjust tweak it
// with command flags, and runs fn under the application's lifecycle.
func run(cmd *cobra.Command, adjust func(cfg *config.Config), fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	return a.Run(context.Background(), cmd.Name(), func(ctx context.Context) error {
		return fn(ctx, a)
	})
}

// printStats writes a workload's timing report to stdout.
func printStats(stats *report.Stats) error {
	headers, rows := stats.Rows()
	return printRows(headers, rows)
}

func printRows(headers []string, rows [][]string) error {
	switch flags.output {
	case "json":
		return report.RenderJSON(os.Stdout, headers, rows)
	case "table", "":
		report.RenderTable(os.Stdout, headers, rows)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (must be table or json)", flags.output)
	}
}
