// Package main implements storelabs-gen, a standalone binary that writes
// the synthetic clickstream events CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/eventgen"
	"github.com/storelabs/storelabs/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile     string
		output         string
		events         int
		users          int
		products       int
		seed           int64
		closeExhausted bool
		showVersion    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&output, "out", "", "Output CSV path")
	flag.IntVar(&events, "events", 0, "Total number of events")
	flag.IntVar(&users, "users", 0, "Size of the user pool")
	flag.IntVar(&products, "products", 0, "Size of the product catalog")
	flag.Int64Var(&seed, "seed", 0, "Random seed (unset picks a time-based seed)")
	flag.BoolVar(&closeExhausted, "close-exhausted", false, "Emit close_session when a session runs out of actions")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "storelabs-gen - synthetic clickstream generator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: storelabs-gen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  STORELABS_DATA_DIR                Base directory for generated files\n")
		fmt.Fprintf(os.Stderr, "  STORELABS_GENERATOR_TOTAL_EVENTS  Total number of events\n")
		fmt.Fprintf(os.Stderr, "  STORELABS_GENERATOR_SEED          Random seed\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("storelabs-gen version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}
	config.LoadFromEnv(cfg)

	flag.Visit(func(f *flag.Flag) {
		g := &cfg.Generator
		switch f.Name {
		case "events":
			g.TotalEvents = events
		case "users":
			g.Users = users
		case "products":
			g.Products = products
		case "seed":
			g.Seed = &seed
		case "out":
			g.Output = output
		case "close-exhausted":
			g.CloseExhaustedSessions = closeExhausted
		}
	})
	cfg.Resolve()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	if err := run(context.Background(), cfg.Generator, logger); err != nil {
		logger.WithError(err).Fatal("generation failed")
	}
}

func run(ctx context.Context, cfg config.GeneratorConfig, logger *logrus.Logger) error {
	start := time.Now()
	seed := cfg.EffectiveSeed(start)
	evs, err := eventgen.GenerateSeeded(ctx, cfg.Config, seed)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
		return err
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := eventgen.WriteAll(f, evs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"events":   len(evs),
		"seed":     seed,
		"output":   cfg.Output,
		"duration": time.Since(start).String(),
	}).Info("events written")
	return nil
}
