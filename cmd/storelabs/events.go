package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/storelabs/storelabs/internal/app"
	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/eventgen"
	"github.com/storelabs/storelabs/pkg/types"
)

func newGenCommand() *cobra.Command {
	var (
		events, users, products int
		seed                    int64
		output                  string
		closeExhausted, upload  bool
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the clickstream events CSV",
		Args:  cobra.NoArgs,
	}
	f := cmd.Flags()
	f.IntVar(&events, "events", 0, "Total number of events")
	f.IntVar(&users, "users", 0, "Size of the user pool")
	f.IntVar(&products, "products", 0, "Size of the product catalog")
	f.Int64Var(&seed, "seed", 0, "Random seed (unset picks a time-based seed)")
	f.StringVar(&output, "out", "", "Output CSV path")
	f.BoolVar(&closeExhausted, "close-exhausted", false, "Emit close_session when a session runs out of actions")
	f.BoolVar(&upload, "upload", false, "Also export the dataset to object storage")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		adjust := func(cfg *config.Config) {
			g := &cfg.Generator
			if f.Changed("events") {
				g.TotalEvents = events
			}
			if f.Changed("users") {
				g.Users = users
			}
			if f.Changed("products") {
				g.Products = products
			}
			if f.Changed("seed") {
				g.Seed = &seed
			}
			if output != "" {
				g.Output = output
			}
			if closeExhausted {
				g.CloseExhaustedSessions = true
			}
		}
		return run(cmd, adjust, func(ctx context.Context, a *app.App) error {
			gcfg := a.Config().Generator
			evs, usedSeed, err := generate(ctx, gcfg)
			if err != nil {
				return err
			}
			if err := writeEvents(gcfg.Output, evs); err != nil {
				return err
			}
			a.Logger().WithFields(logrus.Fields{
				"events": len(evs),
				"seed":   usedSeed,
				"output": gcfg.Output,
			}).Info("events written")

			rows := [][]string{
				{"events", strconv.Itoa(len(evs))},
				{"sessions", strconv.Itoa(countSessions(evs))},
				{"seed", strconv.FormatInt(usedSeed, 10)},
				{"output", gcfg.Output},
			}
			if upload {
				res, err := exportEvents(ctx, a, evs, gcfg.Compress)
				if err != nil {
					return err
				}
				rows = append(rows, []string{"object", res.Key}, []string{"stored_bytes", strconv.Itoa(res.StoredSize)})
			}
			return printRows([]string{"Field", "Value"}, rows)
		})
	}
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		input    string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Upload an events CSV to object storage under a fresh run id",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&input, "in", "", "Events CSV (defaults to generator.output)")
	cmd.Flags().BoolVar(&compress, "compress", false, "Snappy-frame the uploaded object")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil, func(ctx context.Context, a *app.App) error {
			evs, err := readEvents(inputOrDefault(input, a.Config()))
			if err != nil {
				return err
			}
			res, err := exportEvents(ctx, a, evs, compress || a.Config().Generator.Compress)
			if err != nil {
				return err
			}
			return printRows([]string{"Run", "Key", "Events", "Raw bytes", "Stored bytes"}, [][]string{{
				res.RunID, res.Key, strconv.Itoa(res.Events), strconv.Itoa(res.RawBytes), strconv.Itoa(res.StoredSize),
			}})
		})
	}
	return cmd
}

// generate runs a sequencer for cfg and returns the seed it used so a
// time-seeded run can be reproduced.
func generate(ctx context.Context, cfg config.GeneratorConfig) ([]types.Event, int64, error) {
	seed := cfg.EffectiveSeed(time.Now())
	evs, err := eventgen.GenerateSeeded(ctx, cfg.Config, seed)
	return evs, seed, err
}

func writeEvents(path string, evs []types.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewInternalError("create output directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewInternalError("create "+path, err)
	}
	if err := eventgen.WriteAll(f, evs); err != nil {
		f.Close()
		return errors.NewInternalError("write "+path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewInternalError("close "+path, err)
	}
	return nil
}

func readEvents(path string) ([]types.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInvalidConfiguration("cannot open events file %s: %v", path, err)
	}
	defer f.Close()
	return eventgen.ReadAll(f)
}

func inputOrDefault(input string, cfg *config.Config) string {
	if input != "" {
		return input
	}
	return cfg.Generator.Output
}

func exportEvents(ctx context.Context, a *app.App, evs []types.Event, compress bool) (*eventgen.ExportResult, error) {
	store, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}
	if err := app.EnsureBucket(ctx, store); err != nil {
		return nil, err
	}
	x := &eventgen.Exporter{Storage: store, Compress: compress, Logger: a.Logger()}
	return x.Export(ctx, evs)
}

func countSessions(evs []types.Event) int {
	seen := make(map[string]struct{})
	for i := range evs {
		seen[evs[i].SessionID] = struct{}{}
	}
	return len(seen)
}
