package main

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/storelabs/storelabs/internal/app"
	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/fake"
	"github.com/storelabs/storelabs/internal/sqlstore"
	"github.com/storelabs/storelabs/internal/university"
	"github.com/storelabs/storelabs/internal/widecolumn"
)

func newLoadSQLCommand() *cobra.Command {
	var (
		dialect, input, table string
		batch                 int
		truncate              bool
	)
	cmd := &cobra.Command{
		Use:   "load-sql",
		Short: "Load the events CSV into MySQL, Postgres or SQLite",
		Args:  cobra.NoArgs,
	}
	f := cmd.Flags()
	f.StringVar(&dialect, "dialect", "sqlite", "SQL dialect: mysql, postgres or sqlite")
	f.StringVar(&input, "in", "", "Events CSV (defaults to generator.output)")
	f.StringVar(&table, "table", "events", "Target table")
	f.IntVar(&batch, "batch", 500, "Rows per transaction")
	f.BoolVar(&truncate, "truncate", false, "Empty the table before loading")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil, func(ctx context.Context, a *app.App) error {
			d, err := sqlstore.DialectByName(dialect)
			if err != nil {
				return err
			}
			evs, err := readEvents(inputOrDefault(input, a.Config()))
			if err != nil {
				return err
			}
			db, err := sqlstore.Open(ctx, d, dsnFor(d, a.Config()))
			if err != nil {
				return err
			}
			a.Register(db)

			t := sqlstore.NewEventTable(db, d, table, a.Logger())
			if err := t.CreateTable(ctx); err != nil {
				return err
			}
			if truncate {
				if err := t.Truncate(ctx); err != nil {
					return err
				}
			}
			res, err := t.Load(ctx, evs, batch)
			if err != nil {
				return err
			}
			counts, err := t.CountByType(ctx)
			if err != nil {
				return err
			}
			rows := [][]string{{"rows", strconv.Itoa(res.Rows)}, {"batches", strconv.Itoa(res.Batches)}, {"duration", res.Duration.Round(time.Millisecond).String()}}
			for et, n := range counts {
				rows = append(rows, []string{string(et), strconv.FormatInt(n, 10)})
			}
			sort.SliceStable(rows[3:], func(i, j int) bool { return rows[3+i][0] < rows[3+j][0] })
			return printRows([]string{"Metric", "Value"}, rows)
		})
	}
	return cmd
}

func dsnFor(d sqlstore.Dialect, cfg *config.Config) string {
	switch d.Name {
	case sqlstore.MySQL.Name:
		return cfg.MySQL.DSN()
	case sqlstore.Postgres.Name:
		return cfg.Postgres.DSN()
	default:
		return cfg.SQLite.Path
	}
}

func newCassandraCommand() *cobra.Command {
	var (
		input    string
		ttl      time.Duration
		skipLoad bool
		keyspace string
	)
	cmd := &cobra.Command{
		Use:   "cassandra",
		Short: "Load events into Cassandra and run the read, update and delete scenarios",
		Args:  cobra.NoArgs,
	}
	f := cmd.Flags()
	f.StringVar(&input, "in", "", "Events CSV (defaults to generator.output)")
	f.DurationVar(&ttl, "ttl", 0, "Expire loaded rows after this duration")
	f.BoolVar(&skipLoad, "skip-load", false, "Run the scenarios against existing rows")
	f.StringVar(&keyspace, "keyspace", "", "Override cassandra.keyspace")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		adjust := func(cfg *config.Config) {
			if keyspace != "" {
				cfg.Cassandra.Keyspace = keyspace
			}
		}
		return run(cmd, adjust, func(ctx context.Context, a *app.App) error {
			s, err := widecolumn.Connect(a.Config().Cassandra, a.Logger())
			if err != nil {
				return err
			}
			a.Register(app.CloserFunc(func() error { s.Close(); return nil }))

			if err := s.Setup(ctx); err != nil {
				return err
			}
			if !skipLoad {
				evs, err := readEvents(inputOrDefault(input, a.Config()))
				if err != nil {
					return err
				}
				if _, err := s.Load(ctx, evs, widecolumn.LoadOptions{TTL: ttl}); err != nil {
					return err
				}
			}

			sc := widecolumn.DefaultScenario()
			sc.Now = time.Now().UTC()
			res := &widecolumn.ScenarioResult{}
			if err := s.RunReads(ctx, sc, res); err != nil {
				return err
			}
			if err := s.RunUpdates(ctx, sc, res); err != nil {
				return err
			}
			if err := s.RunDeletes(ctx, sc, res); err != nil {
				return err
			}
			return printStats(s.Stats())
		})
	}
	return cmd
}

func newUniversityCommand() *cobra.Command {
	var (
		scale, runs       int
		seed              int64
		indexes, skipSeed bool
	)
	cmd := &cobra.Command{
		Use:   "university",
		Short: "Seed the university schema and benchmark Q1 to Q5",
		Args:  cobra.NoArgs,
	}
	f := cmd.Flags()
	f.IntVar(&scale, "scale", 0, "Number of students (overrides university.scale)")
	f.IntVar(&runs, "runs", 0, "Timed runs per query (overrides university.runs)")
	f.Int64Var(&seed, "seed", 1, "Fake data seed")
	f.BoolVar(&indexes, "indexes", false, "Create the benchmark indexes before timing")
	f.BoolVar(&skipSeed, "skip-seed", false, "Benchmark the existing data")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		adjust := func(cfg *config.Config) {
			if scale > 0 {
				cfg.University.Scale = scale
			}
			if runs > 0 {
				cfg.University.Runs = runs
			}
		}
		return run(cmd, adjust, func(ctx context.Context, a *app.App) error {
			cfg := a.Config()
			if err := university.CreateDatabase(ctx, cfg.Postgres); err != nil {
				return err
			}
			s, err := university.Open(ctx, cfg.Postgres, a.Logger())
			if err != nil {
				return err
			}
			a.Register(s)

			if err := s.CreateSchema(ctx); err != nil {
				return err
			}
			if !skipSeed {
				if err := s.Refresh(ctx); err != nil {
					return err
				}
				gen := university.NewGenerator(fake.New(seed), time.Now().UTC())
				if _, err := s.Seed(ctx, gen, cfg.University.Scale); err != nil {
					return err
				}
			}
			counts, err := s.Verify(ctx)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, c := range counts {
				rows = append(rows, []string{c.Table, strconv.FormatInt(c.Rows, 10)})
			}
			if err := printRows([]string{"Table", "Rows"}, rows); err != nil {
				return err
			}

			if indexes {
				if err := s.CreateIndexes(ctx); err != nil {
					return err
				}
			}
			results, err := s.Benchmark(ctx, university.Queries, cfg.University.Runs)
			if err != nil {
				return err
			}
			if path := cfg.University.ResultsFile; path != "" {
				if err := university.AppendResults(path, cfg.University.Scale, results); err != nil {
					return err
				}
			}
			rows = rows[:0]
			for _, r := range results {
				rows = append(rows, []string{r.Name, strconv.FormatFloat(r.Millis(), 'f', 2, 64)})
			}
			return printRows([]string{"Query", "Mean (ms)"}, rows)
		})
	}
	return cmd
}
