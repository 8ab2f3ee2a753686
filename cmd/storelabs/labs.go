package main

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storelabs/storelabs/internal/app"
	"github.com/storelabs/storelabs/internal/bookstore"
	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/fake"
	"github.com/storelabs/storelabs/internal/helpdesk"
	"github.com/storelabs/storelabs/internal/lms"
)

func newLMSCommand() *cobra.Command {
	var (
		dir         string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "lms",
		Short: "Run the course-material object storage workload",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Local working directory (defaults to <data-dir>/lms)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel downloads when mirroring")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil, func(ctx context.Context, a *app.App) error {
			store, err := a.Storage(ctx)
			if err != nil {
				return err
			}
			if err := app.EnsureBucket(ctx, store); err != nil {
				return err
			}
			workDir := dir
			if workDir == "" {
				workDir = filepath.Join(a.Config().DataDir, "lms")
			}
			sc := lms.DefaultScenario()
			if concurrency > 0 {
				sc.Concurrency = concurrency
			}

			lab := lms.NewLab(store, workDir, a.Logger())
			res, err := lab.Run(ctx, lms.DefaultPlan(), sc)
			if err != nil {
				return err
			}
			var deleted []string
			for _, d := range res.Deleted {
				deleted = append(deleted, d.Key+"="+strconv.FormatBool(d.Gone))
			}
			rows := [][]string{
				{"uploaded", strconv.Itoa(res.Uploaded)},
				{"listed", strconv.Itoa(len(res.Listed))},
				{"announcement", res.Announcement},
				{"versioning", res.VersioningStatus},
				{"versions", strconv.Itoa(len(res.Versions))},
				{"deleted", strings.Join(deleted, ", ")},
				{"downloaded_bytes", strconv.FormatInt(res.DownloadedBytes, 10)},
			}
			if err := printRows([]string{"Step", "Result"}, rows); err != nil {
				return err
			}
			return printStats(lab.Stats())
		})
	}
	return cmd
}

func newHelpdeskCommand() *cobra.Command {
	var (
		cleanup, purge bool
		addr           string
	)
	cmd := &cobra.Command{
		Use:   "helpdesk",
		Short: "Run the Redis helpdesk model and CRUD tasks",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Delete keys outside the help: namespace first")
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete every help: key when finished")
	cmd.Flags().StringVar(&addr, "addr", "", "Override redis.addr")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		adjust := func(cfg *config.Config) {
			if addr != "" {
				cfg.Redis.Addr = addr
			}
		}
		return run(cmd, adjust, func(ctx context.Context, a *app.App) error {
			s, err := helpdesk.Connect(ctx, a.Config().Redis, a.Logger())
			if err != nil {
				return err
			}
			a.Register(s)

			if cleanup {
				if _, err := s.Cleanup(ctx); err != nil {
					return err
				}
			}
			if _, err := s.SetupModel(ctx); err != nil {
				return err
			}
			if err := s.CreateData(ctx); err != nil {
				return err
			}
			read, err := s.ReadTasks(ctx)
			if err != nil {
				return err
			}
			upd, err := s.UpdateTasks(ctx)
			if err != nil {
				return err
			}
			if err := s.DeleteTasks(ctx); err != nil {
				return err
			}
			if purge {
				if _, err := s.Purge(ctx); err != nil {
					return err
				}
			}

			var top []string
			for _, e := range read.TopPriority {
				top = append(top, e.TicketID)
			}
			rows := [][]string{
				{"user_by_email", read.UserByEmail.ID},
				{"top_priority", strings.Join(top, ", ")},
				{"agent_tickets", strconv.Itoa(len(read.AgentTickets))},
				{"returns_agents", strconv.Itoa(len(read.ReturnsAgents))},
				{"sla_due_at", upd.SLADueAt.Format(helpdesk.TimeLayout)},
			}
			if err := printRows([]string{"Task", "Result"}, rows); err != nil {
				return err
			}
			return printStats(s.Stats())
		})
	}
	return cmd
}

func newBookstoreCommand() *cobra.Command {
	var (
		seed                         int64
		skipSeed, skipCRUD, skipAggs bool
		exportDir                    string
	)
	cmd := &cobra.Command{
		Use:   "bookstore",
		Short: "Seed the MongoDB bookstore, run CRUD scenarios and aggregation pipelines, export JSON",
		Args:  cobra.NoArgs,
	}
	f := cmd.Flags()
	f.Int64Var(&seed, "seed", 1, "Fake data seed")
	f.BoolVar(&skipSeed, "skip-seed", false, "Keep the existing collections")
	f.BoolVar(&skipCRUD, "skip-crud", false, "Skip the CRUD scenarios")
	f.BoolVar(&skipAggs, "skip-aggregations", false, "Skip the aggregation pipelines")
	f.StringVar(&exportDir, "export-dir", "", "Export directory (defaults to <data-dir>/exports; \"-\" disables)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil, func(ctx context.Context, a *app.App) error {
			s, err := bookstore.Connect(ctx, a.Config().Mongo, a.Logger())
			if err != nil {
				return err
			}
			a.Register(s)

			var rows [][]string
			if !skipSeed {
				counts, err := s.Seed(ctx, bookstore.Generate(fake.New(seed), s.Now(), bookstore.DefaultCounts()))
				if err != nil {
					return err
				}
				for _, name := range bookstore.Collections {
					rows = append(rows, []string{"seeded " + name, strconv.Itoa(counts[name])})
				}
			}
			if !skipCRUD {
				res, err := s.RunCRUD(ctx)
				if err != nil {
					return err
				}
				rows = append(rows,
					[]string{"price range matches", strconv.Itoa(len(res.PriceRange))},
					[]string{"prices raised", strconv.FormatInt(res.PricesRaised, 10)},
					[]string{"addresses fixed", strconv.FormatInt(res.AddressesFixed, 10)},
					[]string{"orphan reviews deleted", strconv.FormatInt(res.OrphansDeleted, 10)},
					[]string{"vendors deleted", strconv.FormatInt(res.VendorsDeleted, 10)},
					[]string{"sessions deleted", strconv.FormatInt(res.SessionsDeleted, 10)},
				)
			}
			if !skipAggs {
				res, err := s.RunAggregations(ctx)
				if err != nil {
					return err
				}
				rows = append(rows,
					[]string{"revenue last 30d", strconv.FormatFloat(res.Dashboard.Revenue, 'f', 2, 64)},
					[]string{"avg delivery days", strconv.FormatFloat(res.Dashboard.AvgDeliveryDays, 'f', 2, 64)},
					[]string{"low stock books", strconv.Itoa(res.Dashboard.LowStockCount)},
					[]string{"60-day retention", strconv.FormatFloat(res.Retention.Rate*100, 'f', 2, 64) + "%"},
					[]string{"inventory anomalies", strconv.Itoa(len(res.Anomalies))},
				)
			}
			if exportDir != "-" {
				dir := exportDir
				if dir == "" {
					dir = filepath.Join(a.Config().DataDir, "exports")
				}
				if _, err := s.Export(ctx, dir, bookstore.DefaultExportLimit); err != nil {
					return err
				}
			}
			if err := printRows([]string{"Step", "Result"}, rows); err != nil {
				return err
			}
			return printStats(s.Stats())
		})
	}
	return cmd
}
