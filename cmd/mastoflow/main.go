// Mastoflow - Mastodon dataset pipeline
// Collects timelines from a Mastodon instance, imports the export CSVs
// into DuckDB, and produces a publishable dataset bundle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mastoflow/mastoflow/pkg/checkpoint"
	"github.com/mastoflow/mastoflow/pkg/collector"
	"github.com/mastoflow/mastoflow/pkg/config"
	"github.com/mastoflow/mastoflow/pkg/export"
	"github.com/mastoflow/mastoflow/pkg/ingest"
	"github.com/mastoflow/mastoflow/pkg/storage/s3"
	"github.com/mastoflow/mastoflow/pkg/store"
	"github.com/mastoflow/mastoflow/pkg/telemetry"
	"github.com/mastoflow/mastoflow/pkg/tui"
	"github.com/mastoflow/mastoflow/pkg/watch"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	configPath string
	verbose    bool

	// Collect flags
	accessToken string
	hashtags    []string
	maxPages    int

	// Import flags
	noProgress bool

	// Export flags
	publishFlag bool

	// Watch flags
	debounce time.Duration

	// Stats flags
	topN int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mastoflow",
	Short: "Mastoflow - Mastodon dataset pipeline",
	Long: `Mastoflow collects public timelines, hashtag timelines, and trending
tags from a Mastodon instance, deduplicates them into a DuckDB database,
and exports an analysis-ready dataset bundle.

Typical flow:
  mastoflow collect      # pull fresh data from the instance
  mastoflow import       # load export CSVs into the database
  mastoflow export       # write the dataset bundle (CSV, README, XLSX)`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect timelines and trends from the configured instance",
	Long: `Collect the public timeline, local timeline, configured hashtag
timelines, trending tags, and instance metadata. Each collection run
writes timestamped JSON dumps and analysis CSVs into the data directory.

Examples:
  mastoflow collect
  mastoflow collect --hashtags golang,fediverse --max-pages 3
  MASTODON_ACCESS_TOKEN=... mastoflow collect`,
	RunE: runCollect,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import export CSVs from the data directory into DuckDB",
	Long: `Scan the data directory for export CSVs, normalize their rows, and
insert them into the database. Re-imports are safe: rows already present
are counted as duplicates and left untouched.`,
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the dataset bundle from the database",
	Long: `Export every base table and analysis view as CSV, plus a README,
a data dictionary, and an Excel workbook, into the export directory.

With --publish (or publish enabled in the config) the bundle is also
uploaded to the configured S3 bucket under a date-stamped prefix.`,
	RunE: runExport,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database row counts and top hashtags/languages",
	RunE:  runStats,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the data directory and import new export files",
	Long: `Watch the data directory for new export CSVs and run an import once
the directory settles. Useful alongside a cron-driven collect.`,
	RunE: runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	collectCmd.Flags().StringVar(&accessToken, "token", "", "Access token (defaults to $MASTODON_ACCESS_TOKEN)")
	collectCmd.Flags().StringSliceVar(&hashtags, "hashtags", nil, "Hashtags to collect (overrides config)")
	collectCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Max pages per timeline (overrides config)")

	importCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")

	exportCmd.Flags().BoolVar(&publishFlag, "publish", false, "Upload the bundle to S3 after exporting")

	watchCmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Settle window before importing a burst of files")

	statsCmd.Flags().IntVar(&topN, "top", 10, "Number of hashtags and languages to show")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup loads config, configures logging and telemetry, and returns a
// signal-aware context. The returned cleanup flushes telemetry.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config, func(), error) {
	logrus.SetLevel(logrus.WarnLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, nil, nil, nil, err
	}

	ctx, cancel := context.WithCancel(cmd.Context())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	cleanup := func() {}
	if cfg.Telemetry.Enabled {
		tcfg := telemetry.DefaultConfig("mastoflow")
		tcfg.Endpoint = cfg.Telemetry.Endpoint
		tcfg.ServiceVersion = version
		shutdown, err := telemetry.Init(ctx, tcfg)
		if err != nil {
			cancel()
			return nil, nil, nil, nil, fmt.Errorf("telemetry init failed: %w", err)
		}
		cleanup = func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			if err := shutdown(shutdownCtx); err != nil {
				logrus.WithError(err).Warn("telemetry shutdown failed")
			}
		}
	}

	return ctx, cancel, cfg, cleanup, nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	token := accessToken
	if token == "" {
		token = os.Getenv("MASTODON_ACCESS_TOKEN")
	}

	opts := collector.RunOptions{
		Hashtags:  cfg.Instance.Hashtags,
		PageLimit: cfg.Instance.PageLimit,
		MaxPages:  cfg.Instance.MaxPages,
	}
	if len(hashtags) > 0 {
		opts.Hashtags = hashtags
	}
	if maxPages > 0 {
		opts.MaxPages = maxPages
	}

	client := collector.NewClient(cfg.Instance.URL, token)
	sum, err := collector.New(client, cfg.Paths.DataDir).Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	fmt.Print(tui.RenderCollection(sum))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	st, err := store.Open(ctx, cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := ingest.DefaultOptions()
	opts.DLQDir = cfg.Paths.DLQDir
	opts.Progress = !noProgress && !verbose

	if cfg.Checkpoint.Enabled {
		ledger, err := openLedger(cfg)
		if err != nil {
			// A dead Redis degrades to a full re-parse, which is safe.
			logrus.WithError(err).Warn("checkpoint ledger unavailable, re-parsing all files")
		} else {
			defer ledger.Close()
			opts.Ledger = ledger
		}
	}

	res, err := ingest.New(st, opts).Run(ctx, cfg.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Print(tui.RenderImport(res))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	st, err := store.Open(ctx, cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := export.New(st, cfg.Paths.ExportDir).Run(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Print(tui.RenderExport(rep))

	if publishFlag || cfg.Publish.Enabled {
		if cfg.Publish.Bucket == "" {
			return fmt.Errorf("publish requested but no bucket configured")
		}
		s3cfg := s3.DefaultConfig(cfg.Publish.Bucket, cfg.Publish.Region)
		s3cfg.Prefix = cfg.Publish.Prefix
		s3cfg.Endpoint = cfg.Publish.Endpoint

		client, err := s3.NewClient(ctx, s3cfg)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		keys, err := client.PublishDir(ctx, rep.Dir)
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		fmt.Printf("  published %d objects to s3://%s\n", len(keys), cfg.Publish.Bucket)
	}

	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	st, err := store.Open(ctx, cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateViews(ctx); err != nil {
		return err
	}

	data := tui.StatsData{TableCounts: make(map[string]int64)}
	for _, table := range store.TableNames() {
		n, err := st.Count(ctx, table)
		if err != nil {
			return err
		}
		data.TableCounts[table] = n
	}

	if min, max, ok, err := st.DateRange(ctx); err != nil {
		return err
	} else if ok {
		data.EarliestDate, data.LatestDate = min, max
	}

	if data.Hashtags, err = st.HashtagPerformance(ctx, topN); err != nil {
		return err
	}
	if data.Languages, err = st.LanguageStats(ctx, topN); err != nil {
		return err
	}

	fmt.Print(tui.RenderStats(data))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	st, err := store.Open(ctx, cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := ingest.DefaultOptions()
	opts.DLQDir = cfg.Paths.DLQDir

	if cfg.Checkpoint.Enabled {
		ledger, err := openLedger(cfg)
		if err != nil {
			logrus.WithError(err).Warn("checkpoint ledger unavailable, re-parsing all files")
		} else {
			defer ledger.Close()
			opts.Ledger = ledger
		}
	}
	importer := ingest.New(st, opts)

	w, err := watch.New(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	w.SetDebounce(debounce)
	w.OnBatch = func(ctx context.Context) error {
		res, err := importer.Run(ctx, cfg.Paths.DataDir)
		if err != nil {
			return err
		}
		fmt.Print(tui.RenderImport(res))
		return nil
	}

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", cfg.Paths.DataDir)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func openLedger(cfg *config.Config) (*checkpoint.RedisLedger, error) {
	rcfg := checkpoint.DefaultRedisConfig(cfg.Checkpoint.Address)
	rcfg.Password = cfg.Checkpoint.Password
	rcfg.Database = cfg.Checkpoint.Database
	return checkpoint.NewRedisLedger(rcfg)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mastoflow.yaml"
	}
	return home + "/.mastoflow/config.yaml"
}
