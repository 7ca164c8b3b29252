// pennypipe: historical penny-stock data pipeline.
//
// Fetches trading records from a local CSV archive and public market-data
// APIs, consolidates and normalizes them per SEC-registered entity, and
// publishes JSON/CSV artifacts for the dashboard front end.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pennypipe/internal/config"
	"pennypipe/internal/entity"
	"pennypipe/internal/pipeline"
	"pennypipe/internal/store"
	"pennypipe/internal/util"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg      *config.Config
	entities []entity.Entity
	logger   *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pennypipe",
	Short: "Historical penny-stock data acquisition and normalization pipeline",
	Long: `pennypipe runs a four-stage batch pipeline over a configured set of
SEC-registered entities: fetch raw trading records from providers,
consolidate them into one deduplicated series per entity, normalize to
daily OHLCV bars with period metrics, and publish the public artifacts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		util.SetDefault(logger)

		entities, err = config.LoadEntities(cfg.Entities)
		if err != nil {
			return fmt.Errorf("loading entities: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "config/pennypipe.yaml", "config file path")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStores opens the cache tree and, when configured, the run catalog.
// The catalog is optional; a stage runs fine without one.
func openStores() (*store.CacheStore, *store.Catalog, error) {
	cache := store.NewCacheStore(cfg.Storage.CacheDir)
	if cfg.Storage.CatalogPath == "" {
		return cache, nil, nil
	}
	catalog, err := store.OpenCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}
	return cache, catalog, nil
}

func runStages(ctx context.Context, stages ...pipeline.Stage) error {
	for _, stage := range stages {
		logger.Info("stage starting", "stage", stage.Name())
		if err := stage.Run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		logger.Info("stage finished", "stage", stage.Name())
	}
	return nil
}

func fetchOptions(cmd *cobra.Command) pipeline.FetchOptions {
	var opts pipeline.FetchOptions
	opts.SkipAlphaVantage, _ = cmd.Flags().GetBool("skip-av")
	opts.SkipSECEdgar, _ = cmd.Flags().GetBool("skip-sec")
	opts.SkipYahoo, _ = cmd.Flags().GetBool("skip-yahoo")
	opts.SkipAlpaca, _ = cmd.Flags().GetBool("skip-alpaca")
	return opts
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("skip-av", false, "skip Alpha Vantage")
	cmd.Flags().Bool("skip-sec", false, "skip SEC EDGAR filings")
	cmd.Flags().Bool("skip-yahoo", false, "skip Yahoo Finance")
	cmd.Flags().Bool("skip-alpaca", false, "skip Alpaca trades")
}

// --- fetch ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw records and filings from every enabled provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cache, catalog, err := openStores()
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}

		stage, err := pipeline.NewFetchStage(cfg, entities, cache, catalog, logger, fetchOptions(cmd))
		if err != nil {
			return err
		}
		return runStages(ctx, stage)
	},
}

func init() {
	addFetchFlags(fetchCmd)
}

// --- consolidate ---

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge local archive and raw caches into per-entity record series",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cache, catalog, err := openStores()
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}
		return runStages(ctx, pipeline.NewConsolidateStage(cfg, entities, cache, catalog, logger))
	},
}

// --- normalize ---

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Bucket consolidated records into daily OHLCV bars with metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cache, catalog, err := openStores()
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}
		return runStages(ctx, pipeline.NewNormalizeStage(cfg, entities, cache, catalog, logger))
	},
}

// --- publish ---

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Emit the public JSON/CSV artifacts and the summary index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cache, catalog, err := openStores()
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}
		return runStages(ctx, pipeline.NewPublishStage(cfg, entities, cache, catalog, logger))
	},
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all four stages in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cache, catalog, err := openStores()
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}

		fetch, err := pipeline.NewFetchStage(cfg, entities, cache, catalog, logger, fetchOptions(cmd))
		if err != nil {
			return err
		}
		return runStages(ctx,
			fetch,
			pipeline.NewConsolidateStage(cfg, entities, cache, catalog, logger),
			pipeline.NewNormalizeStage(cfg, entities, cache, catalog, logger),
			pipeline.NewPublishStage(cfg, entities, cache, catalog, logger),
		)
	},
}

func init() {
	addFetchFlags(runCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline runs from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.CatalogPath == "" {
			return fmt.Errorf("no catalog_path configured")
		}
		catalog, err := store.OpenCatalog(cfg.Storage.CatalogPath)
		if err != nil {
			return err
		}
		defer catalog.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := catalog.LatestRuns(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		fmt.Printf("%-12s %-11s %-6s %8s  %-20s %s\n",
			"STAGE", "CIK", "TICKER", "RECORDS", "FINISHED", "SOURCES")
		for _, r := range runs {
			fmt.Printf("%-12s %-11s %-6s %8d  %-20s %s\n",
				r.Stage, r.CIK, r.Ticker, r.Records,
				r.FinishedAt.Format("2006-01-02 15:04:05"), r.Sources)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "maximum runs to show")
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Version works without a config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pennypipe %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}
