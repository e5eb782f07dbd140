package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitedown/sitedown/internal/api"
	"github.com/sitedown/sitedown/internal/assemble"
	"github.com/sitedown/sitedown/internal/clock/system"
	"github.com/sitedown/sitedown/internal/config"
	"github.com/sitedown/sitedown/internal/convert"
	"github.com/sitedown/sitedown/internal/crawler"
	collyfetcher "github.com/sitedown/sitedown/internal/fetcher/colly"
	"github.com/sitedown/sitedown/internal/fetcher/fallback"
	headlessfetcher "github.com/sitedown/sitedown/internal/fetcher/headless"
	"github.com/sitedown/sitedown/internal/headless/detector"
	"github.com/sitedown/sitedown/internal/hash/sha256"
	"github.com/sitedown/sitedown/internal/id/uuid"
	"github.com/sitedown/sitedown/internal/logging"
	"github.com/sitedown/sitedown/internal/resource"
	fsstore "github.com/sitedown/sitedown/internal/store/fs"
	memorystore "github.com/sitedown/sitedown/internal/store/memory"
	postgresstore "github.com/sitedown/sitedown/internal/store/postgres"
)

const failedReportFilename = "failed_pages.txt"

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var (
		depth     int
		outputDir string
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "crawl <start-url>",
		Short: "Crawl a site and write the merged Markdown export",
		Long: `Crawls breadth-first from the start URL, staying on its site, and writes
one Markdown file per accepted page plus a merged document covering the
whole crawl. Interrupting the crawl keeps everything fetched so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg.Crawler.StartURL = args[0]
			if cmd.Flags().Changed("depth") {
				cfg.Crawler.MaxDepth = depth
			}
			if cmd.Flags().Changed("output") {
				cfg.Store.Dir = outputDir
			}
			if cmd.Flags().Changed("mode") {
				cfg.Fetcher.Mode = mode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "maximum link depth from the start URL")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for per-page and merged output")
	cmd.Flags().StringVar(&mode, "mode", "", "fetch mode: http, headless, or auto")
	return cmd
}

func runCrawl(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger.Info("starting crawl",
		zap.String("run_id", runID),
		zap.String("start_url", cfg.Crawler.StartURL),
		zap.Int("max_depth", cfg.Crawler.MaxDepth),
	)

	scope, err := crawler.NewScope(cfg.Crawler.StartURL, cfg.Crawler.DomainScope, cfg.Crawler.URLPrefixScope)
	if err != nil {
		return fmt.Errorf("build scope: %w", err)
	}

	fetcher, closeFetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	monitor := buildMonitor(ctx, cfg, logger)

	dispatcher := crawler.NewDispatcher(
		fetcher,
		convert.NewMarkdown(),
		store,
		sha256.New(),
		system.New(),
		crawler.NewExponentialRetryPolicy(
			cfg.Crawler.MaxRetries,
			cfg.Crawler.RetryBackoffBase,
			cfg.Crawler.RetryBackoffMax,
		),
		monitor,
		scope,
		crawler.DispatcherConfig{
			Concurrency:    cfg.Crawler.Concurrency,
			MaxRetries:     cfg.Crawler.MaxRetries,
			RequestTimeout: cfg.Crawler.RequestTimeout,
			DelayMin:       cfg.Crawler.DelayMin,
			DelayMax:       cfg.Crawler.DelayMax,
			DomainRPS:      cfg.Crawler.RateLimitPerDomain,
		},
		logger.Named("dispatcher"),
	)

	stopServer := startMetricsServer(cfg, dispatcher, runID, logger)
	defer stopServer()

	controller := crawler.NewController(
		crawler.NewFrontier(cfg.Crawler.MaxDepth),
		dispatcher,
		store,
		crawler.ControllerConfig{
			StartURL: cfg.Crawler.StartURL,
			MaxDepth: cfg.Crawler.MaxDepth,
		},
		logger.Named("controller"),
	)

	result, crawlErr := controller.Crawl(ctx)
	if result == nil {
		return crawlErr
	}
	result.RunID = runID

	if err := writeArtifacts(cfg, result, logger); err != nil {
		return err
	}

	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) {
		return crawlErr
	}
	return nil
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (crawler.Fetcher, func(), error) {
	newHeadless := func() (*headlessfetcher.Fetcher, error) {
		return headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Fetcher.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Fetcher.NavTimeout,
		})
	}
	newFast := func() *collyfetcher.Fetcher {
		return collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.Crawler.RequestTimeout,
		}, logger.Named("fetcher"))
	}

	switch cfg.Fetcher.Mode {
	case config.FetcherModeHeadless:
		fetcher, err := newHeadless()
		if err != nil {
			return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		return fetcher, fetcher.Close, nil
	case config.FetcherModeAuto:
		// Auto mode survives without a browser: the noop fetcher fills the
		// headless slot so failed promotions keep the HTTP result.
		var headless crawler.Fetcher = headlessfetcher.NewNoop()
		closeHeadless := func() {}
		chrome, err := newHeadless()
		if err != nil {
			logger.Warn("headless browser unavailable; auto mode uses http only", zap.Error(err))
		} else {
			headless = chrome
			closeHeadless = chrome.Close
		}
		fetcher := fallback.New(
			newFast(),
			headless,
			detector.NewHeuristic(cfg.Fetcher.PromotionThreshold),
			logger.Named("fetcher"),
		)
		return fetcher, closeHeadless, nil
	default:
		return newFast(), func() {}, nil
	}
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.PageStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return memorystore.NewStore(), func() {}, nil
	case config.StoreBackendPostgres:
		store, err := postgresstore.NewStore(ctx, postgresstore.Config{
			DSN:   cfg.Store.DSN,
			Table: cfg.Store.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		store, err := fsstore.NewStore(cfg.Store.Dir, logger.Named("store"))
		if err != nil {
			return nil, nil, fmt.Errorf("init page store: %w", err)
		}
		return store, func() {}, nil
	}
}

func buildMonitor(ctx context.Context, cfg config.Config, logger *zap.Logger) crawler.ResourceMonitor {
	if cfg.Resource.MemoryLimitMB <= 0 {
		return resource.Noop{}
	}
	monitor := resource.NewMemoryMonitor(
		uint64(cfg.Resource.MemoryLimitMB)<<20,
		time.Second,
		logger.Named("resource"),
	)
	monitor.Start(ctx)
	return monitor
}

// startMetricsServer brings up the operator endpoints when configured. The
// returned func shuts the listener down; it is a no-op when disabled.
func startMetricsServer(cfg config.Config, status api.StatusSource, runID string, logger *zap.Logger) func() {
	if cfg.Server.MetricsAddr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           api.NewServer(status, runID, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server started", zap.String("addr", cfg.Server.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
}

func writeArtifacts(cfg config.Config, result *crawler.CrawlResult, logger *zap.Logger) error {
	if err := os.MkdirAll(cfg.Store.Dir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	mergedPath := filepath.Join(cfg.Store.Dir, cfg.Output.MergedFilename)
	merged, err := os.Create(mergedPath)
	if err != nil {
		return fmt.Errorf("create merged document: %w", err)
	}
	defer func() {
		_ = merged.Close()
	}()
	if err := assemble.NewMerger().WriteMerged(merged, *result, time.Now()); err != nil {
		return fmt.Errorf("write merged document: %w", err)
	}

	if len(result.Failed) > 0 {
		failedPath := filepath.Join(cfg.Store.Dir, failedReportFilename)
		report, err := os.Create(failedPath)
		if err != nil {
			return fmt.Errorf("create failed-page report: %w", err)
		}
		defer func() {
			_ = report.Close()
		}()
		if err := assemble.WriteFailedReport(report, result.Failed); err != nil {
			return err
		}
	}

	logger.Info("artifacts written",
		zap.String("merged", mergedPath),
		zap.Int("pages", len(result.Pages)),
		zap.Int("failed", len(result.Failed)),
	)
	return nil
}
