package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maltedev/fixprice-scraper/internal/api"
	"github.com/maltedev/fixprice-scraper/internal/config"
	"github.com/maltedev/fixprice-scraper/internal/crawler"
	"github.com/maltedev/fixprice-scraper/internal/jobs"
	"github.com/maltedev/fixprice-scraper/internal/logger"
	"github.com/maltedev/fixprice-scraper/internal/sink"
	"github.com/maltedev/fixprice-scraper/internal/storage"
)

func main() {
	var (
		mode      = flag.String("mode", "crawl", "Mode: crawl or serve")
		urls      = flag.String("url", "", "Comma separated catalog URLs (overrides CATALOG_URLS)")
		maxPages  = flag.Int("pages", -1, "Maximum listing pages per catalog (0 = unlimited)")
		workers   = flag.Int("workers", 0, "Number of concurrent page workers")
		sinks     = flag.String("sinks", "", "Comma separated sinks: stdout,file,redis,postgres")
		linkStore = flag.String("links", "", "JSON file that remembers crawled product links")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
		render    = flag.Bool("render", true, "Render product pages in a headless browser")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	applyFlags(cfg, *urls, *maxPages, *workers, *sinks, *linkStore)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "headless":
			cfg.Browser.Headless = *headless
		case "render":
			cfg.Scraper.RenderDetails = *render
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("starting fixprice crawler", "mode", *mode)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "crawl":
		err = runCrawl(ctx, cfg, logger)
	case "serve":
		err = runServer(ctx, cfg, logger)
	default:
		fmt.Printf("Unknown mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fixprice crawler failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, urls string, maxPages, workers int, sinks, linkStore string) {
	if urls != "" {
		cfg.Scraper.CatalogURLs = splitList(urls)
	}
	if maxPages >= 0 {
		cfg.Scraper.MaxPages = maxPages
	}
	if workers > 0 {
		cfg.Scraper.Workers = workers
	}
	if sinks != "" {
		cfg.Sink.Names = splitList(sinks)
	}
	if linkStore != "" {
		cfg.Scraper.LinkStoreFile = linkStore
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	out, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer out.sinks.Close()

	links, err := storage.NewLinkStorage(cfg.Scraper.LinkStoreFile)
	if err != nil {
		return fmt.Errorf("failed to open link store: %w", err)
	}

	c := deps.newCrawler(cfg, cfg.Scraper.CatalogURLs, cfg.Scraper.MaxPages, out.sinks, links)
	stats, err := c.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("crawl summary",
		"pages", stats.Pages,
		"links", stats.Links,
		"records", stats.Records,
		"failures", stats.Failures,
		"skipped", stats.Skipped,
		"requeued", stats.Requeued,
		"resumed", stats.Resumed,
		"link_store", links.GetStats())
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	shared, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shared.sinks.Close()

	run := func(ctx context.Context, req jobs.Request, out sink.Sink) (*crawler.Stats, error) {
		links, _ := storage.NewLinkStorage("")
		c := deps.newCrawler(cfg, req.CatalogURLs, req.MaxPages, sink.NewMultiSink(out, shared.sinks), links)
		return c.Run(ctx)
	}

	manager := jobs.NewManager(run, logger)
	var records api.RecordLookup
	if shared.records != nil {
		records = shared.records
	}
	handlers := api.NewHandlers(deps.parser, manager, records, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("jobs did not stop in time", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
