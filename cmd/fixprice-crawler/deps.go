package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/fixprice-scraper/internal/browser"
	"github.com/maltedev/fixprice-scraper/internal/config"
	"github.com/maltedev/fixprice-scraper/internal/crawler"
	"github.com/maltedev/fixprice-scraper/internal/database"
	"github.com/maltedev/fixprice-scraper/internal/fetcher"
	"github.com/maltedev/fixprice-scraper/internal/parser"
	"github.com/maltedev/fixprice-scraper/internal/ratelimit"
	"github.com/maltedev/fixprice-scraper/internal/sink"
	"github.com/maltedev/fixprice-scraper/internal/storage"
)

type dependencies struct {
	parser  *parser.CatalogParser
	fetcher fetcher.Fetcher
	limiter *ratelimit.AdaptiveRateLimiter
	browser *browser.Browser
	logger  *slog.Logger
}

func newDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	sel := parser.DefaultSelectors()
	p := parser.NewCatalogParser(sel, parser.ListingOptions{
		DetailCap:   cfg.Scraper.DetailCap,
		URLTemplate: cfg.Scraper.URLTemplate,
	}, parser.NewStockPolicy(cfg.Scraper.StockPolicy, sel))

	locality := fetcher.LocalityCookie(cfg.Scraper.LocalityCookie)

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:      cfg.Scraper.UserAgent,
		Timeout:        cfg.Scraper.RequestTimeout,
		ProxyURL:       cfg.Proxy.Server,
		ProxyUser:      cfg.Proxy.User,
		ProxyPassword:  cfg.Proxy.Password,
		AllowedDomains: cfg.Scraper.AllowedDomains,
		RespectRobots:  cfg.Scraper.RespectRobots,
		Cookies:        []fetcher.Cookie{locality},
		MaxRetries:     cfg.Scraper.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create http fetcher: %w", err)
	}

	deps := &dependencies{
		parser:  p,
		limiter: ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RatePerSecond, cfg.Scraper.RateBurst, cfg.Scraper.Jitter),
		logger:  logger,
	}
	router := &fetcher.Router{HTTP: httpFetcher}

	if cfg.Scraper.RenderDetails {
		opts := browserOptions(cfg, locality)
		b, err := browser.New(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		deps.browser = b
		router.Browser = fetcher.NewBrowserFetcher(b, fetcher.BrowserOptions{
			Timeout:         cfg.Scraper.RequestTimeout,
			SelectorTimeout: cfg.DetailSelectorTimeout(),
			WaitSelector:    cfg.Scraper.WaitSelector,
			MaxRetries:      cfg.Scraper.MaxRetries,
		})
	}
	deps.fetcher = router

	return deps, nil
}

func browserOptions(cfg *config.Config, locality fetcher.Cookie) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Scraper.RequestTimeout
	opts.UserAgent = cfg.Scraper.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.Locale = cfg.Browser.Locale
	opts.TimezoneID = cfg.Browser.TimezoneID

	if cfg.Proxy.Enabled() {
		opts.ProxyServer = cfg.Proxy.Server
		opts.ProxyUsername = cfg.Proxy.User
		opts.ProxyPassword = cfg.Proxy.Password
		opts.IgnoreHTTPSErrors = true
	}

	seen := make(map[string]bool)
	for _, raw := range cfg.Scraper.CatalogURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		if seen[origin] {
			continue
		}
		seen[origin] = true
		opts.Cookies = append(opts.Cookies, browser.Cookie{Name: locality.Name, Value: locality.Value, URL: origin})
	}

	return opts
}

func (d *dependencies) newCrawler(cfg *config.Config, catalogURLs []string, maxPages int, out sink.Sink, links *storage.LinkStorage) *crawler.Crawler {
	return crawler.New(d.fetcher, d.parser, out, d.limiter, links, crawler.Options{
		CatalogURLs:   catalogURLs,
		MaxPages:      maxPages,
		Workers:       cfg.Scraper.Workers,
		RenderDetails: cfg.Scraper.RenderDetails,
		WaitSelector:  cfg.Scraper.WaitSelector,
		MaxRequeues:   cfg.Scraper.MaxRequeues,
	}, d.logger)
}

func (d *dependencies) Close() {
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			d.logger.Error("failed to close browser", "error", err)
		}
	}
}

// outputs are the configured sinks plus the record repository when the
// postgres sink is among them.
type outputs struct {
	sinks   *sink.MultiSink
	records *database.RecordRepository
}

func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*outputs, error) {
	var sinks []sink.Sink
	out := &outputs{}
	fail := func(err error) (*outputs, error) {
		sink.NewMultiSink(sinks...).Close()
		return nil, err
	}

	for _, name := range cfg.Sink.Names {
		switch name {
		case config.SinkStdout:
			sinks = append(sinks, sink.NewJSONLinesSink(os.Stdout))

		case config.SinkFile:
			s, err := sink.NewFileSink(cfg.Sink.FilePath)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, s)

		case config.SinkRedis:
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				client.Close()
				return fail(fmt.Errorf("failed to connect to Redis: %w", err))
			}
			sinks = append(sinks, sink.NewRedisSink(client, cfg.Redis.Stream, logger))

		case config.SinkPostgres:
			db, err := database.New(ctx, database.Config{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				Database: cfg.Database.Name,
				MaxConns: cfg.Database.MaxConns,
			})
			if err != nil {
				return fail(fmt.Errorf("failed to connect to database: %w", err))
			}
			repo := database.NewRecordRepository(db)
			if err := repo.EnsureSchema(ctx); err != nil {
				db.Close()
				return fail(err)
			}
			sinks = append(sinks, sink.NewPostgresSink(repo, db.Close))
			out.records = repo
		}
	}

	logger.Info("sinks ready", "sinks", cfg.Sink.Names)
	out.sinks = sink.NewMultiSink(sinks...)
	return out, nil
}
