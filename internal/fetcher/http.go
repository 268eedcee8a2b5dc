package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

type HTTPOptions struct {
	UserAgent      string
	Timeout        time.Duration
	ProxyURL       string
	ProxyUser      string
	ProxyPassword  string
	AllowedDomains []string
	RespectRobots  bool
	Cookies        []Cookie
	MaxRetries     int
}

// HTTPFetcher loads pages without JavaScript through a colly collector.
type HTTPFetcher struct {
	collector *colly.Collector
	opts      HTTPOptions
	logger    *slog.Logger
}

func NewHTTPFetcher(opts HTTPOptions, logger *slog.Logger) (*HTTPFetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	collectorOpts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}
	if len(opts.AllowedDomains) > 0 {
		collectorOpts = append(collectorOpts, colly.AllowedDomains(opts.AllowedDomains...))
	}

	c := colly.NewCollector(collectorOpts...)
	c.IgnoreRobotsTxt = !opts.RespectRobots

	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	if opts.ProxyURL != "" {
		proxy, err := ProxyURL(opts.ProxyURL, opts.ProxyUser, opts.ProxyPassword)
		if err != nil {
			return nil, err
		}
		if err := c.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("failed to set proxy: %w", err)
		}
	}

	return &HTTPFetcher{
		collector: c,
		opts:      opts,
		logger:    logger.With("component", "http_fetcher"),
	}, nil
}

// ProxyURL folds credentials into the proxy URL.
func ProxyURL(server, user, password string) (string, error) {
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid proxy URL %q", server)
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Info("retrying fetch", "url", req.URL, "attempt", attempt+1)
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		page, err := f.fetchOnce(ctx, req.URL)
		if err == nil {
			return page, nil
		}

		lastErr = err
		f.logger.Warn("fetch failed", "url", req.URL, "attempt", attempt+1, "error", err)
		if !IsRetryable(err) {
			break
		}
	}

	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, target string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.collector.Clone()

	var (
		page     *Page
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if header := f.cookieHeader(); header != "" {
			r.Headers.Set("Cookie", header)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			fetchErr = fmt.Errorf("failed to parse HTML: %w", err)
			return
		}
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Document:   doc,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			fetchErr = &StatusError{URL: target, StatusCode: r.StatusCode}
			return
		}
		fetchErr = fmt.Errorf("request %s: %w", target, err)
	})

	if err := c.Visit(target); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("visit %s: %w", target, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDocument, target)
	}

	return page, nil
}

func (f *HTTPFetcher) cookieHeader() string {
	parts := make([]string, 0, len(f.opts.Cookies))
	for _, c := range f.opts.Cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
