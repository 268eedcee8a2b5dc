package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Cookie struct {
	Name  string
	Value string
	URL   string
}

type Options struct {
	Headless          bool
	Timeout           time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
	TimezoneID        string
	ProxyServer       string
	ProxyUsername     string
	ProxyPassword     string
	IgnoreHTTPSErrors bool
	Cookies           []Cookie
	ExtraHeaders      map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        15 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "ru-RU",
		TimezoneID:     "Europe/Moscow",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "ru-RU,ru;q=0.9,en;q=0.8",
		},
	}
}

// LaunchOptions translates Options into playwright launch options. Proxy
// credentials travel with the launch, not the context.
func (o *Options) LaunchOptions() playwright.BrowserTypeLaunchOptions {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(o.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}

	if o.ProxyServer != "" {
		proxy := &playwright.Proxy{Server: o.ProxyServer}
		if o.ProxyUsername != "" {
			proxy.Username = playwright.String(o.ProxyUsername)
			proxy.Password = playwright.String(o.ProxyPassword)
		}
		launchOpts.Proxy = proxy
	}

	return launchOpts
}

func (o *Options) ContextOptions() playwright.BrowserNewContextOptions {
	return playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(o.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(o.IgnoreHTTPSErrors),
		Locale:            playwright.String(o.Locale),
		TimezoneId:        playwright.String(o.TimezoneID),
		Viewport: &playwright.Size{
			Width:  o.ViewportWidth,
			Height: o.ViewportHeight,
		},
		ExtraHttpHeaders: o.ExtraHeaders,
	}
}

func (o *Options) PlaywrightCookies() []playwright.OptionalCookie {
	cookies := make([]playwright.OptionalCookie, 0, len(o.Cookies))
	for _, c := range o.Cookies {
		cookies = append(cookies, playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
			URL:   playwright.String(c.URL),
		})
	}
	return cookies
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(opts.LaunchOptions())
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(opts.ContextOptions())
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if len(opts.Cookies) > 0 {
		if err := context.AddCookies(opts.PlaywrightCookies()); err != nil {
			context.Close()
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to set cookies: %w", err)
		}
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// RenderRequest describes one page to render.
type RenderRequest struct {
	URL             string
	WaitSelector    string
	Timeout         time.Duration
	SelectorTimeout time.Duration
	MaxRetries      int
}

// Rendered is a page after client side rendering. URL is where the browser
// ended up after redirects.
type Rendered struct {
	URL  string
	HTML string
}

// Render navigates to the URL, waits for the selector and returns the
// rendered HTML.
func (b *Browser) Render(ctx context.Context, req RenderRequest) (*Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := b.NavigateWithRetry(ctx, page, req); err != nil {
		return nil, err
	}

	if req.WaitSelector != "" {
		timeout := req.SelectorTimeout
		if timeout == 0 {
			timeout = req.Timeout
		}
		if _, err := page.WaitForSelector(req.WaitSelector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(float64(timeout.Milliseconds())),
		}); err != nil {
			return nil, fmt.Errorf("wait for %q: %w", req.WaitSelector, err)
		}
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}

	finalURL := page.URL()
	if finalURL == "" {
		finalURL = req.URL
	}

	return &Rendered{URL: finalURL, HTML: html}, nil
}

func (b *Browser) NavigateWithRetry(ctx context.Context, page playwright.Page, req RenderRequest) error {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = b.opts.Timeout
	}

	var lastErr error
	for i := 0; i <= req.MaxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", req.URL)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		_, err := page.Goto(req.URL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1, "url", req.URL)
	}

	return fmt.Errorf("failed after %d attempts: %w", req.MaxRetries+1, lastErr)
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
