package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fixprice-scraper/internal/browser"
)

// Renderer is the part of *browser.Browser the fetcher needs.
type Renderer interface {
	Render(ctx context.Context, req browser.RenderRequest) (*browser.Rendered, error)
}

type BrowserOptions struct {
	Timeout         time.Duration
	SelectorTimeout time.Duration
	WaitSelector    string
	MaxRetries      int
}

// BrowserFetcher renders pages that only fill in their content client side.
type BrowserFetcher struct {
	renderer Renderer
	opts     BrowserOptions
}

func NewBrowserFetcher(renderer Renderer, opts BrowserOptions) *BrowserFetcher {
	return &BrowserFetcher{renderer: renderer, opts: opts}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	wait := req.WaitSelector
	if wait == "" {
		wait = f.opts.WaitSelector
	}

	rendered, err := f.renderer.Render(ctx, browser.RenderRequest{
		URL:             req.URL,
		WaitSelector:    wait,
		Timeout:         f.opts.Timeout,
		SelectorTimeout: f.opts.SelectorTimeout,
		MaxRetries:      f.opts.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", req.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered HTML: %w", err)
	}

	return &Page{URL: rendered.URL, StatusCode: 200, Document: doc}, nil
}
