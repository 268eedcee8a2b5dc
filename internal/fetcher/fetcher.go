package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoDocument = errors.New("no document received")

// Request is one page to load. Render asks for a headless browser pass.
type Request struct {
	URL          string
	Render       bool
	WaitSelector string
}

// Page is a loaded document together with the URL it resolved to after
// redirects.
type Page struct {
	URL        string
	StatusCode int
	Document   *goquery.Document
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Page, error)
}

type Cookie struct {
	Name  string
	Value string
}

// LocalityCookie encodes the site's locality JSON the way a browser stores it.
func LocalityCookie(value string) Cookie {
	return Cookie{Name: "locality", Value: url.QueryEscape(value)}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case 408, 429, 500, 502, 503, 504, 522, 524:
		return true
	}
	return false
}

// IsRetryable reports whether a failed fetch may succeed when tried again.
// Status errors decide by code; other errors are treated as transient
// network failures unless the context ended.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * 500 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Router sends render requests to the browser fetcher and everything else,
// or everything when no browser is configured, over plain HTTP.
type Router struct {
	HTTP    Fetcher
	Browser Fetcher
}

func (r *Router) Fetch(ctx context.Context, req Request) (*Page, error) {
	if req.Render && r.Browser != nil {
		return r.Browser.Fetch(ctx, req)
	}
	return r.HTTP.Fetch(ctx, req)
}
