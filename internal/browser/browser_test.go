package browser

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 15*time.Second {
		t.Errorf("Expected timeout to be 15s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "ru-RU" {
		t.Errorf("Expected locale to be ru-RU, got %s", opts.Locale)
	}
}

func TestLaunchOptionsProxy(t *testing.T) {
	opts := DefaultOptions()

	if launch := opts.LaunchOptions(); launch.Proxy != nil {
		t.Error("Expected no proxy when ProxyServer is empty")
	}

	opts.ProxyServer = "http://proxy.local:3128"
	opts.ProxyUsername = "user"
	opts.ProxyPassword = "secret"

	launch := opts.LaunchOptions()
	if launch.Proxy == nil {
		t.Fatal("Expected proxy to be set")
	}
	if launch.Proxy.Server != "http://proxy.local:3128" {
		t.Errorf("Unexpected proxy server %s", launch.Proxy.Server)
	}
	if launch.Proxy.Username == nil || *launch.Proxy.Username != "user" {
		t.Error("Expected proxy username to be set")
	}
	if launch.Proxy.Password == nil || *launch.Proxy.Password != "secret" {
		t.Error("Expected proxy password to be set")
	}
}

func TestContextOptionsIgnoreHTTPSErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.IgnoreHTTPSErrors = true

	ctxOpts := opts.ContextOptions()
	if ctxOpts.IgnoreHttpsErrors == nil || !*ctxOpts.IgnoreHttpsErrors {
		t.Error("Expected IgnoreHttpsErrors to be true")
	}
	if ctxOpts.Viewport == nil || ctxOpts.Viewport.Width != 1920 {
		t.Error("Expected viewport width 1920")
	}
}

func TestPlaywrightCookies(t *testing.T) {
	opts := DefaultOptions()
	opts.Cookies = []Cookie{{Name: "locality", Value: "{}", URL: "https://fix-price.com"}}

	cookies := opts.PlaywrightCookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != "locality" || cookies[0].URL == nil || *cookies[0].URL != "https://fix-price.com" {
		t.Errorf("Unexpected cookie %+v", cookies[0])
	}
}
