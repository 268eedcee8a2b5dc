package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://fix-price.com/catalog/kosmetika-i-gigiena"}, cfg.Scraper.CatalogURLs)
	assert.Equal(t, 7, cfg.Scraper.DetailCap)
	assert.Equal(t, 15*time.Second, cfg.Scraper.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Scraper.SelectorTimeout)
	assert.Equal(t, "div.page-content", cfg.Scraper.WaitSelector)
	assert.True(t, cfg.Scraper.RenderDetails)
	assert.Equal(t, []string{SinkStdout}, cfg.Sink.Names)
	assert.False(t, cfg.Proxy.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CATALOG_URLS", "https://fix-price.com/catalog/a, https://fix-price.com/catalog/b")
	t.Setenv("SCRAPER_DETAIL_CAP", "3")
	t.Setenv("SCRAPER_REQUEST_TIMEOUT", "20s")
	t.Setenv("PROXY", "http://proxy.local:3128")
	t.Setenv("PROXY_USER", "user")
	t.Setenv("PROXY_PASSWORD", "secret")
	t.Setenv("SINKS", "stdout,redis")
	t.Setenv("LISTING_URL_TEMPLATE", "https://fix-price.com/catalog/%D0%BA%D0%BE?page={page}")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://fix-price.com/catalog/a", "https://fix-price.com/catalog/b"}, cfg.Scraper.CatalogURLs)
	assert.Equal(t, 3, cfg.Scraper.DetailCap)
	assert.Equal(t, 20*time.Second, cfg.Scraper.RequestTimeout)
	assert.True(t, cfg.Proxy.Enabled())
	assert.Equal(t, "user", cfg.Proxy.User)
	assert.True(t, cfg.HasSink(SinkRedis))
	assert.False(t, cfg.HasSink(SinkPostgres))
	assert.Equal(t, "https://fix-price.com/catalog/%D0%BA%D0%BE?page={page}", cfg.Scraper.URLTemplate)
	assert.NoError(t, cfg.Validate())
}

func TestDetailSelectorTimeout(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, cfg.Scraper.RequestTimeout, cfg.DetailSelectorTimeout())

	cfg.Proxy.Server = "http://proxy.local:3128"
	assert.Equal(t, 10*time.Second, cfg.DetailSelectorTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "no catalog urls",
			mutate: func(c *Config) { c.Scraper.CatalogURLs = nil },
			errMsg: "CATALOG_URLS",
		},
		{
			name:   "relative catalog url",
			mutate: func(c *Config) { c.Scraper.CatalogURLs = []string{"/catalog/x"} },
			errMsg: "invalid catalog URL",
		},
		{
			name:   "zero cap",
			mutate: func(c *Config) { c.Scraper.DetailCap = 0 },
			errMsg: "SCRAPER_DETAIL_CAP",
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Scraper.Workers = 0 },
			errMsg: "SCRAPER_WORKERS",
		},
		{
			name:   "template without placeholder",
			mutate: func(c *Config) { c.Scraper.URLTemplate = "https://fix-price.com/catalog/x?page=1" },
			errMsg: "LISTING_URL_TEMPLATE",
		},
		{
			name:   "template with two placeholders",
			mutate: func(c *Config) { c.Scraper.URLTemplate = "https://fix-price.com/{page}/x?page={page}" },
			errMsg: "LISTING_URL_TEMPLATE",
		},
		{
			name:   "unknown sink",
			mutate: func(c *Config) { c.Sink.Names = []string{"kafka"} },
			errMsg: "unknown sink",
		},
		{
			name: "file sink without path",
			mutate: func(c *Config) {
				c.Sink.Names = []string{SinkStdout, SinkFile}
				c.Sink.FilePath = ""
			},
			errMsg: "SINK_FILE",
		},
		{
			name:   "negative requeues",
			mutate: func(c *Config) { c.Scraper.MaxRequeues = -1 },
			errMsg: "SCRAPER_MAX_REQUEUES",
		},
		{
			name:   "unknown stock policy",
			mutate: func(c *Config) { c.Scraper.StockPolicy = "cart" },
			errMsg: "unknown stock policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
