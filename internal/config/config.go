package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SinkStdout   = "stdout"
	SinkFile     = "file"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

const defaultLocalityCookie = `{"city":"Москва","cityId":55,"longitude":37.6173,"latitude":55.7558,"prefix":"г"}`

type Config struct {
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Proxy    ProxyConfig
	Sink     SinkConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	CatalogURLs     []string
	URLTemplate     string
	LocalityCookie  string
	UserAgent       string
	DetailCap       int
	MaxPages        int
	MaxRetries      int
	MaxRequeues     int
	RequestTimeout  time.Duration
	SelectorTimeout time.Duration
	WaitSelector    string
	RenderDetails   bool
	Workers         int
	RatePerSecond   float64
	RateBurst       int
	Jitter          time.Duration
	AllowedDomains  []string
	RespectRobots   bool
	StockPolicy     string
	LinkStoreFile   string
}

type BrowserConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
}

type ProxyConfig struct {
	Server   string
	User     string
	Password string
}

func (p ProxyConfig) Enabled() bool {
	return p.Server != ""
}

type SinkConfig struct {
	Names    []string
	FilePath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scraper: ScraperConfig{
			CatalogURLs:     getStringSliceOrDefault("CATALOG_URLS", []string{"https://fix-price.com/catalog/kosmetika-i-gigiena"}),
			URLTemplate:     getEnvOrDefault("LISTING_URL_TEMPLATE", ""),
			LocalityCookie:  getEnvOrDefault("LOCALITY_COOKIE", defaultLocalityCookie),
			UserAgent:       getEnvOrDefault("SCRAPER_USER_AGENT", defaultUserAgent),
			DetailCap:       getIntOrDefault("SCRAPER_DETAIL_CAP", 7),
			MaxPages:        getIntOrDefault("SCRAPER_MAX_PAGES", 0),
			MaxRetries:      getIntOrDefault("SCRAPER_MAX_RETRIES", 2),
			MaxRequeues:     getIntOrDefault("SCRAPER_MAX_REQUEUES", 1),
			RequestTimeout:  getDurationOrDefault("SCRAPER_REQUEST_TIMEOUT", 15*time.Second),
			SelectorTimeout: getDurationOrDefault("SCRAPER_SELECTOR_TIMEOUT", 10*time.Second),
			WaitSelector:    getEnvOrDefault("SCRAPER_WAIT_SELECTOR", "div.page-content"),
			RenderDetails:   getBoolOrDefault("SCRAPER_RENDER_DETAILS", true),
			Workers:         getIntOrDefault("SCRAPER_WORKERS", 4),
			RatePerSecond:   getFloatOrDefault("SCRAPER_RATE_PER_SECOND", 2),
			RateBurst:       getIntOrDefault("SCRAPER_RATE_BURST", 1),
			Jitter:          getDurationOrDefault("SCRAPER_JITTER", 500*time.Millisecond),
			AllowedDomains:  getStringSliceOrDefault("SCRAPER_ALLOWED_DOMAINS", []string{"fix-price.com"}),
			RespectRobots:   getBoolOrDefault("SCRAPER_RESPECT_ROBOTS", false),
			StockPolicy:     getEnvOrDefault("SCRAPER_STOCK_POLICY", "fixed"),
			LinkStoreFile:   getEnvOrDefault("SCRAPER_LINK_STORE", ""),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
		},
		Proxy: ProxyConfig{
			Server:   getEnvOrDefault("PROXY", ""),
			User:     getEnvOrDefault("PROXY_USER", ""),
			Password: getEnvOrDefault("PROXY_PASSWORD", ""),
		},
		Sink: SinkConfig{
			Names:    getStringSliceOrDefault("SINKS", []string{SinkStdout}),
			FilePath: getEnvOrDefault("SINK_FILE", "products.jsonl"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "fixprice"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:fixprice_products"),
		},
		Server: ServerConfig{
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_CORS_ORIGINS", nil),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// DetailSelectorTimeout is how long a rendered detail page may take to show
// the wait selector. Only proxied sessions get the shorter dedicated timeout.
func (c *Config) DetailSelectorTimeout() time.Duration {
	if c.Proxy.Enabled() {
		return c.Scraper.SelectorTimeout
	}
	return c.Scraper.RequestTimeout
}

func (c *Config) HasSink(name string) bool {
	for _, n := range c.Sink.Names {
		if n == name {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if len(c.Scraper.CatalogURLs) == 0 {
		return fmt.Errorf("CATALOG_URLS must contain at least one URL")
	}

	for _, raw := range c.Scraper.CatalogURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid catalog URL: %q", raw)
		}
	}

	if c.Scraper.URLTemplate != "" && strings.Count(c.Scraper.URLTemplate, "{page}") != 1 {
		return fmt.Errorf("LISTING_URL_TEMPLATE must contain exactly one {page}")
	}

	if c.Scraper.DetailCap < 1 {
		return fmt.Errorf("SCRAPER_DETAIL_CAP must be at least 1")
	}

	if c.Scraper.MaxPages < 0 {
		return fmt.Errorf("SCRAPER_MAX_PAGES cannot be negative")
	}

	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES cannot be negative")
	}

	if c.Scraper.MaxRequeues < 0 {
		return fmt.Errorf("SCRAPER_MAX_REQUEUES cannot be negative")
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.RequestTimeout <= 0 || c.Scraper.SelectorTimeout <= 0 {
		return fmt.Errorf("scraper timeouts must be positive")
	}

	if c.Scraper.RatePerSecond <= 0 || c.Scraper.RateBurst < 1 {
		return fmt.Errorf("SCRAPER_RATE_PER_SECOND must be positive and SCRAPER_RATE_BURST at least 1")
	}

	if c.Scraper.StockPolicy != "fixed" && c.Scraper.StockPolicy != "page" {
		return fmt.Errorf("unknown stock policy: %s", c.Scraper.StockPolicy)
	}

	if c.Proxy.Enabled() {
		if _, err := url.Parse(c.Proxy.Server); err != nil {
			return fmt.Errorf("invalid PROXY: %w", err)
		}
	}

	for _, name := range c.Sink.Names {
		switch name {
		case SinkStdout, SinkFile, SinkRedis, SinkPostgres:
		default:
			return fmt.Errorf("unknown sink: %s", name)
		}
	}

	if c.HasSink(SinkFile) && c.Sink.FilePath == "" {
		return fmt.Errorf("SINK_FILE is required for the file sink")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
