package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/listing-report/internal/browser"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Scrape   ScrapeConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	Proxy          string
	Bin            string
}

type ScrapeConfig struct {
	Concurrency int
	RunTimeout  time.Duration
	SitesFile   string
	// AdhocEnabled turns on POST /api/v1/scrape with caller-supplied sites.
	AdhocEnabled      bool
	AdhocAllowedHosts []string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 11*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", browser.EnginePlaywright),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_NAV_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			Proxy:          getEnvOrDefault("BROWSER_PROXY", ""),
			Bin:            getEnvOrDefault("BROWSER_BIN", ""),
		},
		Scrape: ScrapeConfig{
			Concurrency: getIntOrDefault("SCRAPE_CONCURRENCY", 1),
			RunTimeout:  getDurationOrDefault("SCRAPE_RUN_TIMEOUT", 10*time.Minute),
			SitesFile:   getEnvOrDefault("SITES_FILE", ""),

			AdhocEnabled:      getBoolOrDefault("SCRAPE_ADHOC_ENABLED", false),
			AdhocAllowedHosts: getStringSliceOrDefault("SCRAPE_ADHOC_ALLOWED_HOSTS", nil),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "listing_report"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:scrape_runs"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case browser.EnginePlaywright, browser.EngineRod:
	default:
		return fmt.Errorf("BROWSER_ENGINE must be %q or %q", browser.EnginePlaywright, browser.EngineRod)
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("BROWSER_NAV_TIMEOUT must be positive")
	}

	if c.Scrape.Concurrency < 1 {
		return fmt.Errorf("SCRAPE_CONCURRENCY must be at least 1")
	}

	if c.Scrape.RunTimeout < c.Browser.Timeout {
		return fmt.Errorf("SCRAPE_RUN_TIMEOUT cannot be shorter than BROWSER_NAV_TIMEOUT")
	}

	if c.Server.WriteTimeout < c.RequestTimeout() {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be at least SCRAPE_RUN_TIMEOUT plus %s", requestGrace)
	}

	if c.Database.Enabled && c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}

	return nil
}

// BrowserOptions maps the browser settings onto driver options.
func (c *Config) BrowserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = c.Browser.Headless
	opts.Timeout = c.Browser.Timeout
	opts.ViewportWidth = c.Browser.ViewportWidth
	opts.ViewportHeight = c.Browser.ViewportHeight
	opts.AcceptLanguage = c.Browser.AcceptLanguage
	opts.TimezoneID = c.Browser.TimezoneID
	opts.Locale = c.Browser.Locale
	opts.ProxyServer = c.Browser.Proxy
	opts.BrowserBin = c.Browser.Bin
	if c.Browser.UserAgent != "" {
		opts.UserAgent = c.Browser.UserAgent
	}
	return opts
}

// requestGrace is the time a handler gets after the run timeout to write
// its own response.
const requestGrace = 30 * time.Second

// RequestTimeout bounds one API request. It outlasts the run timeout so a
// timed out run is reported by the handler, not by the router.
func (c *Config) RequestTimeout() time.Duration {
	return c.Scrape.RunTimeout + requestGrace
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
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
		return strings.Split(value, ",")
	}
	return defaultValue
}
