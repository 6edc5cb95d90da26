package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Analyzer AnalyzerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BrowserConfig struct {
	Headless    bool
	NavTimeout  time.Duration
	NavAttempts int
	Locale      string
	TimezoneID  string
}

type ScraperConfig struct {
	ListingLimit    int
	TaskTimeout     time.Duration
	RateLimitMin    time.Duration
	RateLimitMax    time.Duration
	ScrollBudget    int
	StagnationLimit int
	SettleDelay     time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	// Directory for the JSON file sink used when Postgres is disabled.
	Dir string
}

type AnalyzerConfig struct {
	// Empty URL disables review analysis.
	URL string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Browser: BrowserConfig{
			Headless:    getBoolOrDefault("BROWSER_HEADLESS", true),
			NavTimeout:  getDurationOrDefault("BROWSER_NAV_TIMEOUT", 30*time.Second),
			NavAttempts: getIntOrDefault("BROWSER_NAV_ATTEMPTS", 3),
			Locale:      getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			TimezoneID:  getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
		},
		Scraper: ScraperConfig{
			ListingLimit:    getIntOrDefault("SCRAPER_LISTING_LIMIT", 10),
			TaskTimeout:     getDurationOrDefault("SCRAPER_TASK_TIMEOUT", 3*time.Minute),
			RateLimitMin:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 6*time.Second),
			ScrollBudget:    getIntOrDefault("SCRAPER_SCROLL_BUDGET", 20),
			StagnationLimit: getIntOrDefault("SCRAPER_SCROLL_STAGNATION", 5),
			SettleDelay:     getDurationOrDefault("SCRAPER_SCROLL_SETTLE", 1500*time.Millisecond),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "market_scraper"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Dir: getEnvOrDefault("STORAGE_DIR", "./data"),
		},
		Analyzer: AnalyzerConfig{
			URL: getEnvOrDefault("ANALYZER_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be a valid port")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Scraper.ListingLimit < 1 {
		return fmt.Errorf("SCRAPER_LISTING_LIMIT must be at least 1")
	}

	if c.Browser.NavAttempts < 1 {
		return fmt.Errorf("BROWSER_NAV_ATTEMPTS must be at least 1")
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
