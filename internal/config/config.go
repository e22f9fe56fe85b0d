package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/ambient-display/internal/feeds"
)

var validate = validator.New()

// AppConfig holds everything the display needs at startup. List-shaped settings
// may come from a YAML file (DISPLAY_CONFIG); environment variables win.
type AppConfig struct {
	// Location of the forecast and the zone the clock and status line use.
	Latitude  float64 `yaml:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `yaml:"longitude" validate:"min=-180,max=180"`
	Timezone  string  `yaml:"timezone" validate:"required"`

	WeatherURL      string        `yaml:"weather_url" validate:"required,url"`
	WeatherInterval time.Duration `yaml:"weather_interval" validate:"gt=0"`

	NewsURL      string   `yaml:"news_url" validate:"required,url"`
	NewsAPIKey   string   `yaml:"-"`
	NewsSections []string `yaml:"news_sections"`
	NewsPageSize int      `yaml:"news_page_size" validate:"min=1,max=10"`
	// NewsInterval is an optional coarse re-poll; zero leaves news to the ticker.
	NewsInterval  time.Duration `yaml:"news_interval" validate:"min=0"`
	HeadlineWidth int           `yaml:"headline_width" validate:"min=0"`

	// Ticker pacing.
	TickerRefreshCycles int           `yaml:"ticker_refresh_cycles" validate:"min=1"`
	TickerIdleDelay     time.Duration `yaml:"ticker_idle_delay" validate:"gt=0"`
	// TickerIdleRefresh is how often news is re-polled while the ticker has nothing to show.
	TickerIdleRefresh time.Duration `yaml:"ticker_idle_refresh" validate:"gt=0"`

	TelemetryURL      string          `yaml:"telemetry_url" validate:"required,url"`
	TelemetryUser     string          `yaml:"telemetry_user"`
	TelemetryAPIKey   string          `yaml:"-"`
	TelemetryInterval time.Duration   `yaml:"telemetry_interval" validate:"gt=0"`
	TelemetryReadings []feeds.Reading `yaml:"telemetry_readings" validate:"dive"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`
	// BreakerTimeout is how long a tripped feed fails fast before trying again. It
	// must be shorter than every poll interval so each scheduled poll reaches the upstream.
	BreakerTimeout time.Duration `yaml:"breaker_timeout" validate:"gt=0,ltfield=WeatherInterval,ltfield=TelemetryInterval"`

	// Status API.
	APIEnabled bool   `yaml:"api_enabled"`
	Port       string `yaml:"port" validate:"required,numeric"`

	Headless    bool   `yaml:"headless"`
	LogFile     string `yaml:"log_file"`
	HistorySize int    `yaml:"history_size" validate:"min=0"`
}

// Load reads configuration from an optional YAML file and the environment, with
// sensible defaults, and validates the result.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := Defaults()

	if path := os.Getenv("DISPLAY_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.NewsInterval > 0 && cfg.BreakerTimeout >= cfg.NewsInterval {
		return nil, fmt.Errorf("invalid configuration: BREAKER_TIMEOUT %s must be shorter than NEWS_INTERVAL %s", cfg.BreakerTimeout, cfg.NewsInterval)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set: Malmö, ten minute
// weather and telemetry polls, news refreshed by the ticker only.
func Defaults() *AppConfig {
	return &AppConfig{
		Latitude:            55.605,
		Longitude:           13.0038,
		Timezone:            "Europe/Stockholm",
		WeatherURL:          feeds.DefaultWeatherURL,
		WeatherInterval:     600 * time.Second,
		NewsURL:             feeds.DefaultNewsURL,
		NewsSections:        []string{"world", "technology", "science"},
		NewsPageSize:        10,
		HeadlineWidth:       40,
		TickerRefreshCycles: 4,
		TickerIdleDelay:     time.Second,
		TickerIdleRefresh:   15 * time.Second,
		TelemetryURL:        feeds.DefaultTelemetryURL,
		TelemetryInterval:   600 * time.Second,
		TelemetryReadings:   append([]feeds.Reading(nil), feeds.DefaultReadings...),
		HTTPTimeout:         30 * time.Second,
		BreakerTimeout:      30 * time.Second,
		APIEnabled:          true,
		Port:                "8080",
		LogFile:             "ambient-display.log",
		HistorySize:         50,
	}
}

// Location returns the configured display zone.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read DISPLAY_CONFIG: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse DISPLAY_CONFIG: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	var err error

	if cfg.Latitude, err = getenvFloat("DISPLAY_LATITUDE", cfg.Latitude); err != nil {
		return err
	}
	if cfg.Longitude, err = getenvFloat("DISPLAY_LONGITUDE", cfg.Longitude); err != nil {
		return err
	}
	cfg.Timezone = getenvDefault("DISPLAY_TIMEZONE", cfg.Timezone)

	cfg.WeatherURL = getenvDefault("WEATHER_URL", cfg.WeatherURL)
	if cfg.WeatherInterval, err = getenvDuration("WEATHER_INTERVAL", cfg.WeatherInterval); err != nil {
		return err
	}

	cfg.NewsURL = getenvDefault("NEWS_URL", cfg.NewsURL)
	cfg.NewsAPIKey = getenvDefault("NEWS_API_KEY", cfg.NewsAPIKey)
	if v := os.Getenv("NEWS_SECTIONS"); v != "" {
		cfg.NewsSections = splitList(v)
	}
	cfg.NewsPageSize = getenvInt("NEWS_PAGE_SIZE", cfg.NewsPageSize)
	if cfg.NewsInterval, err = getenvDuration("NEWS_INTERVAL", cfg.NewsInterval); err != nil {
		return err
	}
	cfg.HeadlineWidth = getenvInt("HEADLINE_WIDTH", cfg.HeadlineWidth)
	cfg.TickerRefreshCycles = getenvInt("TICKER_REFRESH_CYCLES", cfg.TickerRefreshCycles)
	if cfg.TickerIdleDelay, err = getenvDuration("TICKER_IDLE_DELAY", cfg.TickerIdleDelay); err != nil {
		return err
	}
	if cfg.TickerIdleRefresh, err = getenvDuration("TICKER_IDLE_REFRESH", cfg.TickerIdleRefresh); err != nil {
		return err
	}

	cfg.TelemetryURL = getenvDefault("TELEMETRY_URL", cfg.TelemetryURL)
	cfg.TelemetryUser = getenvDefault("TELEMETRY_USER", cfg.TelemetryUser)
	cfg.TelemetryAPIKey = getenvDefault("TELEMETRY_API_KEY", cfg.TelemetryAPIKey)
	if cfg.TelemetryInterval, err = getenvDuration("TELEMETRY_INTERVAL", cfg.TelemetryInterval); err != nil {
		return err
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.BreakerTimeout, err = getenvDuration("BREAKER_TIMEOUT", cfg.BreakerTimeout); err != nil {
		return err
	}

	cfg.APIEnabled = getenvBool("API_ENABLED", cfg.APIEnabled)
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.Headless = getenvBool("DISPLAY_HEADLESS", cfg.Headless)
	cfg.LogFile = getenvDefault("DISPLAY_LOG_FILE", cfg.LogFile)
	cfg.HistorySize = getenvInt("POLL_HISTORY_SIZE", cfg.HistorySize)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
