package feeds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/ambient-display/internal/display"
)

const telemetryFeed = "telemetry"

// DefaultTelemetryURL is the Adafruit IO REST API root.
const DefaultTelemetryURL = "https://io.adafruit.com/api/v2"

// telemetryKeyHeader carries the per-account key on every request.
const telemetryKeyHeader = "X-AIO-Key"

var errAllReadingsFailed = errors.New("every reading failed")

// Reading describes one telemetry value shown on the display.
type Reading struct {
	Name string `yaml:"name" validate:"required"`
	Feed string `yaml:"feed" validate:"required"` // upstream feed key
	Unit string `yaml:"unit"`
}

// DefaultReadings is the set polled when no readings are configured.
var DefaultReadings = []Reading{
	{Name: "temperature", Feed: "temperature", Unit: "°C"},
	{Name: "voltage", Feed: "voltage", Unit: "V"},
	{Name: "percent", Feed: "percent", Unit: "%"},
	{Name: "current", Feed: "current", Unit: "mA"},
	{Name: "humidity", Feed: "humidity", Unit: "%"},
}

// TelemetryConfig points at one account's feeds.
type TelemetryConfig struct {
	BaseURL        string
	Username       string
	APIKey         string
	Readings       []Reading
	BreakerTimeout time.Duration
}

// TelemetryRound holds the raw body of every reading fetched in one poll, keyed
// by reading name.
type TelemetryRound map[string][]byte

// TelemetryClient fetches the last value of each configured reading. Every
// reading has its own circuit breaker, so one dead feed cannot trip the others.
type TelemetryClient struct {
	cfg  TelemetryConfig
	reqs map[string]*requester
}

func NewTelemetryClient(client *http.Client, cfg TelemetryConfig) *TelemetryClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelemetryURL
	}
	if len(cfg.Readings) == 0 {
		cfg.Readings = DefaultReadings
	}
	reqs := make(map[string]*requester, len(cfg.Readings))
	for _, r := range cfg.Readings {
		reqs[r.Name] = newRequester(telemetryFeed, client, cfg.BreakerTimeout)
	}
	return &TelemetryClient{
		cfg:  cfg,
		reqs: reqs,
	}
}

// Readings returns the configured readings in display order.
func (c *TelemetryClient) Readings() []Reading {
	return append([]Reading(nil), c.cfg.Readings...)
}

// Fetch requests every reading concurrently. Individual failures are logged and
// left out of the round; the round fails only when no reading could be fetched.
func (c *TelemetryClient) Fetch(ctx context.Context) (TelemetryRound, error) {
	if c.cfg.APIKey == "" {
		return nil, &FetchError{Feed: telemetryFeed, Err: fmt.Errorf("telemetry api key is not configured")}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		round   = make(TelemetryRound, len(c.cfg.Readings))
		lastErr error
	)

	for _, r := range c.cfg.Readings {
		wg.Add(1)
		go func(r Reading) {
			defer wg.Done()

			body, err := c.fetchOne(ctx, r)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("telemetry: reading %s failed: %v", r.Name, err)
				lastErr = err
				return
			}
			round[r.Name] = body
		}(r)
	}
	wg.Wait()

	if len(round) == 0 {
		if lastErr == nil {
			lastErr = &FetchError{Feed: telemetryFeed, Err: errAllReadingsFailed}
		}
		return nil, lastErr
	}
	return round, nil
}

func (c *TelemetryClient) fetchOne(ctx context.Context, r Reading) ([]byte, error) {
	return c.reqs[r.Name].get(ctx, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/%s/feeds/%s",
			strings.TrimRight(c.cfg.BaseURL, "/"),
			url.PathEscape(c.cfg.Username),
			url.PathEscape(r.Feed))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(telemetryKeyHeader, c.cfg.APIKey)
		return req, nil
	})
}

// Decode parses every body in the round, in configured order. Readings that fail
// to decode are logged and skipped; the round fails only if none decode.
func (c *TelemetryClient) Decode(round TelemetryRound) ([]display.TelemetryReading, error) {
	readings := make([]display.TelemetryReading, 0, len(round))
	var lastErr error
	for _, r := range c.cfg.Readings {
		body, ok := round[r.Name]
		if !ok {
			continue
		}
		v, err := DecodeLastValue(body)
		if err != nil {
			log.Printf("telemetry: reading %s: %v", r.Name, err)
			lastErr = err
			continue
		}
		readings = append(readings, display.TelemetryReading{Name: r.Name, Value: v})
	}
	if len(readings) == 0 {
		if lastErr == nil {
			lastErr = &DecodeError{Feed: telemetryFeed, Err: errAllReadingsFailed}
		}
		return nil, lastErr
	}
	return readings, nil
}

// DecodeLastValue extracts the scalar "last_value" of a feed. The upstream sends
// it as a string; plain numbers are accepted too.
func DecodeLastValue(body []byte) (float64, error) {
	var p struct {
		LastValue interface{} `json:"last_value"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return 0, &DecodeError{Feed: telemetryFeed, Err: err}
	}

	switch v := p.LastValue.(type) {
	case nil:
		return 0, missing(telemetryFeed, "last_value")
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &DecodeError{Feed: telemetryFeed, Field: "last_value", Err: err}
		}
		return f, nil
	default:
		return 0, &DecodeError{Feed: telemetryFeed, Field: "last_value", Err: fmt.Errorf("unexpected type %T", v)}
	}
}
