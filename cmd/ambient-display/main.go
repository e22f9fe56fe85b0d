package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"

	httpapi "github.com/i474232898/ambient-display/internal/api/http"
	"github.com/i474232898/ambient-display/internal/config"
	"github.com/i474232898/ambient-display/internal/display"
	"github.com/i474232898/ambient-display/internal/feeds"
	"github.com/i474232898/ambient-display/internal/poller"
	"github.com/i474232898/ambient-display/internal/rotator"
	"github.com/i474232898/ambient-display/internal/scheduler"
	"github.com/i474232898/ambient-display/internal/store"
	"github.com/i474232898/ambient-display/internal/ui"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	loc := cfg.Location()

	// The dashboard owns the terminal, so logs go to a file while it runs.
	var logOutput io.Writer = os.Stderr
	if !cfg.Headless && cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logOutput = f
	}
	log.SetOutput(logOutput)

	// Render sink.
	var (
		sink      display.Sink
		dashboard *ui.Dashboard
	)
	units := make(map[string]string, len(cfg.TelemetryReadings))
	panes := make([]ui.TelemetryPane, 0, len(cfg.TelemetryReadings))
	for _, r := range cfg.TelemetryReadings {
		units[r.Name] = r.Unit
		panes = append(panes, ui.TelemetryPane{Name: r.Name, Title: r.Name})
	}
	if cfg.Headless {
		sink = ui.NewLogSink()
	} else {
		dashboard = ui.NewDashboard(panes)
		sink = dashboard
	}

	state := display.NewState(sink, display.WithLocation(loc), display.WithTelemetryUnits(units))

	// In-memory poll schedules with configured retention.
	schedules := store.NewMemoryStore(cfg.HistorySize)

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	weatherClient := feeds.NewWeatherClient(httpClient, feeds.WeatherConfig{
		BaseURL:        cfg.WeatherURL,
		Latitude:       cfg.Latitude,
		Longitude:      cfg.Longitude,
		Timezone:       cfg.Timezone,
		BreakerTimeout: cfg.BreakerTimeout,
	})
	newsClient := feeds.NewNewsClient(httpClient, feeds.NewsConfig{
		BaseURL:        cfg.NewsURL,
		APIKey:         cfg.NewsAPIKey,
		PageSize:       cfg.NewsPageSize,
		Sections:       cfg.NewsSections,
		HeadlineWidth:  cfg.HeadlineWidth,
		BreakerTimeout: cfg.BreakerTimeout,
	})
	telemetryClient := feeds.NewTelemetryClient(httpClient, feeds.TelemetryConfig{
		BaseURL:        cfg.TelemetryURL,
		Username:       cfg.TelemetryUser,
		APIKey:         cfg.TelemetryAPIKey,
		Readings:       cfg.TelemetryReadings,
		BreakerTimeout: cfg.BreakerTimeout,
	})

	weatherPoller := poller.New("weather", cfg.WeatherInterval, weatherClient.Fetch, feeds.DecodeWeather,
		func(w display.WeatherSnapshot) {
			state.SetWeather(w)
			state.ReportSuccess(display.FeedWeather)
		}, poller.WithRecorder(schedules))
	newsPoller := poller.New("news", cfg.NewsInterval, newsClient.Fetch, newsClient.Decode,
		func(items []display.NewsItem) {
			state.InstallNews(items)
			state.ReportSuccess(display.FeedNews)
		}, poller.WithRecorder(schedules))
	telemetryPoller := poller.New("telemetry", cfg.TelemetryInterval, telemetryClient.Fetch, telemetryClient.Decode,
		func(readings []display.TelemetryReading) {
			state.MergeTelemetry(readings)
			state.ReportSuccess(display.FeedTelemetry)
		}, poller.WithRecorder(schedules))

	schedules.Register(weatherPoller.Name(), weatherPoller.Interval())
	schedules.Register(newsPoller.Name(), newsPoller.Interval())
	schedules.Register(telemetryPoller.Name(), telemetryPoller.Interval())

	// News is re-polled by the ticker after its cycles complete, and while it
	// has nothing to show.
	ticker := rotator.New(state, rotator.Config{
		RefreshAfterCycles: cfg.TickerRefreshCycles,
		IdleDelay:          cfg.TickerIdleDelay,
		IdleRefreshEvery:   cfg.TickerIdleRefresh,
	}, newsPoller.Run)

	clock := scheduler.NewClock(state, time.Now().In(loc))

	sched := scheduler.New(clock, ticker, weatherPoller, newsPoller, telemetryPoller)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var app *fiber.App
	if cfg.APIEnabled {
		app = newApp(logOutput)
		httpapi.RegisterRoutes(app, httpapi.Deps{
			State:     state,
			Schedules: schedules,
			Trigger:   sched,
		})

		go func() {
			if err := app.Listen(":" + cfg.Port); err != nil {
				log.Printf("fiber server stopped: %v", err)
			}
		}()
	}

	// Wait for termination signal, or for the operator to quit the dashboard.
	if dashboard != nil {
		if err := dashboard.Run(ctx); err != nil {
			log.Printf("ERROR: dashboard stopped: %v", err)
		}
	} else {
		<-ctx.Done()
	}

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("error during shutdown: %v", err)
		}
	}
}

func newApp(logOutput io.Writer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ambient-display",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New(logger.Config{Output: logOutput}))
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "ambient-display",
		})
	})
	return app
}
