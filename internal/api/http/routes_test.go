package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ambient-display/internal/display"
	"github.com/i474232898/ambient-display/internal/scheduler"
	"github.com/i474232898/ambient-display/internal/store"
)

type fakeTrigger struct {
	known     map[string]bool
	triggered []string
}

func (f *fakeTrigger) Trigger(name string) error {
	if !f.known[name] {
		return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
	f.triggered = append(f.triggered, name)
	return nil
}

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*fiber.App, *display.State, *store.MemoryStore, *fakeTrigger) {
	t.Helper()

	state := display.NewState(nil, display.WithLocation(time.UTC), display.WithNow(func() time.Time { return testNow }))
	schedules := store.NewMemoryStore(10)
	schedules.Register("weather", 10*time.Minute)
	schedules.Register("news", 0)
	trigger := &fakeTrigger{known: map[string]bool{"weather": true, "news": true}}

	app := fiber.New()
	RegisterRoutes(app, Deps{
		State:     state,
		Schedules: schedules,
		Trigger:   trigger,
		Now:       func() time.Time { return testNow },
	})
	return app, state, schedules, trigger
}

func doRequest(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func TestDisplaySnapshot(t *testing.T) {
	app, state, _, _ := newTestApp(t)
	state.InstallNews([]display.NewsItem{{Headline: "Markets rally", Section: "Business"}})
	state.ReportSuccess(display.FeedNews)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/display")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var snap display.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.Status != "News updated 10:00:00." {
		t.Fatalf("unexpected status %q", snap.Status)
	}
	if len(snap.News.Items) != 1 || snap.News.Items[0].Headline != "Markets rally" {
		t.Fatalf("unexpected news %+v", snap.News)
	}
	if snap.Weather != nil {
		t.Fatalf("expected no weather yet, got %+v", snap.Weather)
	}
}

func TestFeedsListing(t *testing.T) {
	app, _, schedules, _ := newTestApp(t)
	schedules.Record("weather", testNow.Add(-3*time.Minute), time.Second, nil)

	resp := doRequest(t, app, http.MethodGet, "/api/v1/feeds")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var feeds []struct {
		Feed           string `json:"feed"`
		LastSuccessAgo string `json:"lastSuccessAgo"`
		Every          string `json:"every"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feeds); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(feeds))
	}
	if feeds[0].Feed != "news" || feeds[0].LastSuccessAgo != "never" || feeds[0].Every != "on demand" {
		t.Fatalf("unexpected news feed %+v", feeds[0])
	}
	if feeds[1].Feed != "weather" || feeds[1].LastSuccessAgo != "3 minutes ago" || feeds[1].Every != "10m0s" {
		t.Fatalf("unexpected weather feed %+v", feeds[1])
	}
}

func TestFeedNotFound(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	for _, target := range []string{"/api/v1/feeds/telemetry", "/api/v1/feeds/telemetry/history"} {
		resp := doRequest(t, app, http.MethodGet, target)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusNotFound, resp.StatusCode)
		}
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	app, _, schedules, _ := newTestApp(t)
	for i := 0; i < 4; i++ {
		schedules.Record("weather", testNow.Add(time.Duration(i)*time.Minute), 0, errors.New("status 503"))
	}

	for _, limit := range []string{"abc", "-1", "501"} {
		resp := doRequest(t, app, http.MethodGet, "/api/v1/feeds/weather/history?limit="+limit)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected status %d, got %d", limit, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp := doRequest(t, app, http.MethodGet, "/api/v1/feeds/weather/history?limit=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var body struct {
		Feed     string          `json:"feed"`
		Attempts []store.Attempt `json:"attempts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Attempts) != 2 || body.Attempts[1].Error != "status 503" {
		t.Fatalf("unexpected attempts %+v", body.Attempts)
	}
}

func TestRefreshTriggersPoll(t *testing.T) {
	app, _, _, trigger := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/feeds/news/refresh")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	if len(trigger.triggered) != 1 || trigger.triggered[0] != "news" {
		t.Fatalf("unexpected triggers %v", trigger.triggered)
	}

	resp = doRequest(t, app, http.MethodPost, "/api/v1/feeds/radar/refresh")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
