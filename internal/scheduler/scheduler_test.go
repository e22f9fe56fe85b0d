package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/ambient-display/internal/display"
	"github.com/i474232898/ambient-display/internal/poller"
	"github.com/i474232898/ambient-display/internal/rotator"
)

type fakeJob struct {
	name     string
	interval time.Duration
	runs     atomic.Int32
	block    chan struct{}
}

func (f *fakeJob) Name() string            { return f.name }
func (f *fakeJob) Interval() time.Duration { return f.interval }

func (f *fakeJob) Run(ctx context.Context) error {
	f.runs.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClockAdvancesExactlyOneSecondPerTick(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 59, 30, 0, time.UTC)
	c := NewClock(display.NewState(nil), start)

	for i := 0; i < 45; i++ {
		c.Tick()
	}
	if want := start.Add(45 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}
}

func TestStartPollsImmediatelyAndTicksClock(t *testing.T) {
	state := display.NewState(nil)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewClock(state, start)

	weather := &fakeJob{name: "weather", interval: time.Hour}
	news := &fakeJob{name: "news"}
	s := New(clock, nil, weather, news)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	if !state.Clock().Equal(start) {
		t.Fatalf("expected initial clock publish at %v, got %v", start, state.Clock())
	}

	waitFor(t, "immediate weather poll", func() bool { return weather.runs.Load() == 1 })
	waitFor(t, "initial news poll", func() bool { return news.runs.Load() == 1 })
	waitFor(t, "clock tick", func() bool { return clock.Now().After(start) })
}

func TestSlowPollDoesNotBlockClock(t *testing.T) {
	state := display.NewState(nil)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewClock(state, start)

	hung := &fakeJob{name: "telemetry", interval: time.Hour, block: make(chan struct{})}
	s := New(clock, nil, hung)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, "hung poll to start", func() bool { return hung.runs.Load() == 1 })
	waitFor(t, "clock to tick twice", func() bool { return !clock.Now().Before(start.Add(2 * time.Second)) })

	s.Stop()
}

func TestTrigger(t *testing.T) {
	news := &fakeJob{name: "news"}
	s := New(nil, nil, news)
	defer s.Stop()

	if err := s.Trigger("news"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "triggered poll", func() bool { return news.runs.Load() == 1 })

	if err := s.Trigger("sports"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func identity(items []display.NewsItem) ([]display.NewsItem, error) { return items, nil }

func TestNewsRecoversAfterFailedFirstPoll(t *testing.T) {
	state := display.NewState(nil)

	var calls atomic.Int32
	news := poller.New("news", 0, func(ctx context.Context) ([]display.NewsItem, error) {
		if calls.Inc() == 1 {
			return nil, errors.New("news fetch: connection refused")
		}
		return []display.NewsItem{{Headline: "Storm warning lifted", Section: "UK news"}}, nil
	}, identity, func(items []display.NewsItem) {
		state.InstallNews(items)
		state.ReportSuccess(display.FeedNews)
	})

	rot := rotator.New(state, rotator.Config{IdleDelay: 10 * time.Millisecond, IdleRefreshEvery: 20 * time.Millisecond}, news.Run)
	s := New(nil, rot, news)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	waitFor(t, "news batch after failed first poll", func() bool { return len(state.News().Items) > 0 })
	if calls.Load() < 2 {
		t.Fatalf("expected a re-poll after the failure, got %d fetches", calls.Load())
	}
	if state.StatusText() == "" {
		t.Fatalf("expected status to report the recovered poll")
	}
}

func TestNewsPollsNeverOverlap(t *testing.T) {
	state := display.NewState(nil)

	var (
		mu      sync.Mutex
		active  int
		peak    int
		fetches int
	)
	// Empty results keep the rotator idle, so it keeps re-polling alongside the
	// scheduled and triggered runs.
	news := poller.New("news", 50*time.Millisecond, func(ctx context.Context) ([]display.NewsItem, error) {
		mu.Lock()
		active++
		fetches++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		select {
		case <-time.After(15 * time.Millisecond):
		case <-ctx.Done():
		}

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}, identity, state.InstallNews)

	rot := rotator.New(state, rotator.Config{IdleDelay: 2 * time.Millisecond, IdleRefreshEvery: time.Millisecond}, news.Run)
	s := New(nil, rot, news)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := s.Trigger("news"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Fatalf("expected at most one news fetch in flight, saw %d", peak)
	}
	if fetches < 2 {
		t.Fatalf("expected several news fetches, got %d", fetches)
	}
}
