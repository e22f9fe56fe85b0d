package rotator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/ambient-display/internal/display"
)

type countingSink struct {
	mu     sync.Mutex
	last   map[display.Field]string
	counts map[display.Field]int
}

func newCountingSink() *countingSink {
	return &countingSink{last: make(map[display.Field]string), counts: make(map[display.Field]int)}
}

func (c *countingSink) Publish(field display.Field, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[field] = text
	c.counts[field]++
}

func (c *countingSink) get(field display.Field) (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[field], c.counts[field]
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestDwellScenario(t *testing.T) {
	cases := map[int]time.Duration{
		0:  4000 * time.Millisecond,
		5:  4000 * time.Millisecond,
		15: 6000 * time.Millisecond,
		40: 13500 * time.Millisecond,
	}
	for n, want := range cases {
		if got := Dwell(n); got != want {
			t.Fatalf("Dwell(%d): expected %v, got %v", n, want, got)
		}
	}
}

func TestDwellFloorAndMonotonic(t *testing.T) {
	prev := Dwell(0)
	for n := 0; n <= 200; n++ {
		d := Dwell(n)
		if d < MinDwell {
			t.Fatalf("Dwell(%d) = %v below floor", n, d)
		}
		if d < prev {
			t.Fatalf("Dwell(%d) = %v decreased from %v", n, d, prev)
		}
		prev = d
	}
}

func TestStepPublishesAndPacesByContent(t *testing.T) {
	sink := newCountingSink()
	state := display.NewState(sink)
	state.InstallNews([]display.NewsItem{
		{Headline: words(5), Section: "World news", Published: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{Headline: words(15), Section: "Technology", Published: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)},
		{Headline: words(40), Section: "Science", Published: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	})

	r := New(state, DefaultConfig, nil)
	want := []time.Duration{4000 * time.Millisecond, 6000 * time.Millisecond, 13500 * time.Millisecond}
	for i, w := range want {
		if got := r.Step(context.Background()); got != w {
			t.Fatalf("step %d: expected dwell %v, got %v", i, w, got)
		}
	}

	if meta, _ := sink.get(display.FieldNewsMeta); meta != "09:00  Science  3/3" {
		t.Fatalf("unexpected meta %q", meta)
	}
	if headline, n := sink.get(display.FieldNewsHeadline); headline != words(40) || n != 3 {
		t.Fatalf("unexpected headline %q after %d publishes", headline, n)
	}
	if phase, dwell := r.Phase(); phase != Displaying || dwell != 13500*time.Millisecond {
		t.Fatalf("unexpected phase %v %v", phase, dwell)
	}
}

func TestRefreshTriggeredOncePerFourCycles(t *testing.T) {
	state := display.NewState(nil)
	items := make([]display.NewsItem, 3)
	for i := range items {
		items[i] = display.NewsItem{Headline: words(3)}
	}
	state.InstallNews(items)

	var refreshes atomic.Int32
	r := New(state, DefaultConfig, func(context.Context) error {
		refreshes.Add(1)
		return nil
	})

	for i := 0; i < 4*len(items)-1; i++ {
		r.Step(context.Background())
	}
	r.Wait()
	if got := refreshes.Load(); got != 0 {
		t.Fatalf("expected no refresh before fourth cycle, got %d", got)
	}

	r.Step(context.Background())
	r.Wait()
	if got := refreshes.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh after four cycles, got %d", got)
	}

	for i := 0; i < 4*len(items)-1; i++ {
		r.Step(context.Background())
	}
	r.Wait()
	if got := refreshes.Load(); got != 1 {
		t.Fatalf("expected no extra refresh mid-way, got %d", got)
	}
}

func TestEmptyBatchIdles(t *testing.T) {
	sink := newCountingSink()
	state := display.NewState(sink)
	r := New(state, Config{IdleDelay: 250 * time.Millisecond}, nil)

	if got := r.Step(context.Background()); got != 250*time.Millisecond {
		t.Fatalf("expected idle delay, got %v", got)
	}
	if _, n := sink.get(display.FieldNewsHeadline); n != 0 {
		t.Fatalf("expected no headline published, got %d", n)
	}
	if phase, _ := r.Phase(); phase != Idle {
		t.Fatalf("expected idle phase, got %v", phase)
	}

	state.InstallNews(nil)
	if got := r.Step(context.Background()); got != 250*time.Millisecond {
		t.Fatalf("expected idle delay after empty poll, got %v", got)
	}
}

func TestIdleRefreshRecoversAfterFailedPoll(t *testing.T) {
	sink := newCountingSink()
	state := display.NewState(sink)

	var calls atomic.Int32
	r := New(state, Config{IdleDelay: 10 * time.Millisecond, IdleRefreshEvery: time.Minute}, func(context.Context) error {
		if calls.Inc() == 1 {
			return errors.New("news fetch: status 503")
		}
		state.InstallNews([]display.NewsItem{{Headline: "Rates held steady", Section: "Business"}})
		return nil
	})
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if got := r.Step(context.Background()); got != 10*time.Millisecond {
		t.Fatalf("expected idle delay, got %v", got)
	}
	r.Wait()
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected first idle step to re-poll, got %d polls", got)
	}

	now = now.Add(time.Minute)
	r.Step(context.Background())
	r.Wait()
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected a second re-poll after the idle refresh delay, got %d polls", got)
	}

	r.Step(context.Background())
	if headline, _ := sink.get(display.FieldNewsHeadline); headline != "Rates held steady" {
		t.Fatalf("expected recovered headline, got %q", headline)
	}
	if phase, _ := r.Phase(); phase != Displaying {
		t.Fatalf("expected displaying phase, got %v", phase)
	}
}

func TestIdleRefreshIsThrottled(t *testing.T) {
	state := display.NewState(nil)

	var calls atomic.Int32
	r := New(state, Config{IdleDelay: 10 * time.Millisecond, IdleRefreshEvery: 15 * time.Second}, func(context.Context) error {
		calls.Inc()
		return nil
	})
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		r.Step(context.Background())
		now = now.Add(time.Second)
	}
	r.Wait()
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one re-poll within the idle refresh delay, got %d", got)
	}

	now = now.Add(5 * time.Second)
	r.Step(context.Background())
	r.Wait()
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected a re-poll once the delay elapsed, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sink := newCountingSink()
	state := display.NewState(sink)
	r := New(state, Config{IdleDelay: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	state.InstallNews([]display.NewsItem{{Headline: "Markets rally"}})

	deadline := time.After(2 * time.Second)
	for {
		if h, _ := sink.get(display.FieldNewsHeadline); h == "Markets rally" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("headline never published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("rotator did not stop")
	}
}
