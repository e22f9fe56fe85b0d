// Package rotator cycles the news headline on a content-paced timer.
package rotator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/i474232898/ambient-display/internal/common"
	"github.com/i474232898/ambient-display/internal/display"
	"github.com/i474232898/ambient-display/internal/poller"
)

// Phase is the rotator's state.
type Phase int

const (
	// Idle means there is nothing to show; the rotator re-checks after the idle delay.
	Idle Phase = iota
	// Displaying means a headline is on screen for its dwell time.
	Displaying
)

func (p Phase) String() string {
	if p == Displaying {
		return "displaying"
	}
	return "idle"
}

// Config controls rotation pacing.
type Config struct {
	// RefreshAfterCycles is the number of full passes after which news is re-polled.
	RefreshAfterCycles int
	// IdleDelay is how long to wait before re-checking an empty batch.
	IdleDelay time.Duration
	// IdleRefreshEvery is the fixed delay between news re-polls while there is
	// nothing to show.
	IdleRefreshEvery time.Duration
}

// DefaultConfig re-polls after four cycles, re-checks an empty batch every second
// and re-polls an empty feed every fifteen seconds.
var DefaultConfig = Config{RefreshAfterCycles: 4, IdleDelay: time.Second, IdleRefreshEvery: 15 * time.Second}

// Rotator shows one headline at a time from the display state's news batch.
type Rotator struct {
	state   *display.State
	sink    display.Sink
	cfg     Config
	refresh func(ctx context.Context) error

	mu              sync.Mutex
	phase           Phase
	dwell           time.Duration
	lastIdleRefresh time.Time
	now             func() time.Time

	refreshes sync.WaitGroup
}

// New creates a rotator. refresh is started in its own goroutine whenever the
// configured number of cycles completes, and every IdleRefreshEvery while the
// batch is empty; it must tolerate concurrent callers.
func New(state *display.State, cfg Config, refresh func(ctx context.Context) error) *Rotator {
	if cfg.RefreshAfterCycles <= 0 {
		cfg.RefreshAfterCycles = DefaultConfig.RefreshAfterCycles
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultConfig.IdleDelay
	}
	if cfg.IdleRefreshEvery <= 0 {
		cfg.IdleRefreshEvery = DefaultConfig.IdleRefreshEvery
	}
	return &Rotator{
		state:   state,
		sink:    state.Sink(),
		cfg:     cfg,
		refresh: refresh,
		now:     time.Now,
	}
}

// Phase returns the current state and, when displaying, the active dwell time.
func (r *Rotator) Phase() (Phase, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase, r.dwell
}

// Step shows the current headline, advances the batch and returns how long to
// wait before the next step.
func (r *Rotator) Step(ctx context.Context) time.Duration {
	frame, err := r.state.AdvanceNews(r.cfg.RefreshAfterCycles)
	if err != nil {
		if !errors.Is(err, display.ErrEmptyBatch) {
			log.Printf("rotator: advance failed: %v", err)
		}
		r.transition(Idle, 0)
		r.refreshWhileIdle(ctx)
		return r.cfg.IdleDelay
	}

	r.sink.Publish(display.FieldNewsHeadline, frame.Item.Headline)
	r.sink.Publish(display.FieldNewsMeta, display.NewsMeta(frame))

	dwell := Dwell(common.WordCount(frame.Item.Headline))
	r.transition(Displaying, dwell)

	if frame.Refresh {
		r.startRefresh(ctx)
	}
	return dwell
}

// refreshWhileIdle re-polls news at most once per IdleRefreshEvery. Without it a
// failed or empty poll would leave the ticker idle until restart.
func (r *Rotator) refreshWhileIdle(ctx context.Context) {
	r.mu.Lock()
	now := r.now()
	due := r.lastIdleRefresh.IsZero() || now.Sub(r.lastIdleRefresh) >= r.cfg.IdleRefreshEvery
	if due {
		r.lastIdleRefresh = now
	}
	r.mu.Unlock()

	if due {
		r.startRefresh(ctx)
	}
}

func (r *Rotator) startRefresh(ctx context.Context) {
	if r.refresh == nil {
		return
	}
	r.refreshes.Add(1)
	go func() {
		defer r.refreshes.Done()
		// A poll already in flight will install its own batch.
		if err := r.refresh(ctx); err != nil && !errors.Is(err, poller.ErrInFlight) {
			log.Printf("rotator: news refresh failed: %v", err)
		}
	}()
}

func (r *Rotator) transition(next Phase, dwell time.Duration) {
	r.mu.Lock()
	prev := r.phase
	r.phase = next
	r.dwell = dwell
	r.mu.Unlock()

	if prev != next {
		log.Printf("rotator: %s -> %s", prev, next)
	}
}

// Run steps until ctx is cancelled, sleeping for each computed delay.
func (r *Rotator) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.refreshes.Wait()
			return
		case <-timer.C:
			timer.Reset(r.Step(ctx))
		}
	}
}

// Wait blocks until every refresh started by the rotator has returned.
func (r *Rotator) Wait() {
	r.refreshes.Wait()
}
