// Package poller runs one upstream feed: fetch, decode, install.
package poller

import (
	"context"
	"errors"
	"log"
	"time"

	"go.uber.org/atomic"
)

// ErrInFlight is returned by Run when a previous run of the same poller has not finished.
var ErrInFlight = errors.New("poll already in flight")

// Recorder receives the outcome of every attempt.
type Recorder interface {
	Record(feed string, at time.Time, took time.Duration, err error)
}

// Poller fetches raw data of type R, decodes it into a snapshot of type T and
// hands successful snapshots to onSuccess. At most one run is in flight at a time.
type Poller[R, T any] struct {
	name      string
	interval  time.Duration
	fetch     func(ctx context.Context) (R, error)
	decode    func(R) (T, error)
	onSuccess func(T)

	recorder Recorder
	now      func() time.Time
	inFlight *atomic.Bool
}

// Option customizes a Poller.
type Option func(*options)

type options struct {
	recorder Recorder
	now      func() time.Time
}

// WithRecorder reports every attempt to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithNow overrides the clock used to timestamp attempts.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a poller for the named feed. An interval of zero means the feed is
// only polled on demand.
func New[R, T any](
	name string,
	interval time.Duration,
	fetch func(ctx context.Context) (R, error),
	decode func(R) (T, error),
	onSuccess func(T),
	opts ...Option,
) *Poller[R, T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Poller[R, T]{
		name:      name,
		interval:  interval,
		fetch:     fetch,
		decode:    decode,
		onSuccess: onSuccess,
		recorder:  o.recorder,
		now:       o.now,
		inFlight:  atomic.NewBool(false),
	}
}

// Name returns the feed name.
func (p *Poller[R, T]) Name() string { return p.name }

// Interval returns the scheduled polling interval.
func (p *Poller[R, T]) Interval() time.Duration { return p.interval }

// InFlight reports whether a run is currently executing.
func (p *Poller[R, T]) InFlight() bool { return p.inFlight.Load() }

// Run performs one attempt. Fetch and decode failures are logged and returned;
// nothing is installed and onSuccess is not called. A concurrent call while a run
// is in flight returns ErrInFlight without fetching.
func (p *Poller[R, T]) Run(ctx context.Context) error {
	if !p.inFlight.CAS(false, true) {
		log.Printf("poller: %s poll skipped, previous poll still running", p.name)
		return ErrInFlight
	}
	defer p.inFlight.Store(false)

	started := p.now()
	err := p.attempt(ctx)
	if p.recorder != nil {
		p.recorder.Record(p.name, started, p.now().Sub(started), err)
	}
	return err
}

func (p *Poller[R, T]) attempt(ctx context.Context) error {
	raw, err := p.fetch(ctx)
	if err != nil {
		log.Printf("poller: %s fetch failed: %v", p.name, err)
		return err
	}

	snap, err := p.decode(raw)
	if err != nil {
		log.Printf("poller: %s decode failed: %v", p.name, err)
		return err
	}

	p.onSuccess(snap)
	return nil
}
