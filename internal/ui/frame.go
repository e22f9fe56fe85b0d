package ui

import (
	"sync"
	"time"

	"github.com/rivo/tview"
)

// frameScheduler coalesces field updates and caps the draw rate. Only the latest
// update per key survives until the next frame.
type frameScheduler struct {
	app       *tview.Application
	pending   map[string]func()
	order     []string
	mu        sync.Mutex
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	frameTime time.Duration
	drain     time.Duration
}

func newFrameScheduler(app *tview.Application, targetFPS int, drain time.Duration) *frameScheduler {
	if targetFPS <= 0 {
		targetFPS = 20
	}
	if drain <= 0 {
		drain = 100 * time.Millisecond
	}
	return &frameScheduler{
		app:       app,
		pending:   make(map[string]func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		frameTime: time.Second / time.Duration(targetFPS),
		drain:     drain,
	}
}

func (f *frameScheduler) Start() {
	go f.run()
}

// Stop flushes what is pending and stops the loop. Safe to call more than once.
func (f *frameScheduler) Stop() {
	f.stopOnce.Do(func() {
		close(f.quit)
		select {
		case <-f.done:
		case <-time.After(f.drain):
		}
	})
}

// Schedule queues fn under key, replacing any update queued under the same key.
func (f *frameScheduler) Schedule(key string, fn func()) {
	if f == nil {
		return
	}
	f.mu.Lock()
	if _, ok := f.pending[key]; !ok {
		f.order = append(f.order, key)
	}
	f.pending[key] = fn
	f.mu.Unlock()
}

func (f *frameScheduler) run() {
	defer close(f.done)

	ticker := time.NewTicker(f.frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flush()
		case <-f.quit:
			f.flush()
			return
		}
	}
}

func (f *frameScheduler) flush() {
	f.mu.Lock()
	if len(f.order) == 0 {
		f.mu.Unlock()
		return
	}
	batch := make([]func(), 0, len(f.order))
	for _, key := range f.order {
		batch = append(batch, f.pending[key])
		delete(f.pending, key)
	}
	f.order = f.order[:0]
	f.mu.Unlock()

	apply := func() {
		for _, fn := range batch {
			fn()
		}
	}
	if f.app == nil {
		apply()
		return
	}
	f.app.QueueUpdateDraw(apply)
}
