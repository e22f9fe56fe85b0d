package ui

import (
	"testing"
	"time"

	"go.uber.org/atomic"
)

func TestFrameSchedulerCoalescesLatestPerKey(t *testing.T) {
	f := newFrameScheduler(nil, 60, 50*time.Millisecond)

	var seq []string
	f.Schedule("news.headline", func() { seq = append(seq, "h1") })
	f.Schedule("news.headline", func() { seq = append(seq, "h2") })
	f.Schedule("clock", func() { seq = append(seq, "c1") })

	f.flush()

	if len(seq) != 2 {
		t.Fatalf("expected 2 callbacks, got %d (%v)", len(seq), seq)
	}
	if seq[0] != "h2" || seq[1] != "c1" {
		t.Fatalf("unexpected callback order/content: %v", seq)
	}

	f.flush()
	if len(seq) != 2 {
		t.Fatalf("expected no additional callbacks after empty flush, got %v", seq)
	}
}

func TestFrameSchedulerFlushesPendingOnStop(t *testing.T) {
	f := newFrameScheduler(nil, 1, 500*time.Millisecond)
	var called atomic.Uint64

	f.Start()
	f.Schedule("status", func() { called.Add(1) })
	f.Stop()

	if called.Load() != 1 {
		t.Fatalf("expected pending callback to flush on stop, got %d", called.Load())
	}
}

func TestFrameSchedulerStopIdempotent(t *testing.T) {
	f := newFrameScheduler(nil, 60, 50*time.Millisecond)
	f.Start()
	f.Stop()
	f.Stop()
}
