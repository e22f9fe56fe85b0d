package display

import (
	"fmt"
	"sync"
	"time"
)

// Status is the single shared status line. Any successful feed refresh overwrites it.
type Status struct {
	mu      sync.RWMutex
	text    string
	feed    string
	updated time.Time

	sink Sink
	now  func() time.Time
	loc  *time.Location
}

// NewStatus creates an empty status line that publishes to sink.
func NewStatus(sink Sink, loc *time.Location, now func() time.Time) *Status {
	if sink == nil {
		sink = Discard
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Status{sink: sink, now: now, loc: loc}
}

// Report records a successful refresh of feed at the current local time and
// returns the new status text.
func (s *Status) Report(feed string) string {
	at := s.now().In(s.loc)
	text := fmt.Sprintf("%s updated %s.", feed, at.Format(clockLayout))

	s.mu.Lock()
	s.text = text
	s.feed = feed
	s.updated = at
	s.mu.Unlock()

	s.sink.Publish(FieldStatus, text)
	return text
}

// Text returns the current status line, empty until the first report.
func (s *Status) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Last returns the feed and time of the most recent report.
func (s *Status) Last() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed, s.updated
}
