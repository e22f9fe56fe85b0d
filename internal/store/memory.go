package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a feed has never been registered.
	ErrNotFound = errors.New("no poll schedule for feed")
)

// Attempt is one recorded poll of a feed.
type Attempt struct {
	At    time.Time     `json:"at"`
	Took  time.Duration `json:"took"`
	OK    bool          `json:"ok"`
	Error string        `json:"error,omitempty"`
}

// Schedule summarizes a feed's polling state. Nothing here survives a restart.
type Schedule struct {
	Feed                string        `json:"feed"`
	Interval            time.Duration `json:"interval"`
	LastAttempt         time.Time     `json:"lastAttempt"`
	LastSuccess         time.Time     `json:"lastSuccess"`
	LastError           string        `json:"lastError,omitempty"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	Attempts            int           `json:"attempts"`
	Successes           int           `json:"successes"`
}

type feedHistory struct {
	schedule Schedule
	attempts []Attempt
}

// MemoryStore is a concurrency-safe in-memory registry of poll schedules with a
// bounded attempt history per feed.
type MemoryStore struct {
	mu sync.RWMutex

	// key: feed name
	data map[string]*feedHistory

	maxHistory int // max attempts kept per feed
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*feedHistory),
		maxHistory: maxHistory,
	}
}

// Register declares a feed and its polling interval. Re-registering keeps history.
func (s *MemoryStore) Register(feed string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.historyLocked(feed)
	h.schedule.Interval = interval
}

func (s *MemoryStore) historyLocked(feed string) *feedHistory {
	h, ok := s.data[feed]
	if !ok {
		h = &feedHistory{schedule: Schedule{Feed: feed}}
		s.data[feed] = h
	}
	return h
}

// Record appends an attempt and updates the feed's schedule.
func (s *MemoryStore) Record(feed string, at time.Time, took time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.historyLocked(feed)
	a := Attempt{At: at, Took: took, OK: err == nil}

	h.schedule.Attempts++
	h.schedule.LastAttempt = at
	if err != nil {
		a.Error = err.Error()
		h.schedule.LastError = a.Error
		h.schedule.ConsecutiveFailures++
	} else {
		h.schedule.LastSuccess = at
		h.schedule.Successes++
		h.schedule.ConsecutiveFailures = 0
	}

	h.attempts = append(h.attempts, a)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(h.attempts) > s.maxHistory {
		over := len(h.attempts) - s.maxHistory
		h.attempts = h.attempts[over:]
	}
}

// Schedule returns the current schedule of a feed.
func (s *MemoryStore) Schedule(feed string) (Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[feed]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return h.schedule, nil
}

// Schedules returns every known feed, sorted by name.
func (s *MemoryStore) Schedules() []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Schedule, 0, len(s.data))
	for _, h := range s.data {
		out = append(out, h.schedule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feed < out[j].Feed })
	return out
}

// History returns up to limit of the most recent attempts, oldest first.
// A limit <= 0 returns everything retained.
func (s *MemoryStore) History(feed string, limit int) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[feed]
	if !ok {
		return nil, ErrNotFound
	}

	attempts := h.attempts
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[len(attempts)-limit:]
	}
	return append([]Attempt(nil), attempts...), nil
}
