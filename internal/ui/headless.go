package ui

import (
	"log"
	"strings"
	"sync"

	"github.com/i474232898/ambient-display/internal/display"
)

// LogSink renders to the process log. It is used when no terminal is attached.
// Only changed values are logged and the clock is skipped.
type LogSink struct {
	mu   sync.Mutex
	last map[display.Field]string
}

func NewLogSink() *LogSink {
	return &LogSink{last: make(map[display.Field]string)}
}

func (s *LogSink) Publish(field display.Field, text string) {
	s.mu.Lock()
	prev, seen := s.last[field]
	s.last[field] = text
	s.mu.Unlock()

	if field == display.FieldClock || (seen && prev == text) {
		return
	}
	log.Printf("display: %s = %s", field, strings.ReplaceAll(text, "\n", " "))
}

// Last returns the most recent text published for field.
func (s *LogSink) Last(field display.Field) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[field]
}
