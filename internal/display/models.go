package display

import (
	"errors"
	"time"
)

// ErrEmptyBatch is returned when rotation is attempted on a news batch with no items.
var ErrEmptyBatch = errors.New("news batch is empty")

// WeatherSnapshot is the normalized weather view produced by one successful poll.
// It is never partially updated; a new poll replaces it wholesale.
type WeatherSnapshot struct {
	TemperatureC  float64   `json:"temperatureC"`
	ApparentC     float64   `json:"apparentC"`
	IsDay         bool      `json:"isDay"`
	WeatherCode   int       `json:"weatherCode"`
	Description   string    `json:"description"`
	HighC         float64   `json:"highC"`
	LowC          float64   `json:"lowC"`
	Sunrise       time.Time `json:"sunrise"` // local time-of-day, date part ignored
	Sunset        time.Time `json:"sunset"`
	PrecipPercent float64   `json:"precipPercent"` // next hour
}

// TelemetryReading is one named scalar from the telemetry feed.
type TelemetryReading struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TelemetrySnapshot holds the latest value for each configured reading, keyed by name.
type TelemetrySnapshot struct {
	Readings map[string]float64 `json:"readings"`
}

// Value returns the reading for name and whether it has ever been received.
func (t TelemetrySnapshot) Value(name string) (float64, bool) {
	v, ok := t.Readings[name]
	return v, ok
}

// MergeTelemetry builds a new snapshot from prev with the given readings replacing
// their previous values. Readings absent from the round keep their prior value.
func MergeTelemetry(prev *TelemetrySnapshot, readings []TelemetryReading) TelemetrySnapshot {
	merged := make(map[string]float64, len(readings))
	if prev != nil {
		for k, v := range prev.Readings {
			merged[k] = v
		}
	}
	for _, r := range readings {
		merged[r.Name] = r.Value
	}
	return TelemetrySnapshot{Readings: merged}
}

// NewsItem is a single headline ready for display.
type NewsItem struct {
	Headline  string    `json:"headline"` // already wrapped to the display column width
	Section   string    `json:"section"`
	Published time.Time `json:"published"` // minute precision, display zone
	Position  int       `json:"position"`  // 0-based ordinal within its batch
}

// NewsBatch is the ordered set of headlines currently rotating on screen.
// Index always satisfies 0 <= Index < len(Items) when Items is non-empty.
type NewsBatch struct {
	Items  []NewsItem `json:"items"`
	Index  int        `json:"index"`
	Cycles int        `json:"cycles"`
}

// NewNewsBatch returns a batch positioned at its first item with no completed cycles.
func NewNewsBatch(items []NewsItem) NewsBatch {
	cp := make([]NewsItem, len(items))
	copy(cp, items)
	for i := range cp {
		cp[i].Position = i
	}
	return NewsBatch{Items: cp}
}

// Len returns the number of items in the batch.
func (b *NewsBatch) Len() int {
	return len(b.Items)
}

// TickerFrame is what the rotator shows for one dwell period.
type TickerFrame struct {
	Item    NewsItem
	Ordinal int // 1-based position
	Total   int
	// Refresh is set when this step completed the configured number of
	// full cycles; the caller should re-poll the news feed.
	Refresh bool
}

// Advance returns the current item and moves the index forward, wrapping to zero.
// Each wrap counts one completed cycle; when refreshAfter cycles have completed the
// counter resets and the returned frame requests a refresh.
func (b *NewsBatch) Advance(refreshAfter int) (TickerFrame, error) {
	n := len(b.Items)
	if n == 0 {
		return TickerFrame{}, ErrEmptyBatch
	}
	if b.Index < 0 || b.Index >= n {
		b.Index = 0
	}

	frame := TickerFrame{
		Item:    b.Items[b.Index],
		Ordinal: b.Index + 1,
		Total:   n,
	}

	b.Index = (b.Index + 1) % n
	if b.Index == 0 {
		b.Cycles++
		if refreshAfter > 0 && b.Cycles >= refreshAfter {
			b.Cycles = 0
			frame.Refresh = true
		}
	}
	return frame, nil
}
