package display

import (
	"sync"
	"time"
)

// Feed names as they appear in the status line.
const (
	FeedWeather   = "Weather"
	FeedNews      = "News"
	FeedTelemetry = "Telemetry"
)

// State is the shared display snapshot. Each field group (weather, telemetry,
// news, clock) has its own lock so writers of one group never wait on another,
// and readers always observe a complete value.
type State struct {
	sink   Sink
	status *Status
	units  map[string]string

	weatherMu sync.RWMutex
	weather   *WeatherSnapshot

	telemetryMu sync.RWMutex
	telemetry   *TelemetrySnapshot

	newsMu sync.Mutex
	news   NewsBatch

	clockMu sync.RWMutex
	clock   time.Time
}

// Option customizes a State.
type Option func(*stateOptions)

type stateOptions struct {
	loc   *time.Location
	now   func() time.Time
	units map[string]string
}

// WithLocation sets the zone used for the status line timestamps.
func WithLocation(loc *time.Location) Option {
	return func(o *stateOptions) { o.loc = loc }
}

// WithNow overrides the wall-clock source used for status timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *stateOptions) { o.now = now }
}

// WithTelemetryUnits sets the unit suffix rendered after each telemetry reading.
func WithTelemetryUnits(units map[string]string) Option {
	return func(o *stateOptions) { o.units = units }
}

// NewState creates an empty State publishing to sink.
func NewState(sink Sink, opts ...Option) *State {
	o := stateOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if sink == nil {
		sink = Discard
	}
	units := make(map[string]string, len(o.units))
	for k, v := range o.units {
		units[k] = v
	}
	return &State{
		sink:   sink,
		status: NewStatus(sink, o.loc, o.now),
		units:  units,
	}
}

// Sink returns the render sink the state publishes to.
func (s *State) Sink() Sink {
	return s.sink
}

// SetWeather replaces the weather snapshot and renders every weather field.
func (s *State) SetWeather(w WeatherSnapshot) {
	s.weatherMu.Lock()
	s.weather = &w
	s.weatherMu.Unlock()

	for field, text := range WeatherFields(w) {
		s.sink.Publish(field, text)
	}
}

// Weather returns the current weather snapshot; ok is false before the first poll.
func (s *State) Weather() (WeatherSnapshot, bool) {
	s.weatherMu.RLock()
	defer s.weatherMu.RUnlock()
	if s.weather == nil {
		return WeatherSnapshot{}, false
	}
	return *s.weather, true
}

// MergeTelemetry installs a new telemetry snapshot built from the previous one
// plus readings, then renders only the readings that arrived in this round.
func (s *State) MergeTelemetry(readings []TelemetryReading) TelemetrySnapshot {
	s.telemetryMu.Lock()
	next := MergeTelemetry(s.telemetry, readings)
	s.telemetry = &next
	s.telemetryMu.Unlock()

	for _, r := range readings {
		s.sink.Publish(TelemetryField(r.Name), FormatReading(r.Value, s.units[r.Name]))
	}
	return next
}

// Telemetry returns the current telemetry snapshot; ok is false before the first poll.
func (s *State) Telemetry() (TelemetrySnapshot, bool) {
	s.telemetryMu.RLock()
	defer s.telemetryMu.RUnlock()
	if s.telemetry == nil {
		return TelemetrySnapshot{}, false
	}
	return *s.telemetry, true
}

// InstallNews replaces the news batch. Index and cycle counter reset together
// with the new items.
func (s *State) InstallNews(items []NewsItem) {
	batch := NewNewsBatch(items)

	s.newsMu.Lock()
	s.news = batch
	s.newsMu.Unlock()
}

// AdvanceNews returns the item to show now and steps the batch forward.
func (s *State) AdvanceNews(refreshAfter int) (TickerFrame, error) {
	s.newsMu.Lock()
	defer s.newsMu.Unlock()
	return s.news.Advance(refreshAfter)
}

// News returns a copy of the current batch.
func (s *State) News() NewsBatch {
	s.newsMu.Lock()
	defer s.newsMu.Unlock()
	cp := s.news
	cp.Items = append([]NewsItem(nil), s.news.Items...)
	return cp
}

// SetClock stores the displayed time and renders it.
func (s *State) SetClock(t time.Time) {
	s.clockMu.Lock()
	s.clock = t
	s.clockMu.Unlock()

	s.sink.Publish(FieldClock, FormatClock(t))
}

// Clock returns the currently displayed time.
func (s *State) Clock() time.Time {
	s.clockMu.RLock()
	defer s.clockMu.RUnlock()
	return s.clock
}

// ReportSuccess stamps the status line with feed and the current time.
func (s *State) ReportSuccess(feed string) string {
	return s.status.Report(feed)
}

// StatusText returns the current status line.
func (s *State) StatusText() string {
	return s.status.Text()
}

// Snapshot is a point-in-time copy of the whole display.
type Snapshot struct {
	Clock     time.Time          `json:"clock"`
	Status    string             `json:"status"`
	Weather   *WeatherSnapshot   `json:"weather,omitempty"`
	Telemetry *TelemetrySnapshot `json:"telemetry,omitempty"`
	News      NewsBatch          `json:"news"`
}

// Snapshot copies every field group. Groups are read independently, so the
// result may mix values installed at slightly different moments.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Clock:  s.Clock(),
		Status: s.StatusText(),
		News:   s.News(),
	}
	if w, ok := s.Weather(); ok {
		snap.Weather = &w
	}
	if t, ok := s.Telemetry(); ok {
		readings := make(map[string]float64, len(t.Readings))
		for k, v := range t.Readings {
			readings[k] = v
		}
		snap.Telemetry = &TelemetrySnapshot{Readings: readings}
	}
	return snap
}
