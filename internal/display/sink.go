package display

// Field names a single text slot on the display surface.
type Field string

const (
	FieldClock  Field = "clock"
	FieldStatus Field = "status"

	FieldWeatherTemp        Field = "weather.temp"
	FieldWeatherFeelsLike   Field = "weather.feels_like"
	FieldWeatherDescription Field = "weather.description"
	FieldWeatherHiLo        Field = "weather.hi_lo"
	FieldWeatherSun         Field = "weather.sun"
	FieldWeatherPrecip      Field = "weather.precipitation"

	FieldNewsHeadline Field = "news.headline"
	FieldNewsMeta     Field = "news.meta"
)

// TelemetryField returns the field that shows the named telemetry reading.
func TelemetryField(name string) Field {
	return Field("telemetry." + name)
}

// Sink is the render surface. Publish must not block the caller for long;
// implementations must be safe for concurrent calls from independent tasks.
type Sink interface {
	Publish(field Field, text string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(field Field, text string)

// Publish calls f(field, text).
func (f SinkFunc) Publish(field Field, text string) {
	f(field, text)
}

// Discard is a Sink that drops every update.
var Discard Sink = SinkFunc(func(Field, string) {})
