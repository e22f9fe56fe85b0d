package display

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	clockLayout = "15:04:05"
	hourMinute  = "15:04"
)

// WeatherFields renders a snapshot into the text of every weather field.
func WeatherFields(w WeatherSnapshot) map[Field]string {
	return map[Field]string{
		FieldWeatherTemp:        fmt.Sprintf("%.1f °C", w.TemperatureC),
		FieldWeatherFeelsLike:   fmt.Sprintf("%.1f °C", w.ApparentC),
		FieldWeatherDescription: w.Description,
		FieldWeatherHiLo:        fmt.Sprintf("%d°/%d°", roundInt(w.HighC), roundInt(w.LowC)),
		FieldWeatherSun:         w.Sunrise.Format(hourMinute) + "/" + w.Sunset.Format(hourMinute),
		FieldWeatherPrecip:      fmt.Sprintf("%d%%", roundInt(w.PrecipPercent)),
	}
}

// FormatReading renders a telemetry value with one decimal and its unit.
func FormatReading(v float64, unit string) string {
	return strings.TrimSpace(fmt.Sprintf("%.1f %s", v, unit))
}

// NewsMeta renders the line shown under the headline: time, section and position.
func NewsMeta(f TickerFrame) string {
	return fmt.Sprintf("%s  %s  %d/%d", f.Item.Published.Format(hourMinute), f.Item.Section, f.Ordinal, f.Total)
}

// FormatClock renders a wall-clock time-of-day.
func FormatClock(t time.Time) string {
	return t.Format(clockLayout)
}

// roundInt rounds half to even, so 2.5 shows as 2 and 3.5 as 4.
func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}
