package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/ambient-display/internal/display"
)

const weatherFeed = "weather"

// DefaultWeatherURL is the Open-Meteo forecast endpoint.
const DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

// weatherCodes maps WMO weather interpretation codes to display text.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Drizzle: Light",
	53: "Drizzle: Moderate",
	55: "Drizzle: Dense",
	61: "Rain: Slight",
	63: "Rain: Moderate",
	65: "Rain: Heavy",
	71: "Snow: Slight",
	73: "Snow: Moderate",
	75: "Snow: Heavy",
	80: "Rain showers: Slight",
	81: "Rain showers: Moderate",
	82: "Rain showers: Violent",
	95: "Thunderstorm: Slight",
	96: "Thunderstorm: Moderate",
	99: "Thunderstorm: Heavy hail",
}

// DescribeWeatherCode returns the text for a WMO code, or "Unknown".
func DescribeWeatherCode(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return "Unknown"
}

// WeatherConfig locates the forecast the display shows.
type WeatherConfig struct {
	BaseURL        string
	Latitude       float64
	Longitude      float64
	Timezone       string
	BreakerTimeout time.Duration
}

// WeatherClient fetches the current conditions and today's forecast from Open-Meteo.
type WeatherClient struct {
	cfg WeatherConfig
	req *requester
}

func NewWeatherClient(client *http.Client, cfg WeatherConfig) *WeatherClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWeatherURL
	}
	return &WeatherClient{
		cfg: cfg,
		req: newRequester(weatherFeed, client, cfg.BreakerTimeout),
	}
}

// Fetch returns the raw forecast JSON.
func (c *WeatherClient) Fetch(ctx context.Context) ([]byte, error) {
	return c.req.get(ctx, func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', -1, 64))
		values.Set("current", "temperature_2m,apparent_temperature,is_day,weather_code")
		values.Set("hourly", "precipitation_probability")
		values.Set("daily", "temperature_2m_max,temperature_2m_min,sunrise,sunset")
		values.Set("timezone", c.cfg.Timezone)
		values.Set("forecast_days", "1")
		values.Set("forecast_hours", "1")

		u := fmt.Sprintf("%s?%s", c.cfg.BaseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
}

type openMeteoPayload struct {
	Current *struct {
		Temperature *float64 `json:"temperature_2m"`
		Apparent    *float64 `json:"apparent_temperature"`
		IsDay       *int     `json:"is_day"`
		WeatherCode *int     `json:"weather_code"`
	} `json:"current"`
	Hourly *struct {
		PrecipitationProbability []float64 `json:"precipitation_probability"`
	} `json:"hourly"`
	Daily *struct {
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		Sunrise        []string  `json:"sunrise"`
		Sunset         []string  `json:"sunset"`
	} `json:"daily"`
}

// DecodeWeather turns an Open-Meteo response into a snapshot. The first element
// of each daily and hourly array is used. Any missing field is a *DecodeError.
func DecodeWeather(body []byte) (display.WeatherSnapshot, error) {
	var p openMeteoPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return display.WeatherSnapshot{}, &DecodeError{Feed: weatherFeed, Err: err}
	}

	switch {
	case p.Current == nil:
		return display.WeatherSnapshot{}, missing(weatherFeed, "current")
	case p.Current.Temperature == nil:
		return display.WeatherSnapshot{}, missing(weatherFeed, "current.temperature_2m")
	case p.Current.Apparent == nil:
		return display.WeatherSnapshot{}, missing(weatherFeed, "current.apparent_temperature")
	case p.Current.WeatherCode == nil:
		return display.WeatherSnapshot{}, missing(weatherFeed, "current.weather_code")
	case p.Daily == nil:
		return display.WeatherSnapshot{}, missing(weatherFeed, "daily")
	case p.Hourly == nil:
		return display.WeatherSnapshot{}, missing(weatherFeed, "hourly")
	}

	high, err := firstFloat("daily.temperature_2m_max", p.Daily.TemperatureMax)
	if err != nil {
		return display.WeatherSnapshot{}, err
	}
	low, err := firstFloat("daily.temperature_2m_min", p.Daily.TemperatureMin)
	if err != nil {
		return display.WeatherSnapshot{}, err
	}
	precip, err := firstFloat("hourly.precipitation_probability", p.Hourly.PrecipitationProbability)
	if err != nil {
		return display.WeatherSnapshot{}, err
	}
	sunrise, err := firstTime("daily.sunrise", p.Daily.Sunrise)
	if err != nil {
		return display.WeatherSnapshot{}, err
	}
	sunset, err := firstTime("daily.sunset", p.Daily.Sunset)
	if err != nil {
		return display.WeatherSnapshot{}, err
	}

	isDay := true
	if p.Current.IsDay != nil {
		isDay = *p.Current.IsDay != 0
	}

	return display.WeatherSnapshot{
		TemperatureC:  *p.Current.Temperature,
		ApparentC:     *p.Current.Apparent,
		IsDay:         isDay,
		WeatherCode:   *p.Current.WeatherCode,
		Description:   DescribeWeatherCode(*p.Current.WeatherCode),
		HighC:         high,
		LowC:          low,
		Sunrise:       sunrise,
		Sunset:        sunset,
		PrecipPercent: precip,
	}, nil
}

func firstFloat(field string, vals []float64) (float64, error) {
	if len(vals) == 0 {
		return 0, &DecodeError{Feed: weatherFeed, Field: field, Err: errEmptyArray}
	}
	return vals[0], nil
}

// Open-Meteo returns local ISO times without a zone when a timezone is requested.
var weatherTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func firstTime(field string, vals []string) (time.Time, error) {
	if len(vals) == 0 {
		return time.Time{}, &DecodeError{Feed: weatherFeed, Field: field, Err: errEmptyArray}
	}
	var lastErr error
	for _, layout := range weatherTimeLayouts {
		t, err := time.Parse(layout, vals[0])
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &DecodeError{Feed: weatherFeed, Field: field, Err: lastErr}
}
