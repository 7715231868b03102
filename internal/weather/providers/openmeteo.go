package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// DefaultOpenMeteoURL is the public Open-Meteo forecast endpoint. No API key
// is required.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// openMeteoTimeLayout is the minute-precision local format Open-Meteo uses
// for hourly timestamps.
const openMeteoTimeLayout = "2006-01-02T15:04"

var hourlyFields = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"wind_speed_10m",
	"precipitation",
}

// OpenMeteo implements weather.Provider against the Open-Meteo API.
type OpenMeteo struct {
	name    string
	baseURL string
	rc      *resilientClient
}

func NewOpenMeteo(client *http.Client, baseURL string) *OpenMeteo {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteo{
		name:    "openmeteo",
		baseURL: baseURL,
		rc:      newResilientClient(client, "openmeteo"),
	}
}

func (p *OpenMeteo) Name() string {
	return p.name
}

// Current fetches the present-moment reading for the given coordinates.
func (p *OpenMeteo) Current(ctx context.Context, lat, lon float64) (weather.Snapshot, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return weather.Snapshot{}, err
	}

	values := p.baseQuery(lat, lon)
	values.Set("current", strings.Join(hourlyFields, ","))

	resp, err := p.get(ctx, values)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("%w: %v", weather.ErrUpstream, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			Precipitation float64 `json:"precipitation"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, fmt.Errorf("%w: decode response: %v", weather.ErrUpstream, err)
	}

	return weather.Snapshot{
		Temperature:   payload.Current.Temperature,
		Humidity:      payload.Current.Humidity,
		WindSpeed:     payload.Current.WindSpeed,
		Precipitation: payload.Current.Precipitation,
	}, nil
}

// Forecast fetches the hourly series for the current day.
func (p *OpenMeteo) Forecast(ctx context.Context, lat, lon float64) (weather.TimeSeries, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	values := p.baseQuery(lat, lon)
	values.Set("hourly", strings.Join(hourlyFields, ","))
	values.Set("forecast_days", "1")

	resp, err := p.get(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrUpstream, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature   []float64 `json:"temperature_2m"`
			Humidity      []float64 `json:"relative_humidity_2m"`
			WindSpeed     []float64 `json:"wind_speed_10m"`
			Precipitation []float64 `json:"precipitation"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", weather.ErrUpstream, err)
	}

	h := payload.Hourly
	series := make(weather.TimeSeries, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := time.Parse(openMeteoTimeLayout, raw)
		if err != nil {
			// Skip entries with timestamps we cannot read.
			continue
		}

		series = append(series, weather.Point{
			Time: ts.UTC(),
			Snapshot: weather.Snapshot{
				Temperature:   at(h.Temperature, i),
				Humidity:      at(h.Humidity, i),
				WindSpeed:     at(h.WindSpeed, i),
				Precipitation: at(h.Precipitation, i),
			},
		})
	}
	return series, nil
}

func (p *OpenMeteo) baseQuery(lat, lon float64) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("timezone", "UTC")
	return values
}

func (p *OpenMeteo) get(ctx context.Context, values url.Values) (*http.Response, error) {
	return p.rc.do(ctx, func() (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	})
}

// at is a bounds-tolerant index; Open-Meteo occasionally returns value arrays
// shorter than the time array.
func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}
