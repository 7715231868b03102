package weather

import "context"

// Provider abstracts the external weather data source.
type Provider interface {
	Name() string

	// Current returns the present-moment reading for the given coordinates.
	Current(ctx context.Context, lat, lon float64) (Snapshot, error)

	// Forecast returns an hourly series covering at least the current day.
	Forecast(ctx context.Context, lat, lon float64) (TimeSeries, error)
}
