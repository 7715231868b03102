package weather

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCoordinate is returned when latitude or longitude is out of range.
	ErrInvalidCoordinate = errors.New("latitude must be in [-90,90] and longitude in [-180,180]")

	// ErrUpstream is returned when the weather provider cannot be reached
	// or answers with a non-success status.
	ErrUpstream = errors.New("weather provider unavailable")

	// ErrOutOfRange is returned when the requested time is too far from every
	// entry of the forecast series.
	ErrOutOfRange = errors.New("requested time is outside the available forecast range")

	// ErrUnknownParam is returned for parameter names outside the known set.
	ErrUnknownParam = errors.New("unknown weather parameter")
)

// Snapshot is a single point-in-time weather reading.
type Snapshot struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	Precipitation float64 `json:"precipitation"`
}

// Point is one timestamped entry of a forecast series.
type Point struct {
	Time     time.Time `json:"time"` // always UTC
	Snapshot Snapshot  `json:"values"`
}

// TimeSeries is an hourly forecast ordered by Time ascending.
type TimeSeries []Point

// ValidateCoordinates checks geographic bounds.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}
