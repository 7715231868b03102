package weather

import (
	"fmt"
	"strings"
)

// Param names accepted by the forecast endpoint.
const (
	ParamTemperature   = "temperature"
	ParamHumidity      = "humidity"
	ParamWindSpeed     = "wind_speed"
	ParamPrecipitation = "precipitation"
)

// AllParams is the default selection when the client names none.
var AllParams = []string{ParamTemperature, ParamHumidity, ParamWindSpeed, ParamPrecipitation}

// ParseParams splits a comma-separated parameter list and rejects names
// outside the known set. An empty input selects every parameter.
func ParseParams(csv string) ([]string, error) {
	if strings.TrimSpace(csv) == "" {
		return AllParams, nil
	}

	parts := strings.Split(csv, ",")
	params := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case ParamTemperature, ParamHumidity, ParamWindSpeed, ParamPrecipitation:
			params = append(params, name)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, part)
		}
	}
	return params, nil
}

// FilterParams projects a snapshot onto the named parameters.
func FilterParams(s Snapshot, params []string) map[string]float64 {
	out := make(map[string]float64, len(params))
	for _, name := range params {
		switch name {
		case ParamTemperature:
			out[ParamTemperature] = s.Temperature
		case ParamHumidity:
			out[ParamHumidity] = s.Humidity
		case ParamWindSpeed:
			out[ParamWindSpeed] = s.WindSpeed
		case ParamPrecipitation:
			out[ParamPrecipitation] = s.Precipitation
		}
	}
	return out
}
