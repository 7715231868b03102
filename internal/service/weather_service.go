package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-tracker/internal/storage"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// Store is the slice of the storage contract the weather service needs.
// *storage.FileStore satisfies it.
type Store interface {
	GetUser(userID string) (storage.User, error)
	FindCity(userID, name string) (storage.City, error)
	ListCities(userID string) ([]storage.City, error)
	Users() []storage.User

	PutForecast(userID, city string, series weather.TimeSeries) error
	GetForecast(userID, city string) (storage.CachedForecast, bool)
	ForecastStale(userID, city string, maxAge time.Duration) bool
}

// WeatherService orchestrates the store and the external provider.
type WeatherService struct {
	store    Store
	provider weather.Provider

	// refreshInterval is how long a cached city forecast stays fresh.
	refreshInterval time.Duration
}

func NewWeatherService(store Store, provider weather.Provider, refreshInterval time.Duration) *WeatherService {
	return &WeatherService{
		store:           store,
		provider:        provider,
		refreshInterval: refreshInterval,
	}
}

// CurrentWeather returns the present reading for the given coordinates.
func (s *WeatherService) CurrentWeather(ctx context.Context, lat, lon float64) (weather.Snapshot, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return weather.Snapshot{}, err
	}
	return s.provider.Current(ctx, lat, lon)
}

// CityForecast resolves a saved city, picks the forecast entry nearest to at,
// and projects it onto the requested parameters. Fresh cached series are
// served without an upstream call.
func (s *WeatherService) CityForecast(ctx context.Context, userID, cityName string, at time.Time, params []string) (map[string]float64, error) {
	city, err := s.store.FindCity(userID, cityName)
	if err != nil {
		return nil, err
	}

	series, err := s.citySeries(ctx, userID, city)
	if err != nil {
		return nil, err
	}

	point, err := weather.NearestPoint(series, at)
	if err != nil {
		return nil, err
	}
	return weather.FilterParams(point.Snapshot, params), nil
}

// citySeries returns the cached hourly series for the city, refreshing it
// from the provider when stale.
func (s *WeatherService) citySeries(ctx context.Context, userID string, city storage.City) (weather.TimeSeries, error) {
	if !s.store.ForecastStale(userID, city.Name, s.refreshInterval) {
		if cached, ok := s.store.GetForecast(userID, city.Name); ok {
			return cached.Series, nil
		}
	}

	series, err := s.provider.Forecast(ctx, city.Latitude, city.Longitude)
	if err != nil {
		// Serve the stale cache rather than failing when the provider is down.
		if cached, ok := s.store.GetForecast(userID, city.Name); ok && len(cached.Series) > 0 {
			log.Warn().Err(err).Str("city", city.Name).Msg("provider fetch failed; serving stale forecast")
			return cached.Series, nil
		}
		return nil, err
	}

	if err := s.store.PutForecast(userID, city.Name, series); err != nil {
		log.Error().Err(err).Str("city", city.Name).Msg("failed to persist forecast cache")
	}
	return series, nil
}

// WarmCity fetches and caches the forecast for a just-added city so the first
// forecast lookup does not pay the upstream round trip.
func (s *WeatherService) WarmCity(ctx context.Context, userID string, city storage.City) {
	series, err := s.provider.Forecast(ctx, city.Latitude, city.Longitude)
	if err != nil {
		log.Warn().Err(err).Str("city", city.Name).Msg("initial forecast fetch failed")
		return
	}
	if err := s.store.PutForecast(userID, city.Name, series); err != nil {
		log.Error().Err(err).Str("city", city.Name).Msg("failed to persist forecast cache")
	}
}

// RefreshAll re-fetches stale forecasts for every saved city of every user.
// Users are refreshed concurrently; cities within a user sequentially.
func (s *WeatherService) RefreshAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, user := range s.store.Users() {
		user := user
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.refreshUser(ctx, user.ID)
		}()
	}
	wg.Wait()
}

func (s *WeatherService) refreshUser(ctx context.Context, userID string) {
	cities, err := s.store.ListCities(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("refresh: list cities failed")
		return
	}

	seen := make(map[string]bool, len(cities))
	for _, city := range cities {
		if seen[city.Name] {
			continue
		}
		seen[city.Name] = true

		if !s.store.ForecastStale(userID, city.Name, s.refreshInterval) {
			continue
		}

		series, err := s.provider.Forecast(ctx, city.Latitude, city.Longitude)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("city", city.Name).Msg("refresh: provider fetch failed")
			continue
		}
		if err := s.store.PutForecast(userID, city.Name, series); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("city", city.Name).Msg("refresh: persist failed")
		}
	}
}
