package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-tracker/internal/service"
	"github.com/i474232898/weather-tracker/internal/storage"
	"github.com/i474232898/weather-tracker/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, store *storage.FileStore, svc *service.WeatherService) {
	app.Get("/weather/current", func(c *fiber.Ctx) error {
		q, err := parseCoordsQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshot, err := svc.CurrentWeather(c.Context(), q.Latitude, q.Longitude)
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(snapshot)
	})

	app.Post("/users/register", func(c *fiber.Ctx) error {
		var q registerQuery
		q.Username = c.Query("username")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "username query parameter is required")
		}

		user, err := store.CreateUser(q.Username)
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(fiber.Map{
			"user_id":  user.ID,
			"username": user.Username,
		})
	})

	app.Post("/users/:user_id/cities/add", func(c *fiber.Ctx) error {
		q, err := parseAddCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		city, err := store.AddCity(c.Params("user_id"), q.Name, q.Latitude, q.Longitude)
		if err != nil {
			return mapDomainError(err)
		}

		// Warm the forecast cache in the background; the add itself never
		// waits on the provider.
		go func(userID string, city storage.City) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			svc.WarmCity(ctx, userID, city)
		}(c.Params("user_id"), city)

		return c.JSON(city)
	})

	app.Get("/users/:user_id/cities/list", func(c *fiber.Ctx) error {
		cities, err := store.ListCities(c.Params("user_id"))
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(cities)
	})

	app.Get("/users/:user_id/weather/forecast", func(c *fiber.Ctx) error {
		q, err := parseForecastQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		values, err := svc.CityForecast(c.Context(), c.Params("user_id"), q.City, q.Time, q.Params)
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(values)
	})
}

// mapDomainError translates storage/provider errors into HTTP statuses.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrInvalidCoordinate),
		errors.Is(err, weather.ErrUnknownParam),
		errors.Is(err, weather.ErrOutOfRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrUpstream):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

// registerQuery holds the sole recognized option of the register endpoint.
type registerQuery struct {
	Username string `validate:"required"`
}

// coordsQuery holds range-validated geographic coordinates.
type coordsQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

func parseCoordsQuery(c *fiber.Ctx) (coordsQuery, error) {
	var q coordsQuery

	lat, err := parseFloatQuery(c, "latitude")
	if err != nil {
		return q, err
	}
	lon, err := parseFloatQuery(c, "longitude")
	if err != nil {
		return q, err
	}
	q.Latitude = lat
	q.Longitude = lon

	if err := validate.Struct(q); err != nil {
		return q, weather.ErrInvalidCoordinate
	}
	return q, nil
}

// addCityQuery holds query parameters for saving a city.
type addCityQuery struct {
	Name string `validate:"required"`
	coordsQuery
}

func parseAddCityQuery(c *fiber.Ctx) (addCityQuery, error) {
	var q addCityQuery

	coords, err := parseCoordsQuery(c)
	if err != nil {
		return q, err
	}
	q.coordsQuery = coords

	q.Name = c.Query("name")
	if q.Name == "" {
		return q, errors.New("name query parameter is required")
	}
	return q, nil
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	City   string `validate:"required"`
	Time   time.Time
	Params []string
}

func parseForecastQuery(c *fiber.Ctx) (forecastQuery, error) {
	var q forecastQuery

	q.City = c.Query("city")
	if err := validate.Struct(q); err != nil {
		return q, errors.New("city query parameter is required")
	}

	if raw := c.Query("time"); raw != "" {
		ts, err := parseTime(raw)
		if err != nil {
			return q, err
		}
		q.Time = ts
	} else {
		// Default to the current hour, matching the hourly series granularity.
		q.Time = time.Now().UTC().Truncate(time.Hour)
	}

	params, err := weather.ParseParams(c.Query("params"))
	if err != nil {
		return q, err
	}
	q.Params = params

	return q, nil
}

// forecastTimeLayouts are accepted besides RFC3339, most precise first.
var forecastTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTime parses an ISO-8601-ish timestamp.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	for _, layout := range forecastTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format: %q", s)
}

func parseFloatQuery(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("%s query parameter is required", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}
