package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-tracker/internal/service"
	"github.com/i474232898/weather-tracker/internal/storage"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// stubProvider serves canned weather data without touching the network.
type stubProvider struct {
	snapshot weather.Snapshot
	series   weather.TimeSeries
	err      error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Current(ctx context.Context, lat, lon float64) (weather.Snapshot, error) {
	return p.snapshot, p.err
}

func (p *stubProvider) Forecast(ctx context.Context, lat, lon float64) (weather.TimeSeries, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.series, nil
}

func newTestApp(t *testing.T, provider weather.Provider) (*fiber.App, *storage.FileStore) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "data.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	svc := service.NewWeatherService(store, provider, 15*time.Minute)
	RegisterRoutes(app, store, svc)
	return app, store
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, body
}

func registerUser(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	resp, body := doRequest(t, app, http.MethodPost, "/users/register?username="+url.QueryEscape(username))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register returned %d: %s", resp.StatusCode, body)
	}
	var out struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if out.UserID == "" || out.Username != username {
		t.Fatalf("unexpected register response: %s", body)
	}
	return out.UserID
}

func TestCurrentWeather(t *testing.T) {
	provider := &stubProvider{
		snapshot: weather.Snapshot{Temperature: -7.3, Humidity: 86, WindSpeed: 4.2, Precipitation: 0.1},
	}
	app, _ := newTestApp(t, provider)

	resp, body := doRequest(t, app, http.MethodGet, "/weather/current?latitude=55.7558&longitude=37.6176")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var got map[string]float64
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, key := range []string{"temperature", "humidity", "wind_speed", "precipitation"} {
		if _, ok := got[key]; !ok {
			t.Errorf("response missing %q: %s", key, body)
		}
	}
}

func TestCurrentWeatherBadInput(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})

	cases := []string{
		"/weather/current",
		"/weather/current?latitude=55.7558",
		"/weather/current?latitude=91&longitude=0",
		"/weather/current?latitude=0&longitude=-180.5",
		"/weather/current?latitude=abc&longitude=0",
	}
	for _, target := range cases {
		resp, _ := doRequest(t, app, http.MethodGet, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestCurrentWeatherUpstreamDown(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{err: weather.ErrUpstream})

	resp, _ := doRequest(t, app, http.MethodGet, "/weather/current?latitude=1&longitude=2")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})

	resp, _ := doRequest(t, app, http.MethodPost, "/users/register")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// Duplicate usernames are allowed and yield distinct ids.
	a := registerUser(t, app, "alice")
	b := registerUser(t, app, "alice")
	if a == b {
		t.Fatalf("expected distinct user ids, got %s twice", a)
	}
}

func TestAddCity(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})
	userID := registerUser(t, app, "bob")

	resp, body := doRequest(t, app, http.MethodPost,
		"/users/"+userID+"/cities/add?name=Moscow&latitude=55.7558&longitude=37.6176")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var city storage.City
	if err := json.Unmarshal(body, &city); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := storage.City{Name: "Moscow", Latitude: 55.7558, Longitude: 37.6176}
	if city != want {
		t.Fatalf("unexpected city: %+v", city)
	}

	// Unknown user.
	resp, _ = doRequest(t, app, http.MethodPost, "/users/nope/cities/add?name=Moscow&latitude=1&longitude=2")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	// Bad input.
	for _, target := range []string{
		"/users/" + userID + "/cities/add?name=Moscow&latitude=95&longitude=2",
		"/users/" + userID + "/cities/add?latitude=1&longitude=2",
		"/users/" + userID + "/cities/add?name=Moscow&latitude=1",
	} {
		resp, _ = doRequest(t, app, http.MethodPost, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestListCities(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})
	userID := registerUser(t, app, "carol")

	resp, body := doRequest(t, app, http.MethodGet, "/users/"+userID+"/cities/list")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "[]" {
		t.Fatalf("expected empty list, got %s", body)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/users/unknown/cities/list")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestForecastValidation(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})
	userID := registerUser(t, app, "dave")

	// Missing city.
	resp, _ := doRequest(t, app, http.MethodGet, "/users/"+userID+"/weather/forecast")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}

	// City not in the user's list.
	resp, _ = doRequest(t, app, http.MethodGet, "/users/"+userID+"/weather/forecast?city=Moscow")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	// Malformed time and unknown param.
	doRequest(t, app, http.MethodPost, "/users/"+userID+"/cities/add?name=Moscow&latitude=55.7558&longitude=37.6176")
	for _, target := range []string{
		"/users/" + userID + "/weather/forecast?city=Moscow&time=yesterday",
		"/users/" + userID + "/weather/forecast?city=Moscow&params=temperature,pressure",
	} {
		resp, _ = doRequest(t, app, http.MethodGet, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

// TestRegisterAddListForecastScenario walks the full user journey: register,
// save Moscow, list it back verbatim, then ask for a temperature-only
// forecast.
func TestRegisterAddListForecastScenario(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	provider := &stubProvider{
		series: weather.TimeSeries{
			{Time: now.Add(-time.Hour), Snapshot: weather.Snapshot{Temperature: -8.1, Humidity: 80}},
			{Time: now, Snapshot: weather.Snapshot{Temperature: -7.3, Humidity: 86, WindSpeed: 4.2}},
			{Time: now.Add(time.Hour), Snapshot: weather.Snapshot{Temperature: -6.8, Humidity: 84}},
		},
	}
	app, _ := newTestApp(t, provider)

	userID := registerUser(t, app, "erin")

	resp, body := doRequest(t, app, http.MethodPost,
		"/users/"+userID+"/cities/add?name=Moscow&latitude=55.7558&longitude=37.6176")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add city returned %d: %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, app, http.MethodGet, "/users/"+userID+"/cities/list")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list returned %d", resp.StatusCode)
	}
	var cities []storage.City
	if err := json.Unmarshal(body, &cities); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(cities) != 1 || cities[0] != (storage.City{Name: "Moscow", Latitude: 55.7558, Longitude: 37.6176}) {
		t.Fatalf("unexpected list: %s", body)
	}

	resp, body = doRequest(t, app, http.MethodGet,
		"/users/"+userID+"/weather/forecast?city=Moscow&params=temperature")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forecast returned %d: %s", resp.StatusCode, body)
	}
	var forecast map[string]float64
	if err := json.Unmarshal(body, &forecast); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(forecast) != 1 {
		t.Fatalf("expected exactly one key, got %s", body)
	}
	if forecast["temperature"] != -7.3 {
		t.Fatalf("unexpected temperature: %s", body)
	}
}

func TestForecastParamSubset(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	provider := &stubProvider{
		series: weather.TimeSeries{
			{Time: now, Snapshot: weather.Snapshot{Temperature: 20, Humidity: 30, WindSpeed: 5, Precipitation: 1}},
		},
	}
	app, _ := newTestApp(t, provider)

	userID := registerUser(t, app, "frank")
	doRequest(t, app, http.MethodPost, "/users/"+userID+"/cities/add?name=Lisbon&latitude=38.7&longitude=-9.1")

	resp, body := doRequest(t, app, http.MethodGet,
		"/users/"+userID+"/weather/forecast?city=Lisbon&params=temperature,humidity")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forecast returned %d: %s", resp.StatusCode, body)
	}

	var got map[string]float64
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(got) != 2 || got["temperature"] != 20 || got["humidity"] != 30 {
		t.Fatalf("unexpected subset: %s", body)
	}

	// Default selects all four parameters.
	resp, body = doRequest(t, app, http.MethodGet, "/users/"+userID+"/weather/forecast?city=Lisbon")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forecast returned %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected four keys, got %s", body)
	}
}

func TestForecastTimeOutOfRange(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	provider := &stubProvider{
		series: weather.TimeSeries{
			{Time: base, Snapshot: weather.Snapshot{Temperature: 20}},
		},
	}
	app, _ := newTestApp(t, provider)

	userID := registerUser(t, app, "grace")
	doRequest(t, app, http.MethodPost, "/users/"+userID+"/cities/add?name=Lisbon&latitude=38.7&longitude=-9.1")

	far := base.Add(20 * time.Hour).Format(time.RFC3339)
	resp, body := doRequest(t, app, http.MethodGet,
		fmt.Sprintf("/users/%s/weather/forecast?city=Lisbon&time=%s", userID, url.QueryEscape(far)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
	}
}
