package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// ErrNotFound is returned when a user or city is absent from the store.
var ErrNotFound = errors.New("not found")

// User is a registered account. Immutable after creation.
type User struct {
	ID        string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// City is a saved location in a user's list.
type City struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CachedForecast is the last fetched hourly series for a user's city.
type CachedForecast struct {
	FetchedAt time.Time          `json:"fetched_at"`
	Series    weather.TimeSeries `json:"series"`
}

// document is the full on-disk state. It is read wholesale at startup and
// rewritten wholesale on every mutation.
type document struct {
	Users     map[string]User           `json:"users"`
	Cities    map[string][]City         `json:"cities"`
	Forecasts map[string]CachedForecast `json:"forecasts,omitempty"`
}

func newDocument() document {
	return document{
		Users:     make(map[string]User),
		Cities:    make(map[string][]City),
		Forecasts: make(map[string]CachedForecast),
	}
}

// FileStore keeps users and their city lists in a single JSON file.
// One mutex serializes every read-modify-write cycle, so overlapping
// requests cannot lose updates.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads the store from path. A missing or unreadable file starts the
// store empty rather than failing.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc:  newDocument(),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("data file is corrupt; starting empty")
		return s, nil
	}

	if doc.Users == nil {
		doc.Users = make(map[string]User)
	}
	if doc.Cities == nil {
		doc.Cities = make(map[string][]City)
	}
	if doc.Forecasts == nil {
		doc.Forecasts = make(map[string]CachedForecast)
	}
	s.doc = doc
	return s, nil
}

// persist rewrites the whole document. Write-to-temp-then-rename keeps a
// crash mid-write from leaving a half-written file behind.
// Caller must hold s.mu.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".weather-data-*")
	if err != nil {
		return fmt.Errorf("create temp data file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp data file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// CreateUser registers a new user. Usernames are not unique; registering the
// same name twice yields two distinct ids.
func (s *FileStore) CreateUser(username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	s.doc.Users[u.ID] = u
	if err := s.persist(); err != nil {
		delete(s.doc.Users, u.ID)
		return User{}, err
	}
	return u, nil
}

// GetUser returns the user with the given id.
func (s *FileStore) GetUser(userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.doc.Users[userID]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return u, nil
}

// AddCity appends a city to the user's list. Duplicate names are allowed.
func (s *FileStore) AddCity(userID, name string, lat, lon float64) (City, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return City{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Users[userID]; !ok {
		return City{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	c := City{Name: name, Latitude: lat, Longitude: lon}
	s.doc.Cities[userID] = append(s.doc.Cities[userID], c)
	if err := s.persist(); err != nil {
		cities := s.doc.Cities[userID]
		s.doc.Cities[userID] = cities[:len(cities)-1]
		return City{}, err
	}
	return c, nil
}

// ListCities returns the user's cities in insertion order. A registered user
// with no cities gets an empty list, not an error.
func (s *FileStore) ListCities(userID string) ([]City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	cities := make([]City, len(s.doc.Cities[userID]))
	copy(cities, s.doc.Cities[userID])
	return cities, nil
}

// FindCity looks up a city by exact, case-sensitive name match.
func (s *FileStore) FindCity(userID, name string) (City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Users[userID]; !ok {
		return City{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	for _, c := range s.doc.Cities[userID] {
		if c.Name == name {
			return c, nil
		}
	}
	return City{}, fmt.Errorf("city %q: %w", name, ErrNotFound)
}

// Users returns a snapshot of all registered users.
func (s *FileStore) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		users = append(users, u)
	}
	return users
}

func forecastKey(userID, city string) string {
	return userID + "/" + city
}

// PutForecast stores the freshly fetched series for a user's city.
func (s *FileStore) PutForecast(userID, city string, series weather.TimeSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Forecasts[forecastKey(userID, city)] = CachedForecast{
		FetchedAt: time.Now().UTC(),
		Series:    series,
	}
	return s.persist()
}

// GetForecast returns the cached series for a user's city, if any.
func (s *FileStore) GetForecast(userID, city string) (CachedForecast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.doc.Forecasts[forecastKey(userID, city)]
	return f, ok
}

// ForecastStale reports whether the cached series for a user's city is
// missing or older than maxAge.
func (s *FileStore) ForecastStale(userID, city string, maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.doc.Forecasts[forecastKey(userID, city)]
	if !ok || f.FetchedAt.IsZero() {
		return true
	}
	return time.Since(f.FetchedAt) > maxAge
}
