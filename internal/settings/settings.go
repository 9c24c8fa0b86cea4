// Package settings persists the buyer's preferences: interface language,
// theme and which notification channels are enabled.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rewired-gh/mandinetra/internal/storage"
)

// Namespace is the durable namespace of the settings object.
const Namespace = "userSettings"

// Languages lists the supported interface languages.
var Languages = []string{"english", "hindi", "marathi", "gujarati"}

// Themes lists the supported themes.
var Themes = []string{"light", "dark"}

// Settings is the persisted preferences object.
type Settings struct {
	Language          string `json:"language"`
	Theme             string `json:"theme"`
	Notifications     bool   `json:"notifications"`
	PriceAlerts       bool   `json:"priceAlerts"`
	MarketUpdates     bool   `json:"marketUpdates"`
	SMSAlerts         bool   `json:"smsAlerts"`
	EmailAlerts       bool   `json:"emailAlerts"`
	PushNotifications bool   `json:"pushNotifications"`
}

// Defaults returns the settings a new buyer starts with.
func Defaults() Settings {
	return Settings{
		Language:          "english",
		Theme:             "light",
		Notifications:     true,
		PriceAlerts:       true,
		MarketUpdates:     true,
		SMSAlerts:         false,
		EmailAlerts:       true,
		PushNotifications: true,
	}
}

// boolFields maps setting keys to their boolean fields.
var boolFields = map[string]func(s *Settings) *bool{
	"notifications":     func(s *Settings) *bool { return &s.Notifications },
	"priceAlerts":       func(s *Settings) *bool { return &s.PriceAlerts },
	"marketUpdates":     func(s *Settings) *bool { return &s.MarketUpdates },
	"smsAlerts":         func(s *Settings) *bool { return &s.SMSAlerts },
	"emailAlerts":       func(s *Settings) *bool { return &s.EmailAlerts },
	"pushNotifications": func(s *Settings) *bool { return &s.PushNotifications },
}

// Keys returns every settable key, sorted.
func Keys() []string {
	keys := []string{"language", "theme"}
	for k := range boolFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that enumerated fields hold supported values.
func (s Settings) Validate() error {
	if !contains(Languages, s.Language) {
		return &models.ValidationError{Field: "language", Message: fmt.Sprintf("must be one of %s", strings.Join(Languages, ", "))}
	}
	if !contains(Themes, s.Theme) {
		return &models.ValidationError{Field: "theme", Message: fmt.Sprintf("must be one of %s", strings.Join(Themes, ", "))}
	}
	return nil
}

// Store holds the settings in memory and writes every change through.
type Store struct {
	kv kv.Store

	mu      sync.RWMutex
	current Settings
}

// New creates a Store over kvStore holding the defaults. Call Load before use.
func New(kvStore kv.Store) *Store {
	return &Store{kv: kvStore, current: Defaults()}
}

// Load reads the durable settings. Missing or malformed data yields the
// defaults; fields absent from an older payload keep their default value.
func (s *Store) Load(ctx context.Context) error {
	l := storage.Lock(s.kv, Namespace)
	l.Lock()
	defer l.Unlock()

	loaded, err := s.read(ctx)
	s.set(loaded)
	return err
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set assigns value to key and persists the result. Boolean keys accept the
// forms understood by strconv.ParseBool. The durable object is re-read under
// the namespace lock, so concurrent writers of other keys are preserved.
func (s *Store) Set(ctx context.Context, key, value string) (Settings, error) {
	value = strings.TrimSpace(value)

	apply, err := setter(key, value)
	if err != nil {
		return s.Get(), err
	}

	l := storage.Lock(s.kv, Namespace)
	l.Lock()
	defer l.Unlock()

	next, err := s.read(ctx)
	if err != nil {
		return s.Get(), err
	}
	apply(&next)

	if err := next.Validate(); err != nil {
		return s.Get(), err
	}
	if err := s.save(ctx, next); err != nil {
		return s.Get(), err
	}
	return next, nil
}

// Reset restores and persists the defaults.
func (s *Store) Reset(ctx context.Context) error {
	l := storage.Lock(s.kv, Namespace)
	l.Lock()
	defer l.Unlock()
	return s.save(ctx, Defaults())
}

func setter(key, value string) (func(*Settings), error) {
	switch key {
	case "language":
		return func(s *Settings) { s.Language = strings.ToLower(value) }, nil
	case "theme":
		return func(s *Settings) { s.Theme = strings.ToLower(value) }, nil
	}
	field, ok := boolFields[key]
	if !ok {
		return nil, &models.ValidationError{Field: key, Message: "unknown setting"}
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, &models.ValidationError{Field: key, Message: "must be true or false"}
	}
	return func(s *Settings) { *field(s) = b }, nil
}

// read decodes the durable object. Caller holds the namespace lock.
func (s *Store) read(ctx context.Context) (Settings, error) {
	raw, ok, err := s.kv.Get(ctx, Namespace)
	if err != nil {
		return Defaults(), fmt.Errorf("failed to read %s: %w", Namespace, err)
	}
	if !ok || raw == "" {
		return Defaults(), nil
	}

	loaded := Defaults()
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		logger.Warn("Discarding stored settings: %v", &models.StorageCorruptError{Namespace: Namespace, Err: err})
		return Defaults(), nil
	}
	if err := loaded.Validate(); err != nil {
		logger.Warn("Discarding stored settings: %v", err)
		return Defaults(), nil
	}
	return loaded, nil
}

func (s *Store) save(ctx context.Context, next Settings) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", Namespace, err)
	}
	if err := s.kv.Set(ctx, Namespace, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", Namespace, err)
	}
	s.set(next)
	return nil
}

func (s *Store) set(v Settings) {
	s.mu.Lock()
	s.current = v
	s.mu.Unlock()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
