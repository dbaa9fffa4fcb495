package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/kvstore"
)

// TopicSettingsChanged carries the new settings after every update or reset.
var TopicSettingsChanged = events.NewTopic[Settings]("settingsChanged")

// Store loads, merges and persists settings in a key-value store.
type Store struct {
	kv       kvstore.Store
	bus      *events.Bus
	logger   zerolog.Logger
	defaults Settings

	// writeMu orders persist and publish so subscribers see writes in the
	// order they were stored.
	writeMu sync.Mutex
	mu      sync.RWMutex
	current Settings
}

func NewStore(kv kvstore.Store, bus *events.Bus, logger zerolog.Logger, defaults Settings) *Store {
	return &Store{
		kv:       kv,
		bus:      bus,
		logger:   logger,
		defaults: defaults,
		current:  defaults,
	}
}

// Load reads persisted settings and shallow-merges them over the defaults.
// Missing or corrupt data yields the defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	loaded := s.defaults

	raw, err := s.kv.GetItem(ctx, StorageKey)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
	case err != nil:
		return s.Current(), fmt.Errorf("read settings: %w", err)
	default:
		var patch Patch
		if err := json.Unmarshal([]byte(raw), &patch); err != nil {
			s.logger.Warn().Err(err).Msg("stored settings are corrupt, using defaults")
			break
		}
		merged, err := Merge(s.defaults, patch)
		if err != nil {
			s.logger.Warn().Err(err).Msg("stored settings could not be merged, using defaults")
			break
		}
		loaded = merged
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

// Current returns the settings in effect.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges patch over the current settings, persists the result and
// notifies subscribers. Masked credentials in patch keep their current value.
func (s *Store) Update(ctx context.Context, patch Patch) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	merged, err := Merge(s.current, patch)
	if err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	merged = merged.keepMaskedSecrets(s.current)
	if err := s.persist(ctx, merged); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.current = merged
	s.mu.Unlock()

	s.logger.Info().Int("keys", len(patch)).Str("primary", merged.PrimaryAPI).Msg("settings updated")
	events.Publish(s.bus, TopicSettingsChanged, merged)
	return merged, nil
}

// Reset removes persisted settings and restores the defaults.
func (s *Store) Reset(ctx context.Context) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if err := s.kv.RemoveItem(ctx, StorageKey); err != nil {
		s.mu.Unlock()
		return Settings{}, fmt.Errorf("remove settings: %w", err)
	}
	s.current = s.defaults
	s.mu.Unlock()

	s.logger.Info().Msg("settings reset to defaults")
	events.Publish(s.bus, TopicSettingsChanged, s.defaults)
	return s.defaults, nil
}

func (s *Store) persist(ctx context.Context, value Settings) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.SetItem(ctx, StorageKey, string(encoded)); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}
