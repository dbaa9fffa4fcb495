package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/kvstore"
	"horse.fit/voxlate/internal/translation"
)

type failingKV struct {
	kvstore.Store
	err error
}

func (f failingKV) GetItem(context.Context, string) (string, error) { return "", f.err }
func (f failingKV) SetItem(context.Context, string, string) error   { return f.err }

func seededDefaults() Settings {
	defaults := Defaults()
	defaults.DeepL = translation.ProviderConfig{APIKey: "env-deepl"}
	return defaults
}

func TestLoadWithoutStoredSettingsUsesDefaults(t *testing.T) {
	t.Parallel()

	store := NewStore(kvstore.NewMemoryStore(), nil, zerolog.Nop(), seededDefaults())
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded != seededDefaults() {
		t.Fatalf("unexpected settings: %+v", loaded)
	}
	if loaded.PrimaryAPI != "google" || !loaded.EnableFallback || loaded.Amazon.Region != "us-east-1" {
		t.Fatalf("unexpected defaults: %+v", loaded)
	}
}

func TestLoadShallowMergesStoredSettings(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemoryStore()
	stored := `{"primaryAPI":"microsoft","microsoft":{"apiKey":"ms"},"amazon":{"accessKeyId":"AKIA"}}`
	if err := kv.SetItem(context.Background(), StorageKey, stored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(kv, nil, zerolog.Nop(), seededDefaults())
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.PrimaryAPI != "microsoft" || !loaded.EnableFallback {
		t.Fatalf("unexpected selection: %+v", loaded)
	}
	if loaded.Microsoft.APIKey != "ms" || loaded.DeepL.APIKey != "env-deepl" {
		t.Fatalf("unexpected provider configs: %+v", loaded)
	}
	// Top-level keys replace defaults wholesale, so the default region is gone.
	if loaded.Amazon.AccessKeyID != "AKIA" || loaded.Amazon.Region != "" {
		t.Fatalf("expected amazon to be replaced wholesale, got %+v", loaded.Amazon)
	}
	if store.Current() != loaded {
		t.Fatalf("Current does not match loaded settings")
	}
}

func TestLoadCorruptSettingsFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemoryStore()
	_ = kv.SetItem(context.Background(), StorageKey, `{"primaryAPI":`)

	store := NewStore(kv, nil, zerolog.Nop(), Defaults())
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded != Defaults() {
		t.Fatalf("expected defaults, got %+v", loaded)
	}
}

func TestLoadSurfacesStorageErrors(t *testing.T) {
	t.Parallel()

	store := NewStore(failingKV{err: errors.New("db down")}, nil, zerolog.Nop(), Defaults())
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestUpdatePersistsAndNotifies(t *testing.T) {
	t.Parallel()

	kv := kvstore.NewMemoryStore()
	bus := events.NewBus(zerolog.Nop())
	store := NewStore(kv, bus, zerolog.Nop(), seededDefaults())

	var notified []Settings
	events.Subscribe(bus, TopicSettingsChanged, func(s Settings) {
		notified = append(notified, s)
	})

	updated, err := store.Update(context.Background(), Patch{
		"enableFallback": json.RawMessage(`false`),
		"deepl":          json.RawMessage(`{"apiKey":"new:fx"}`),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.EnableFallback || updated.DeepL.APIKey != "new:fx" || updated.PrimaryAPI != "google" {
		t.Fatalf("unexpected updated settings: %+v", updated)
	}
	if len(notified) != 1 || notified[0] != updated {
		t.Fatalf("unexpected notifications: %+v", notified)
	}

	reloaded, err := NewStore(kv, nil, zerolog.Nop(), seededDefaults()).Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded != updated {
		t.Fatalf("persisted settings differ: %+v vs %+v", reloaded, updated)
	}

	reset, err := store.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if reset != seededDefaults() || len(notified) != 2 {
		t.Fatalf("unexpected reset state: %+v, notifications %d", reset, len(notified))
	}
	if _, err := kv.GetItem(context.Background(), StorageKey); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected stored settings to be removed, got %v", err)
	}
}

func TestUpdateKeepsCurrentOnPersistFailure(t *testing.T) {
	t.Parallel()

	store := NewStore(failingKV{err: errors.New("db down")}, nil, zerolog.Nop(), Defaults())
	if _, err := store.Update(context.Background(), Patch{"primaryAPI": json.RawMessage(`"deepl"`)}); err == nil {
		t.Fatalf("expected persist error")
	}
	if store.Current().PrimaryAPI != "google" {
		t.Fatalf("settings changed despite persist failure: %+v", store.Current())
	}
}

func TestSettingsViews(t *testing.T) {
	t.Parallel()

	s := Defaults()
	s.Microsoft = translation.ProviderConfig{APIKey: "abcdefgh", Region: "eu"}
	if prefs := s.Preferences(); prefs.PrimaryAPI != "google" || !prefs.EnableFallback {
		t.Fatalf("unexpected preferences: %+v", prefs)
	}
	providers := s.Providers()
	if len(providers) != 6 || providers["microsoft"].APIKey != "abcdefgh" {
		t.Fatalf("unexpected providers: %+v", providers)
	}
	redacted := s.Redacted()
	if redacted.Microsoft.APIKey != "****efgh" || redacted.Microsoft.Region != "eu" {
		t.Fatalf("unexpected redaction: %+v", redacted.Microsoft)
	}
	if s.Microsoft.APIKey != "abcdefgh" {
		t.Fatalf("redaction mutated the original")
	}
}

func TestUpdateKeepsSecretsWrittenBackMasked(t *testing.T) {
	t.Parallel()

	defaults := Defaults()
	defaults.Microsoft = translation.ProviderConfig{APIKey: "ms-secret-1234", Region: "eu"}
	defaults.Amazon = translation.ProviderConfig{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "aws-secret", Region: "us-east-1"}
	store := NewStore(kvstore.NewMemoryStore(), nil, zerolog.Nop(), defaults)

	redacted := store.Current().Redacted()
	redacted.PrimaryAPI = "microsoft"
	redacted.Microsoft.Region = "westus"
	redacted.Amazon.SecretAccessKey = "rotated-secret"
	raw, err := json.Marshal(redacted)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	patch, err := ValidatePatch(raw)
	if err != nil {
		t.Fatalf("ValidatePatch returned error: %v", err)
	}

	updated, err := store.Update(context.Background(), patch)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.PrimaryAPI != "microsoft" || updated.Microsoft.Region != "westus" {
		t.Fatalf("unexpected selection: %+v", updated)
	}
	if updated.Microsoft.APIKey != "ms-secret-1234" {
		t.Fatalf("masked api key overwrote the stored one: %q", updated.Microsoft.APIKey)
	}
	if updated.Amazon.AccessKeyID != "AKIAEXAMPLE" || updated.Amazon.SecretAccessKey != "rotated-secret" {
		t.Fatalf("unexpected amazon credentials: %+v", updated.Amazon)
	}
}

func TestConcurrentUpdatesNotifyInStoredOrder(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(zerolog.Nop())
	store := NewStore(kvstore.NewMemoryStore(), bus, zerolog.Nop(), Defaults())

	var (
		mu       sync.Mutex
		lastSeen Settings
	)
	events.Subscribe(bus, TopicSettingsChanged, func(s Settings) {
		mu.Lock()
		lastSeen = s
		mu.Unlock()
	})

	primaries := []string{"google", "microsoft", "deepl", "libretranslate", "mymemory"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		primary := primaries[i%len(primaries)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			patch := Patch{"primaryAPI": json.RawMessage(`"` + primary + `"`)}
			if _, err := store.Update(context.Background(), patch); err != nil {
				t.Errorf("Update returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if lastSeen != store.Current() {
		t.Fatalf("subscriber saw %q, current is %q", lastSeen.PrimaryAPI, store.Current().PrimaryAPI)
	}
}
