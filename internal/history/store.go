package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/kvstore"
	"horse.fit/voxlate/internal/translation"
)

// StorageKey is the key-value entry holding the history list.
const StorageKey = "translation-history"

const DefaultLimit = 100

// Entry is one completed translation.
type Entry struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Translation string    `json:"translation"`
	SourceLang  string    `json:"sourceLang"`
	TargetLang  string    `json:"targetLang"`
	API         string    `json:"api"`
	Confidence  float64   `json:"confidence"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store keeps the newest translations, up to a fixed limit.
type Store struct {
	kv     kvstore.Store
	logger zerolog.Logger
	limit  int
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

func NewStore(kv kvstore.Store, logger zerolog.Logger, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		kv:     kv,
		logger: logger,
		limit:  limit,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Add prepends entry and drops the oldest entries beyond the limit.
func (s *Store) Add(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.Text) == "" || strings.TrimSpace(entry.Translation) == "" {
		return Entry{}, fmt.Errorf("history entry requires text and translation")
	}
	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return Entry{}, err
	}
	entries = append([]Entry{entry}, entries...)
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	if err := s.save(ctx, entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns a page of entries, newest first, and the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	s.mu.Lock()
	entries, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	total := len(entries)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Entry{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return append([]Entry(nil), entries[offset:end]...), total, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.RemoveItem(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Subscribe records every completed translation published on bus.
func (s *Store) Subscribe(bus *events.Bus) func() {
	return events.Subscribe(bus, translation.TopicTranslationCompleted, func(event translation.CompletedEvent) {
		_, err := s.Add(context.Background(), Entry{
			Text:        event.Text,
			Translation: event.Result.Translation,
			SourceLang:  event.SourceLang,
			TargetLang:  event.TargetLang,
			API:         event.Result.API,
			Confidence:  event.Result.Confidence,
			UserID:      event.UserID,
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("record translation history failed")
		}
	})
}

func (s *Store) load(ctx context.Context) ([]Entry, error) {
	raw, err := s.kv.GetItem(ctx, StorageKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn().Err(err).Msg("stored history is corrupt, starting empty")
		return nil, nil
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries []Entry) error {
	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.SetItem(ctx, StorageKey, string(encoded)); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}
