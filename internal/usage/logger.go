package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/voxlate/internal/auth"
	"horse.fit/voxlate/internal/kvstore"
)

// StorageKey is the key-value entry holding the persisted counters.
const StorageKey = "translation-usage-stats"

const DefaultRecentLimit = 100

// Event is one recorded usage event.
type Event struct {
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
	UserID string         `json:"userId"`
	At     time.Time      `json:"at"`
}

// Stats is a snapshot of the counters and the most recent events, newest first.
type Stats struct {
	Counters map[string]int64 `json:"counters"`
	Total    int64            `json:"total"`
	Recent   []Event          `json:"recent"`
}

// Sink receives a copy of every event for analytics.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// LogSink writes events to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "analytics").Logger()}
}

func (s *LogSink) Send(_ context.Context, event Event) error {
	s.logger.Info().
		Str("event_type", event.Type).
		Str("user_id", event.UserID).
		Interface("data", event.Data).
		Time("at", event.At).
		Msg("usage event")
	return nil
}

// Logger counts usage events per type, persists the counters and keeps a
// bounded window of recent events.
type Logger struct {
	kv     kvstore.Store
	sink   Sink
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]int64
	recent   []Event
	head     int
	size     int
}

func NewLogger(kv kvstore.Store, sink Sink, logger zerolog.Logger, recentLimit int) *Logger {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Logger{
		kv:       kv,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
		counters: make(map[string]int64),
		recent:   make([]Event, recentLimit),
	}
}

// Load restores persisted counters. Corrupt data starts from zero.
func (l *Logger) Load(ctx context.Context) error {
	raw, err := l.kv.GetItem(ctx, StorageKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read usage stats: %w", err)
	}

	var counters map[string]int64
	if err := json.Unmarshal([]byte(raw), &counters); err != nil {
		l.logger.Warn().Err(err).Msg("stored usage stats are corrupt, starting from zero")
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for eventType, count := range counters {
		if count > l.counters[eventType] {
			l.counters[eventType] = count
		}
	}
	return nil
}

// Record increments the counter for eventType and forwards the event to the
// sink. Persistence and sink failures are logged, never returned.
func (l *Logger) Record(ctx context.Context, eventType string, data map[string]any) {
	if eventType == "" {
		return
	}
	event := Event{
		Type:   eventType,
		Data:   cloneData(data),
		UserID: auth.UserID(ctx),
		At:     l.now().UTC(),
	}
	if event.UserID == auth.AnonymousUser {
		if userID, ok := data["userId"].(string); ok && userID != "" {
			event.UserID = userID
		}
	}

	l.mu.Lock()
	l.counters[eventType]++
	l.push(event)
	encoded, err := json.Marshal(l.counters)
	if err == nil {
		err = l.kv.SetItem(ctx, StorageKey, string(encoded))
	}
	l.mu.Unlock()
	if err != nil {
		l.logger.Warn().Err(err).Str("event_type", eventType).Msg("persist usage stats failed")
	}

	if l.sink != nil {
		if err := l.sink.Send(ctx, event); err != nil {
			l.logger.Warn().Err(err).Str("event_type", eventType).Msg("analytics sink failed")
		}
	}
}

// Stats returns a copy of the counters and recent events.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		Counters: make(map[string]int64, len(l.counters)),
		Recent:   make([]Event, 0, l.size),
	}
	for eventType, count := range l.counters {
		stats.Counters[eventType] = count
		stats.Total += count
	}
	for i := 0; i < l.size; i++ {
		idx := (l.head - 1 - i + len(l.recent)) % len(l.recent)
		stats.Recent = append(stats.Recent, l.recent[idx])
	}
	return stats
}

// EventTypes returns the recorded event types in sorted order.
func (l *Logger) EventTypes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]string, 0, len(l.counters))
	for eventType := range l.counters {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// push stores event in the ring buffer, overwriting the oldest entry.
func (l *Logger) push(event Event) {
	l.recent[l.head] = event
	l.head = (l.head + 1) % len(l.recent)
	if l.size < len(l.recent) {
		l.size++
	}
}

func cloneData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	return out
}
