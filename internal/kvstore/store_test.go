package kvstore

import (
	"context"
	"errors"
	"testing"

	"horse.fit/voxlate/internal/db"
)

type fakeItemPool struct {
	items   map[string]string
	removed []string
}

func (p *fakeItemPool) GetItem(_ context.Context, key string) (string, error) {
	value, ok := p.items[key]
	if !ok {
		return "", db.ErrNoRows
	}
	return value, nil
}

func (p *fakeItemPool) SetItem(_ context.Context, key, value string) error {
	p.items[key] = value
	return nil
}

func (p *fakeItemPool) RemoveItem(_ context.Context, key string) error {
	p.removed = append(p.removed, key)
	delete(p.items, key)
	return nil
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.GetItem(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetItem(ctx, " settings ", `{"a":1}`); err != nil {
		t.Fatalf("set item: %v", err)
	}
	got, err := store.GetItem(ctx, "settings")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("unexpected value: %q", got)
	}
	if err := store.RemoveItem(ctx, "settings"); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if _, err := store.GetItem(ctx, "settings"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemoryStoreRejectsBlankKey(t *testing.T) {
	t.Parallel()

	if err := NewMemoryStore().SetItem(context.Background(), "  ", "x"); err == nil {
		t.Fatalf("expected blank key to be rejected")
	}
}

func TestPostgresStoreMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	pool := &fakeItemPool{items: map[string]string{}}
	store := &PostgresStore{pool: pool}
	ctx := context.Background()

	if _, err := store.GetItem(ctx, "stats"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetItem(ctx, "stats", "{}"); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if got, err := store.GetItem(ctx, "stats"); err != nil || got != "{}" {
		t.Fatalf("unexpected get result: %q %v", got, err)
	}
	if err := store.RemoveItem(ctx, " stats "); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(pool.removed) != 1 || pool.removed[0] != "stats" {
		t.Fatalf("unexpected removed keys: %v", pool.removed)
	}
}
