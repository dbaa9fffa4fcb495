package db

import (
	"context"
	"fmt"
	"strings"
)

// GetItem returns the stored value for key. Missing keys report ErrNoRows.
func (p *Pool) GetItem(ctx context.Context, key string) (string, error) {
	const q = `
SELECT value
FROM voxlate.kv_items
WHERE key = $1
LIMIT 1
`

	var value string
	if err := p.QueryRow(ctx, q, strings.TrimSpace(key)).Scan(&value); err != nil {
		if IsNoRows(err) {
			return "", ErrNoRows
		}
		return "", fmt.Errorf("query kv item: %w", err)
	}
	return value, nil
}

func (p *Pool) SetItem(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO voxlate.kv_items (key, value)
VALUES ($1, $2)
ON CONFLICT (key)
DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = now()
`

	if _, err := p.Exec(ctx, q, strings.TrimSpace(key), value); err != nil {
		return fmt.Errorf("upsert kv item: %w", err)
	}
	return nil
}

func (p *Pool) RemoveItem(ctx context.Context, key string) error {
	const q = `DELETE FROM voxlate.kv_items WHERE key = $1`

	if _, err := p.Exec(ctx, q, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("delete kv item: %w", err)
	}
	return nil
}
