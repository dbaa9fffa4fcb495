package db

import "time"

// KVItem maps voxlate.kv_items, the persistent key-value store backing
// settings, usage counters and translation history.
type KVItem struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (KVItem) TableName() string { return "voxlate.kv_items" }

func autoMigrateModels() []any {
	return []any{
		&KVItem{},
	}
}
