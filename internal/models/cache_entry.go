package models

import "time"

// CacheEntry backs the database key-value store used when Redis is not
// configured. A zero ExpiresAt means the entry never expires.
type CacheEntry struct {
	BaseModel

	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
