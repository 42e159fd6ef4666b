package models

// PushToken stores a device push token keyed by user. One row per user; a
// re-registration from another device overwrites the previous token.
type PushToken struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Token  string `gorm:"not null" json:"token"`
}
