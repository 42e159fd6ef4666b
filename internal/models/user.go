package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User describes an account holder. OAuth-linked accounts carry the provider
// subject so repeat sign-ins resolve to the same row.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `json:"-"` // empty for OAuth-only accounts

	Name   string `json:"name"`
	Avatar string `json:"avatar"`

	Provider        string `gorm:"index" json:"provider,omitempty"`
	ProviderSubject string `gorm:"index" json:"-"`

	Theme               string `gorm:"type:varchar(16);default:'system'" json:"theme"`
	DailySummaryEnabled bool   `gorm:"default:false" json:"daily_summary_enabled"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"-"`

	FailedAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`

	Tasks    []Task    `gorm:"foreignKey:UserID" json:"-"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
