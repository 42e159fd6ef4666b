package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/models"
)

var validThemes = map[string]struct{}{
	"light":  {},
	"dark":   {},
	"system": {},
}

// UpdateProfileInput carries partial profile updates. Nil pointers leave fields untouched.
type UpdateProfileInput struct {
	Name                *string `json:"name"`
	Theme               *string `json:"theme"`
	DailySummaryEnabled *bool   `json:"daily_summary_enabled"`
}

// ProfileService manages user profile details and preferences.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db}, nil
}

// Get loads the user's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("profile service: load user: %w", err)
	}
	return &user, nil
}

// Update applies the supplied profile changes and returns the fresh row.
func (s *ProfileService) Update(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}

	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Theme != nil {
		theme := strings.ToLower(strings.TrimSpace(*input.Theme))
		if _, ok := validThemes[theme]; !ok {
			return nil, apperrors.NewBadRequest("Theme must be light, dark or system")
		}
		updates["theme"] = theme
	}
	if input.DailySummaryEnabled != nil {
		updates["daily_summary_enabled"] = *input.DailySummaryEnabled
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", userID).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("profile service: update user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, apperrors.ErrNotFound
		}
	}

	return s.Get(ctx, userID)
}

// SetAvatar stores the public URL of the user's uploaded avatar.
func (s *ProfileService) SetAvatar(ctx context.Context, userID, avatarURL string) (*models.User, error) {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("avatar", avatarURL)
	if result.Error != nil {
		return nil, fmt.Errorf("profile service: set avatar: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}
	return s.Get(ctx, userID)
}
