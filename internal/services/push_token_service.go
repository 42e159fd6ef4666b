package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/models"
)

// PushTokenService persists one push token per user.
type PushTokenService struct {
	db *gorm.DB
}

// NewPushTokenService constructs a PushTokenService.
func NewPushTokenService(db *gorm.DB) (*PushTokenService, error) {
	if db == nil {
		return nil, errors.New("push token service: db is required")
	}
	return &PushTokenService{db: db}, nil
}

// Save upserts the user's push token. Re-registering a device replaces the
// previous token rather than accumulating rows.
func (s *PushTokenService) Save(ctx context.Context, userID, token string) (*models.PushToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewBadRequest("Push token is required")
	}

	record := &models.PushToken{UserID: userID, Token: token}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
		}).
		Create(record).Error
	if err != nil {
		return nil, fmt.Errorf("push token service: save token: %w", err)
	}
	return record, nil
}

// Get returns the user's push token, or ErrNotFound when none is registered.
func (s *PushTokenService) Get(ctx context.Context, userID string) (*models.PushToken, error) {
	var record models.PushToken
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("push token service: load token: %w", err)
	}
	return &record, nil
}

// Delete removes the user's push token if present.
func (s *PushTokenService) Delete(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PushToken{}).Error
	if err != nil {
		return fmt.Errorf("push token service: delete token: %w", err)
	}
	return nil
}
