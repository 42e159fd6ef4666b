package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/models"
)

// ExternalIdentity carries the verified claims of an OAuth sign-in.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
}

// AccountService resolves external identities to local user rows.
type AccountService struct {
	db *gorm.DB
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	return &AccountService{db: db}, nil
}

// Get loads a user by id.
func (s *AccountService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("account service: load user: %w", err)
	}
	return &user, nil
}

// FindOrCreate resolves the identity to an existing user, matching first on
// the provider subject and then on email, creating the account on first
// sign-in. An email match links the provider to the existing account.
func (s *AccountService) FindOrCreate(ctx context.Context, ident ExternalIdentity) (*models.User, error) {
	if ident.Provider == "" || ident.Subject == "" {
		return nil, errors.New("account service: provider and subject are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_subject = ?", ident.Provider, ident.Subject).
		First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account service: lookup by subject: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(ident.Email))
	if email != "" {
		err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			updates := map[string]interface{}{
				"provider":         ident.Provider,
				"provider_subject": ident.Subject,
			}
			if user.Avatar == "" && ident.Picture != "" {
				updates["avatar"] = ident.Picture
			}
			if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("account service: link provider: %w", err)
			}
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account service: lookup by email: %w", err)
		}
	}

	user = models.User{
		Email:           email,
		Name:            ident.Name,
		Avatar:          ident.Picture,
		Provider:        ident.Provider,
		ProviderSubject: ident.Subject,
		IsActive:        true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("account service: create user: %w", err)
	}
	return &user, nil
}
