package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/pkg/crypto"
	apperrors "github.com/actionable-app/actionable/pkg/errors"
	"github.com/actionable-app/actionable/pkg/logger"

	"github.com/actionable-app/actionable/internal/models"
)

const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

// RegisterInput holds the fields accepted when creating a local account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LocalProvider authenticates users against bcrypt password hashes stored locally.
type LocalProvider struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLocalProvider constructs a LocalProvider backed by the supplied database.
func NewLocalProvider(db *gorm.DB) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}
	return &LocalProvider{db: db, now: time.Now}, nil
}

// Register creates a new local account with a hashed password.
func (p *LocalProvider) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("Email and password are required")
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("local provider: check email: %w", err)
	}
	if count > 0 {
		return nil, apperrors.NewBadRequest("An account with this email already exists")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("local provider: hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: hash,
		Name:     input.Name,
		Provider: "local",
		IsActive: true,
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("local provider: create user: %w", err)
	}

	logger.Info("local account registered", zap.String("user_id", user.ID))
	return user, nil
}

// Authenticate verifies an email/password pair and tracks failed attempts.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password, ip string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("local provider: load user: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.ErrForbidden
	}

	now := p.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, apperrors.New("ACCOUNT_LOCKED", "Too many failed attempts, try again later", 423)
	}

	if user.Password == "" {
		// OAuth-only account, no local password set.
		return nil, apperrors.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.Password, password) {
		if err := p.recordFailure(ctx, &user); err != nil {
			logger.Error("record failed sign-in", zap.Error(err))
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	updates := map[string]interface{}{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
		"last_login_ip":   ip,
	}
	if err := p.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("local provider: update login state: %w", err)
	}

	return &user, nil
}

// ChangePassword verifies the current password before replacing it.
func (p *LocalProvider) ChangePassword(ctx context.Context, userID, current, next string) error {
	if next == "" {
		return apperrors.NewBadRequest("New password is required")
	}

	var user models.User
	if err := p.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("local provider: load user: %w", err)
	}

	if user.Password != "" && !crypto.VerifyPassword(user.Password, current) {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("local provider: hash password: %w", err)
	}

	if err := p.db.WithContext(ctx).Model(&user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("local provider: update password: %w", err)
	}
	return nil
}

func (p *LocalProvider) recordFailure(ctx context.Context, user *models.User) error {
	attempts := user.FailedAttempts + 1
	updates := map[string]interface{}{"failed_attempts": attempts}
	if attempts >= maxFailedAttempts {
		updates["locked_until"] = p.now().Add(lockoutDuration)
		updates["failed_attempts"] = 0
	}
	return p.db.WithContext(ctx).Model(user).Updates(updates).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
