package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/models"
)

const (
	// DefaultRefreshTokenTTL defines how long refresh tokens stay valid.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// SessionMetadata captures request level details stored with each session.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// SessionTokens bundles the credentials returned when a session is created or refreshed.
type SessionTokens struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionService manages refresh-token backed sessions.
type SessionService struct {
	db         *gorm.DB
	jwt        *JWTService
	refreshTTL time.Duration
	now        func() time.Time
}

// SessionOption customises SessionService construction.
type SessionOption func(*SessionService)

// WithRefreshTokenTTL overrides the refresh token validity period.
func WithRefreshTokenTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithSessionClock overrides the time source, primarily for tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService constructs a SessionService bound to the supplied database and token issuer.
func NewSessionService(db *gorm.DB, jwtService *JWTService, opts ...SessionOption) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	service := &SessionService{
		db:         db,
		jwt:        jwtService,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateSession opens a new session for the user and issues the token pair.
func (s *SessionService) CreateSession(ctx context.Context, userID string, meta SessionMetadata) (*SessionTokens, error) {
	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		UserID:       userID,
		RefreshToken: refreshToken,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		ExpiresAt:    now.Add(s.refreshTTL),
		LastUsedAt:   now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:    userID,
		SessionID: session.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("session service: issue access token: %w", err)
	}

	return &SessionTokens{
		SessionID:    session.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// RefreshSession rotates the refresh token and issues a fresh access token.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string, meta SessionMetadata) (*SessionTokens, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Where("refresh_token = ?", refreshToken).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("session service: load session: %w", err)
	}

	now := s.now()
	if session.RevokedAt != nil || now.After(session.ExpiresAt) {
		return nil, apperrors.ErrUnauthorized
	}

	rotated, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("session service: rotate refresh token: %w", err)
	}

	updates := map[string]interface{}{
		"refresh_token": rotated,
		"expires_at":    now.Add(s.refreshTTL),
		"last_used_at":  now,
	}
	if meta.IPAddress != "" {
		updates["ip_address"] = meta.IPAddress
	}
	if meta.UserAgent != "" {
		updates["user_agent"] = meta.UserAgent
	}

	if err := s.db.WithContext(ctx).Model(&session).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("session service: rotate session: %w", err)
	}

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:    session.UserID,
		SessionID: session.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("session service: issue access token: %w", err)
	}

	return &SessionTokens{
		SessionID:    session.ID,
		AccessToken:  accessToken,
		RefreshToken: rotated,
		ExpiresAt:    now.Add(s.refreshTTL),
	}, nil
}

// RevokeSession marks a single session as revoked.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", now)
	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}
	return nil
}

// RevokeAllForUser revokes every active session belonging to the user.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) error {
	now := s.now()
	err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
	if err != nil {
		return fmt.Errorf("session service: revoke sessions: %w", err)
	}
	return nil
}

// CleanupExpired removes sessions that are expired or revoked. Intended for periodic jobs.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
