package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/actionable-app/actionable/internal/models"
)

// UpcomingLimit caps how many upcoming tasks the view returns.
const UpcomingLimit = 5

// UpcomingService serves the home-screen upcoming-tasks view.
type UpcomingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUpcomingService constructs an UpcomingService.
func NewUpcomingService(db *gorm.DB) (*UpcomingService, error) {
	if db == nil {
		return nil, errors.New("upcoming service: db is required")
	}
	return &UpcomingService{db: db, now: time.Now}, nil
}

// WithClock overrides the time source, primarily for tests.
func (s *UpcomingService) WithClock(now func() time.Time) *UpcomingService {
	if now != nil {
		s.now = now
	}
	return s
}

// Fetch returns up to five open tasks due between tomorrow and a week from
// today, soonest first. Tasks due later today are deliberately excluded; the
// view surfaces what is coming, not what is already on today's plate.
func (s *UpcomingService) Fetch(ctx context.Context, userID string) ([]models.Task, error) {
	start, end := s.Window()

	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, false).
		Where("due_date >= ? AND due_date <= ?", start, end).
		Order("due_date ASC").
		Limit(UpcomingLimit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("upcoming service: fetch: %w", err)
	}
	return tasks, nil
}

// Window returns the current view bounds: tomorrow at midnight through the end
// of the seventh day from today, in local time.
func (s *UpcomingService) Window() (start, end time.Time) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start = today.AddDate(0, 0, 1)
	end = today.AddDate(0, 0, 7).Add(24*time.Hour - time.Second)
	return start, end
}
