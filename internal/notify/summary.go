package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/pkg/logger"

	"github.com/actionable-app/actionable/internal/models"
)

const defaultSummarySpec = "0 20 * * *"

// SummaryJob writes the nightly per-user task digest into the notification
// history for every account that opted in.
type SummaryJob struct {
	db   *gorm.DB
	cron *cron.Cron
	spec string
	now  func() time.Time
	log  *zap.Logger
}

// SummaryOption customises SummaryJob construction.
type SummaryOption func(*SummaryJob)

// WithSummarySpec overrides the cron expression, primarily for tests.
func WithSummarySpec(spec string) SummaryOption {
	return func(j *SummaryJob) {
		if spec != "" {
			j.spec = spec
		}
	}
}

// WithSummaryClock overrides the time source, primarily for tests.
func WithSummaryClock(now func() time.Time) SummaryOption {
	return func(j *SummaryJob) {
		if now != nil {
			j.now = now
		}
	}
}

// NewSummaryJob constructs a SummaryJob.
func NewSummaryJob(db *gorm.DB, opts ...SummaryOption) (*SummaryJob, error) {
	if db == nil {
		return nil, errors.New("summary job: db is required")
	}

	job := &SummaryJob{
		db:   db,
		cron: cron.New(),
		spec: defaultSummarySpec,
		now:  time.Now,
		log:  logger.WithModule("summary"),
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// Start registers the cron entry and begins running.
func (j *SummaryJob) Start() error {
	_, err := j.cron.AddFunc(j.spec, func() {
		if err := j.RunOnce(context.Background()); err != nil {
			j.log.Error("daily summary run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("summary job: schedule: %w", err)
	}
	j.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for a running job to finish.
func (j *SummaryJob) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce produces a summary record for every opted-in user. Per-user
// failures are aggregated so one bad row does not starve the rest.
func (j *SummaryJob) RunOnce(ctx context.Context) error {
	var users []models.User
	err := j.db.WithContext(ctx).
		Where("daily_summary_enabled = ? AND is_active = ?", true, true).
		Find(&users).Error
	if err != nil {
		return fmt.Errorf("summary job: list users: %w", err)
	}

	var errs error
	for i := range users {
		if err := j.summarize(ctx, &users[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", users[i].ID, err))
		}
	}
	return errs
}

func (j *SummaryJob) summarize(ctx context.Context, user *models.User) error {
	now := j.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	var open, completedToday, dueTomorrow int64

	base := j.db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", user.ID)
	if err := base.Session(&gorm.Session{}).Where("completed = ?", false).Count(&open).Error; err != nil {
		return fmt.Errorf("count open: %w", err)
	}
	err := base.Session(&gorm.Session{}).
		Where("completed = ? AND updated_at >= ?", true, today).
		Count(&completedToday).Error
	if err != nil {
		return fmt.Errorf("count completed: %w", err)
	}
	err = base.Session(&gorm.Session{}).
		Where("completed = ? AND due_date >= ? AND due_date < ?", false, tomorrow, tomorrow.AddDate(0, 0, 1)).
		Count(&dueTomorrow).Error
	if err != nil {
		return fmt.Errorf("count due tomorrow: %w", err)
	}

	data, err := json.Marshal(map[string]any{
		"type":            KindDailySummary,
		"open":            open,
		"completed_today": completedToday,
		"due_tomorrow":    dueTomorrow,
	})
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	record := &models.NotificationRecord{
		UserID: user.ID,
		Title:  "Daily summary",
		Body:   fmt.Sprintf("%d open, %d done today, %d due tomorrow", open, completedToday, dueTomorrow),
		Data:   data,
	}
	if err := j.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}
