package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/actionable-app/actionable/pkg/logger"
	"github.com/actionable-app/actionable/pkg/metrics"

	"github.com/actionable-app/actionable/internal/cache"
	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/services"
)

const (
	logKey = "notifications"

	// maxStoredRecords caps the local notification log.
	maxStoredRecords = 50

	taskDueIDPrefix    = "task_due_"
	taskDueNowIDPrefix = "task_due_now_"
	dailySummaryPrefix = "daily_summary"

	dailySummaryHour = 20
)

// TokenSource obtains a push token from the hosting platform.
type TokenSource func(ctx context.Context) (string, error)

// Config bundles the collaborators a Service needs. Scheduler and KV are
// required; the rest are optional capabilities.
type Config struct {
	Scheduler Scheduler
	KV        cache.Store
	Tokens    *services.PushTokenService
	// Sandboxed marks runtimes without notification capability, where push
	// registration quietly returns nothing.
	Sandboxed   bool
	TokenSource TokenSource
	Clock       func() time.Time
}

// Service owns notification scheduling and the device-local notification log.
type Service struct {
	scheduler Scheduler
	kv        cache.Store
	tokens    *services.PushTokenService
	sandboxed bool
	tokenSrc  TokenSource
	now       func() time.Time
	log       *zap.Logger

	mu       sync.Mutex
	migrated bool
}

// NewService constructs a notification Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Scheduler == nil {
		return nil, errors.New("notify service: scheduler is required")
	}
	if cfg.KV == nil {
		return nil, errors.New("notify service: key-value store is required")
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		scheduler: cfg.Scheduler,
		kv:        cfg.KV,
		tokens:    cfg.Tokens,
		sandboxed: cfg.Sandboxed,
		tokenSrc:  cfg.TokenSource,
		now:       now,
		log:       logger.WithModule("notify"),
	}, nil
}

// Start runs the open-time log migration so the first reader sees repaired ids.
func (s *Service) Start(ctx context.Context) error {
	_, err := s.StoredNotifications(ctx)
	return err
}

// Stop shuts the scheduler down when it supports closing.
func (s *Service) Stop() {
	if closer, ok := s.scheduler.(interface{ Close() }); ok {
		closer.Close()
	}
}

// ScheduleTaskDue schedules the pair of reminders for a task with a due date:
// one an hour before, one at the due time. Identifiers are deterministic per
// task so rescheduling replaces rather than accumulates. A proactive log
// entry records the upcoming reminder.
func (s *Service) ScheduleTaskDue(ctx context.Context, task models.Task) ([]string, error) {
	if task.DueDate == nil {
		return nil, nil
	}

	now := s.now()
	due := *task.DueDate
	soon := due.Add(-time.Hour)

	var ids []string

	if soon.After(now) {
		id, err := s.scheduler.Schedule(Request{
			ID:    taskDueIDPrefix + task.ID,
			Title: "Task due soon",
			Body:  fmt.Sprintf("%q is due in 1 hour", task.Title),
			Data:  map[string]any{"type": KindTaskDue, "task_id": task.ID},
			At:    soon,
		})
		if err != nil {
			return nil, fmt.Errorf("notify service: schedule due-soon: %w", err)
		}
		ids = append(ids, id)
		metrics.NotificationsScheduled.WithLabelValues(KindTaskDue).Inc()
	}

	if due.After(now) {
		id, err := s.scheduler.Schedule(Request{
			ID:    taskDueNowIDPrefix + task.ID,
			Title: "Task due",
			Body:  fmt.Sprintf("%q is due now", task.Title),
			Data:  map[string]any{"type": KindTaskDue, "task_id": task.ID},
			At:    due,
		})
		if err != nil {
			return nil, fmt.Errorf("notify service: schedule due-now: %w", err)
		}
		ids = append(ids, id)
		metrics.NotificationsScheduled.WithLabelValues(KindTaskDue).Inc()
	}

	if len(ids) == 0 {
		return nil, nil
	}

	entry := Record{
		Title:     "Upcoming task",
		Body:      fmt.Sprintf("Reminder set for %q", task.Title),
		Data:      map[string]any{"type": KindUpcomingTask, "task_id": task.ID},
		Timestamp: soon.UnixMilli(),
	}
	if err := s.StoreLocally(ctx, entry); err != nil {
		s.log.Warn("store upcoming entry", zap.Error(err))
	}

	return ids, nil
}

// CancelTaskNotifications drops both reminders for the task. Cancelling a
// task that has none scheduled is a no-op.
func (s *Service) CancelTaskNotifications(ctx context.Context, taskID string) error {
	s.scheduler.Cancel(taskDueIDPrefix+taskID, taskDueNowIDPrefix+taskID)
	return nil
}

// ScheduleReminder schedules a free-form reminder and returns its platform id.
func (s *Service) ScheduleReminder(ctx context.Context, title, body string, at time.Time, repeat Repeat) (string, error) {
	id, err := s.scheduler.Schedule(Request{
		Title:  title,
		Body:   body,
		Data:   map[string]any{"type": KindReminder},
		At:     at,
		Repeat: repeat,
	})
	if err != nil {
		return "", fmt.Errorf("notify service: schedule reminder: %w", err)
	}
	metrics.NotificationsScheduled.WithLabelValues(KindReminder).Inc()
	return id, nil
}

// Snooze cancels the given notification and schedules a replacement the given
// number of minutes from now.
func (s *Service) Snooze(ctx context.Context, id, title, body string, minutes int) (string, error) {
	if minutes <= 0 {
		minutes = 10
	}
	s.scheduler.Cancel(id)

	at := s.now().Add(time.Duration(minutes) * time.Minute)
	newID, err := s.scheduler.Schedule(Request{
		Title: title,
		Body:  body,
		Data:  map[string]any{"type": KindReminderSnoozed, "snoozed_from": id},
		At:    at,
	})
	if err != nil {
		return "", fmt.Errorf("notify service: snooze: %w", err)
	}
	metrics.NotificationsScheduled.WithLabelValues(KindReminderSnoozed).Inc()

	entry := Record{
		Title:     title,
		Body:      fmt.Sprintf("Snoozed for %d minutes", minutes),
		Data:      map[string]any{"type": KindReminderSnoozed},
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.StoreLocally(ctx, entry); err != nil {
		s.log.Warn("store snooze entry", zap.Error(err))
	}

	return newID, nil
}

// ScheduleDailySummary keeps exactly one recurring 20:00 summary scheduled.
func (s *Service) ScheduleDailySummary(ctx context.Context) (string, error) {
	for _, id := range s.scheduler.Scheduled() {
		if strings.HasPrefix(id, dailySummaryPrefix) {
			return id, nil
		}
	}

	now := s.now()
	at := time.Date(now.Year(), now.Month(), now.Day(), dailySummaryHour, 0, 0, 0, now.Location())
	id, err := s.scheduler.Schedule(Request{
		ID:     dailySummaryPrefix,
		Title:  "Daily summary",
		Body:   "Here's how your day went",
		Data:   map[string]any{"type": KindDailySummary},
		At:     at,
		Repeat: RepeatDaily,
	})
	if err != nil {
		return "", fmt.Errorf("notify service: schedule daily summary: %w", err)
	}
	metrics.NotificationsScheduled.WithLabelValues(KindDailySummary).Inc()
	return id, nil
}

// CancelDailySummaries sweeps every scheduled id carrying the summary prefix.
func (s *Service) CancelDailySummaries(ctx context.Context) error {
	var ids []string
	for _, id := range s.scheduler.Scheduled() {
		if strings.HasPrefix(id, dailySummaryPrefix) {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		s.scheduler.Cancel(ids...)
	}
	return nil
}

// StoreLocally appends or updates a record in the local log. Records without
// an id get a synthetic one. The log stays newest-first and holds at most 50
// entries.
func (s *Service) StoreLocally(ctx context.Context, rec Record) error {
	records, err := s.readLog(ctx)
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().UnixMilli()
	}

	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append([]Record{rec}, records...)
	}
	if len(records) > maxStoredRecords {
		records = records[:maxStoredRecords]
	}

	return s.writeLog(ctx, records)
}

// StoredNotifications returns the local log. On the first read after open it
// repairs blank and duplicate ids in place; the repair is idempotent, so a
// crash between read and write loses nothing.
func (s *Service) StoredNotifications(ctx context.Context) ([]Record, error) {
	records, err := s.readLog(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	needsRepair := !s.migrated
	s.mu.Unlock()

	if needsRepair {
		repaired := repairIDs(records)
		if repaired > 0 {
			if err := s.writeLog(ctx, records); err != nil {
				return nil, err
			}
			s.log.Info("repaired notification log ids", zap.Int("records", repaired))
		}
		s.mu.Lock()
		s.migrated = true
		s.mu.Unlock()
	}

	return records, nil
}

// MarkRead flags the record with the given id as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	records, err := s.readLog(ctx)
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].ID == id {
			if records[i].Read {
				return nil
			}
			records[i].Read = true
			return s.writeLog(ctx, records)
		}
	}
	return nil
}

// ClearAll empties the local log.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.kv.Delete(ctx, logKey); err != nil {
		return fmt.Errorf("notify service: clear log: %w", err)
	}
	return nil
}

// RegisterForPush obtains a push token and persists it remotely and locally.
// Sandboxed runtimes return nil without error. A failure is terminal for this
// call; there is no retry.
func (s *Service) RegisterForPush(ctx context.Context, userID string) (*string, error) {
	if s.sandboxed || s.tokenSrc == nil {
		return nil, nil
	}

	token, err := s.tokenSrc(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify service: obtain push token: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	if s.tokens != nil {
		if _, err := s.tokens.Save(ctx, userID, token); err != nil {
			return nil, fmt.Errorf("notify service: persist push token: %w", err)
		}
	}
	if err := s.kv.Set(ctx, "push_token", []byte(token), 0); err != nil {
		return nil, fmt.Errorf("notify service: store push token: %w", err)
	}

	return &token, nil
}

// onFire lands a fired notification in the local log.
func (s *Service) onFire(req Request) {
	entry := Record{
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.StoreLocally(context.Background(), entry); err != nil {
		s.log.Warn("store fired notification", zap.Error(err))
	}
}

// Deliverer returns the callback that lands fired notifications in the log,
// for wiring into a LocalScheduler.
func (s *Service) Deliverer() Deliverer {
	return s.onFire
}

func (s *Service) readLog(ctx context.Context) ([]Record, error) {
	payload, found, err := s.kv.Get(ctx, logKey)
	if err != nil {
		return nil, fmt.Errorf("notify service: read log: %w", err)
	}
	if !found || len(payload) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("notify service: decode log: %w", err)
	}
	return records, nil
}

func (s *Service) writeLog(ctx context.Context, records []Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("notify service: encode log: %w", err)
	}
	if err := s.kv.Set(ctx, logKey, payload, 0); err != nil {
		return fmt.Errorf("notify service: write log: %w", err)
	}
	return nil
}

// repairIDs rewrites blank and duplicate ids so every record is individually
// addressable. Returns how many records changed.
func repairIDs(records []Record) int {
	seen := make(map[string]struct{}, len(records))
	repaired := 0
	for i := range records {
		id := records[i].ID
		if id == "" {
			id = uuid.NewString()
		} else if _, dup := seen[id]; dup {
			id = uuid.NewString()
		}
		if id != records[i].ID {
			records[i].ID = id
			repaired++
		}
		seen[id] = struct{}{}
	}
	return repaired
}
