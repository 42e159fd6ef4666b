package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/actionable-app/actionable/pkg/errors"
	"github.com/actionable-app/actionable/pkg/logger"
	"github.com/actionable-app/actionable/pkg/metrics"

	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/realtime"
)

// CreateTaskInput carries the fields accepted when creating a task.
type CreateTaskInput struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description"`
	Category    models.TaskCategory `json:"category"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
}

// UpdateTaskInput carries partial updates. Nil pointers leave fields untouched.
type UpdateTaskInput struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Category     *models.TaskCategory `json:"category"`
	Priority     *models.TaskPriority `json:"priority"`
	Completed    *bool                `json:"completed"`
	DueDate      *time.Time           `json:"due_date"`
	ClearDueDate bool                 `json:"clear_due_date"`
}

// DueFilter selects tasks by the relationship of their due date to now.
type DueFilter string

const (
	DueAny      DueFilter = ""
	DueToday    DueFilter = "today"
	DueOverdue  DueFilter = "overdue"
	DueUpcoming DueFilter = "upcoming"
)

// ListTasksOptions narrows and orders the task list.
type ListTasksOptions struct {
	Category     models.TaskCategory
	Priority     models.TaskPriority
	Due          DueFilter
	UpcomingDays int
	SortBy       string // created_at | due_date | priority | title
	SortDesc     bool
}

// TaskService implements owner-scoped task CRUD and publishes change events.
type TaskService struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
	log *zap.Logger
}

// NewTaskService constructs a TaskService. The hub may be nil in contexts that
// do not serve realtime clients, such as batch jobs.
func NewTaskService(db *gorm.DB, hub *realtime.Hub) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	return &TaskService{
		db:  db,
		hub: hub,
		now: time.Now,
		log: logger.WithModule("tasks"),
	}, nil
}

// WithClock overrides the time source, primarily for tests.
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	if now != nil {
		s.now = now
	}
	return s
}

// List returns the user's tasks newest first, optionally filtered and re-sorted.
func (s *TaskService) List(ctx context.Context, userID string, opts ListTasksOptions) ([]models.Task, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)

	if opts.Category != "" {
		if !opts.Category.Valid() {
			return nil, apperrors.NewBadRequest("Unknown category")
		}
		query = query.Where("category = ?", opts.Category)
	}
	if opts.Priority != "" {
		if !opts.Priority.Valid() {
			return nil, apperrors.NewBadRequest("Unknown priority")
		}
		query = query.Where("priority = ?", opts.Priority)
	}

	now := s.now()
	switch opts.Due {
	case DueAny:
	case DueToday:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		query = query.Where("due_date >= ? AND due_date < ?", start, start.AddDate(0, 0, 1))
	case DueOverdue:
		query = query.
			Where("completed = ?", false).
			Where("due_date IS NOT NULL AND due_date < ?", now)
	case DueUpcoming:
		days := opts.UpcomingDays
		if days <= 0 {
			days = 7
		}
		query = query.
			Where("completed = ?", false).
			Where("due_date > ? AND due_date <= ?", now, now.Add(time.Duration(days)*24*time.Hour))
	default:
		return nil, apperrors.NewBadRequest("Unknown due filter")
	}

	order, err := taskOrderClause(opts.SortBy, opts.SortDesc)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := query.Order(order).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task service: list tasks: %w", err)
	}
	return tasks, nil
}

// Get loads a single task owned by the user.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", taskID, userID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}
	return &task, nil
}

// Create validates and persists a new task, then broadcasts an insert event.
func (s *TaskService) Create(ctx context.Context, userID string, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		metrics.TaskMutations.WithLabelValues("create", "rejected").Inc()
		return nil, apperrors.NewBadRequest("Title is required")
	}

	category := input.Category
	if category == "" {
		category = models.DefaultCategory
	}
	if !category.Valid() {
		metrics.TaskMutations.WithLabelValues("create", "rejected").Inc()
		return nil, apperrors.NewBadRequest("Unknown category")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.DefaultPriority
	}
	if !priority.Valid() {
		metrics.TaskMutations.WithLabelValues("create", "rejected").Inc()
		return nil, apperrors.NewBadRequest("Unknown priority")
	}

	task := &models.Task{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Category:    category,
		Priority:    priority,
		DueDate:     input.DueDate,
		TimeLabel:   models.DeriveTimeLabel(input.DueDate),
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		metrics.TaskMutations.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("task service: create task: %w", err)
	}

	metrics.TaskMutations.WithLabelValues("create", "success").Inc()
	s.publish(userID, realtime.ChangeEvent{Op: realtime.OpInsert, TaskID: task.ID, Task: task})
	return task, nil
}

// Update applies a partial update to a task owned by the user.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			metrics.TaskMutations.WithLabelValues("update", "rejected").Inc()
			return nil, apperrors.NewBadRequest("Title is required")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		if !input.Category.Valid() {
			metrics.TaskMutations.WithLabelValues("update", "rejected").Inc()
			return nil, apperrors.NewBadRequest("Unknown category")
		}
		updates["category"] = *input.Category
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			metrics.TaskMutations.WithLabelValues("update", "rejected").Inc()
			return nil, apperrors.NewBadRequest("Unknown priority")
		}
		updates["priority"] = *input.Priority
	}
	if input.Completed != nil {
		updates["completed"] = *input.Completed
	}
	if input.ClearDueDate {
		updates["due_date"] = nil
		updates["time"] = models.NoTimeLabel
	} else if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
		updates["time"] = models.DeriveTimeLabel(input.DueDate)
	}

	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		metrics.TaskMutations.WithLabelValues("update", "error").Inc()
		return nil, fmt.Errorf("task service: update task: %w", err)
	}

	metrics.TaskMutations.WithLabelValues("update", "success").Inc()
	s.publish(userID, realtime.ChangeEvent{Op: realtime.OpUpdate, TaskID: task.ID, Task: task})
	return task, nil
}

// Toggle flips the completed flag and returns the updated task.
func (s *TaskService) Toggle(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	task.Completed = !task.Completed
	if err := s.db.WithContext(ctx).Model(task).Update("completed", task.Completed).Error; err != nil {
		metrics.TaskMutations.WithLabelValues("toggle", "error").Inc()
		return nil, fmt.Errorf("task service: toggle task: %w", err)
	}

	metrics.TaskMutations.WithLabelValues("toggle", "success").Inc()
	s.publish(userID, realtime.ChangeEvent{Op: realtime.OpUpdate, TaskID: task.ID, Task: task})
	return task, nil
}

// Delete removes a task owned by the user.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", taskID, userID).
		Delete(&models.Task{})
	if result.Error != nil {
		metrics.TaskMutations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("task service: delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	metrics.TaskMutations.WithLabelValues("delete", "success").Inc()
	s.publish(userID, realtime.ChangeEvent{Op: realtime.OpDelete, TaskID: taskID})
	return nil
}

// DeleteCompleted removes every completed task and reports how many went away.
func (s *TaskService) DeleteCompleted(ctx context.Context, userID string) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("task service: list completed: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&models.Task{})
	if result.Error != nil {
		metrics.TaskMutations.WithLabelValues("delete_completed", "error").Inc()
		return 0, fmt.Errorf("task service: delete completed: %w", result.Error)
	}

	metrics.TaskMutations.WithLabelValues("delete_completed", "success").Inc()
	for _, id := range ids {
		s.publish(userID, realtime.ChangeEvent{Op: realtime.OpDelete, TaskID: id})
	}
	return result.RowsAffected, nil
}

// MarkAllComplete marks every open task as completed.
func (s *TaskService) MarkAllComplete(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("user_id = ? AND completed = ?", userID, false).
		Update("completed", true)
	if result.Error != nil {
		metrics.TaskMutations.WithLabelValues("complete_all", "error").Inc()
		return 0, fmt.Errorf("task service: mark all complete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}

	metrics.TaskMutations.WithLabelValues("complete_all", "success").Inc()

	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, true).
		Find(&tasks).Error
	if err != nil {
		s.log.Warn("load tasks after bulk complete", zap.Error(err))
		return result.RowsAffected, nil
	}
	for i := range tasks {
		s.publish(userID, realtime.ChangeEvent{Op: realtime.OpUpdate, TaskID: tasks[i].ID, Task: &tasks[i]})
	}
	return result.RowsAffected, nil
}

func (s *TaskService) publish(userID string, event realtime.ChangeEvent) {
	if s.hub == nil {
		return
	}
	s.hub.PublishTaskChange(userID, event)
}

func taskOrderClause(sortBy string, desc bool) (string, error) {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	switch sortBy {
	case "", "created_at":
		if sortBy == "" {
			return "created_at DESC", nil
		}
		return "created_at " + dir, nil
	case "title":
		return "title " + dir, nil
	case "due_date":
		// Tasks without a due date always sort last.
		return "due_date IS NULL ASC, due_date " + dir, nil
	case "priority":
		// Rank high over medium over low regardless of lexical order.
		if desc {
			return "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC", nil
		}
		return "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END ASC", nil
	default:
		return "", apperrors.NewBadRequest("Unknown sort field")
	}
}
