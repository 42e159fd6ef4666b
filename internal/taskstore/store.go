package taskstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/actionable-app/actionable/pkg/errors"
	"github.com/actionable-app/actionable/pkg/logger"

	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/realtime"
)

// Draft carries the fields for a new task.
type Draft struct {
	Title       string
	Description string
	Category    models.TaskCategory
	Priority    models.TaskPriority
	DueDate     *time.Time
}

// Patch carries partial task updates. Nil pointers leave fields untouched.
type Patch struct {
	Title        *string
	Description  *string
	Category     *models.TaskCategory
	Priority     *models.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// Remote is the backend the store syncs a single user's tasks against.
type Remote interface {
	Fetch(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, task models.Task) (*models.Task, error)
	Update(ctx context.Context, id string, patch Patch) (*models.Task, error)
	Toggle(ctx context.Context, id string, completed bool) error
	Delete(ctx context.Context, id string) error
	DeleteCompleted(ctx context.Context) error
	MarkAllComplete(ctx context.Context) error
}

// Notifier manages the due-date notifications tied to tasks. The store calls
// it on the mutations that change whether a task needs reminders.
type Notifier interface {
	ScheduleTaskDue(ctx context.Context, task models.Task) error
	CancelTaskNotifications(ctx context.Context, taskID string) error
}

// Store keeps an in-memory, newest-first copy of the user's tasks and applies
// mutations optimistically: the local row changes first, the remote call
// follows, and a failed call rolls the row back only if it still holds the
// optimistic value. Realtime change events reconcile the copy afterwards.
type Store struct {
	mu       sync.Mutex
	tasks    []models.Task
	remote   Remote
	notifier Notifier
	lastErr  string
	log      *zap.Logger
}

// New constructs a Store. The notifier may be nil when the host platform has
// no notification capability.
func New(remote Remote, notifier Notifier) *Store {
	return &Store{
		remote:   remote,
		notifier: notifier,
		log:      logger.WithModule("taskstore"),
	}
}

// Tasks returns a snapshot of the current collection, newest first.
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// LastError reports the message of the most recent failed operation, or the
// empty string if none failed since the last successful Fetch.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Fetch replaces the collection with the remote's current state.
func (s *Store) Fetch(ctx context.Context) error {
	tasks, err := s.remote.Fetch(ctx)
	if err != nil {
		s.fail("fetch", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks
	s.lastErr = ""
	return nil
}

// Add creates a task optimistically. An empty title is rejected locally and
// the remote is never called.
func (s *Store) Add(ctx context.Context, draft Draft) (bool, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		err := apperrors.NewBadRequest("Title is required")
		s.fail("add", err)
		return false, err
	}
	if draft.Category == "" {
		draft.Category = models.DefaultCategory
	}
	if draft.Priority == "" {
		draft.Priority = models.DefaultPriority
	}
	if !draft.Category.Valid() {
		err := apperrors.NewBadRequest("Unknown category")
		s.fail("add", err)
		return false, err
	}
	if !draft.Priority.Valid() {
		err := apperrors.NewBadRequest("Unknown priority")
		s.fail("add", err)
		return false, err
	}

	optimistic := models.Task{
		BaseModel:   models.BaseModel{ID: uuid.NewString(), CreatedAt: time.Now()},
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
		TimeLabel:   models.DeriveTimeLabel(draft.DueDate),
	}

	s.mu.Lock()
	s.tasks = append([]models.Task{optimistic}, s.tasks...)
	s.mu.Unlock()

	created, err := s.remote.Create(ctx, optimistic)
	if err != nil {
		s.removeIfUnchanged(optimistic.ID, optimistic)
		s.fail("add", err)
		return false, err
	}

	s.mu.Lock()
	if i := s.index(optimistic.ID); i >= 0 {
		s.tasks[i] = *created
	} else if s.index(created.ID) < 0 {
		s.tasks = append([]models.Task{*created}, s.tasks...)
	}
	s.lastErr = ""
	s.mu.Unlock()

	if created.DueDate != nil && !created.Completed {
		s.notifyScheduleDue(ctx, *created)
	}
	return true, nil
}

// Toggle flips a task's completed flag optimistically. Completing a task
// cancels its due notifications; reopening a task with a due date reschedules
// them.
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false, apperrors.ErrNotFound
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	after := s.tasks[i]
	s.mu.Unlock()

	if err := s.remote.Toggle(ctx, id, after.Completed); err != nil {
		s.revertIfUnchanged(id, after, func(t *models.Task) {
			t.Completed = !after.Completed
		})
		s.fail("toggle", err)
		return false, err
	}

	s.clearError()
	if after.DueDate != nil {
		if after.Completed {
			s.notifyCancel(ctx, id)
		} else {
			s.notifyScheduleDue(ctx, after)
		}
	}
	return true, nil
}

// Update applies a partial update optimistically. An empty title is rejected
// locally and the remote is never called.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (bool, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		err := apperrors.NewBadRequest("Title is required")
		s.fail("update", err)
		return false, err
	}
	if patch.Category != nil && !patch.Category.Valid() {
		err := apperrors.NewBadRequest("Unknown category")
		s.fail("update", err)
		return false, err
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		err := apperrors.NewBadRequest("Unknown priority")
		s.fail("update", err)
		return false, err
	}

	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false, apperrors.ErrNotFound
	}
	before := s.tasks[i]
	applyPatch(&s.tasks[i], patch)
	after := s.tasks[i]
	s.mu.Unlock()

	updated, err := s.remote.Update(ctx, id, patch)
	if err != nil {
		s.revertIfUnchanged(id, after, func(t *models.Task) { *t = before })
		s.fail("update", err)
		return false, err
	}

	s.mu.Lock()
	if i := s.index(id); i >= 0 {
		s.tasks[i] = *updated
	}
	s.lastErr = ""
	s.mu.Unlock()

	// A due-date change moves the reminders with it.
	if patch.DueDate != nil || patch.ClearDueDate {
		s.notifyCancel(ctx, id)
		if updated.DueDate != nil && !updated.Completed {
			s.notifyScheduleDue(ctx, *updated)
		}
	}
	return true, nil
}

// Delete removes a task optimistically and cancels its notifications once the
// remote confirms.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false, apperrors.ErrNotFound
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.mu.Unlock()

	if err := s.remote.Delete(ctx, id); err != nil {
		s.restoreByCreatedAt(removed)
		s.fail("delete", err)
		return false, err
	}

	s.clearError()
	s.notifyCancel(ctx, id)
	return true, nil
}

// DeleteCompleted removes every completed task optimistically.
func (s *Store) DeleteCompleted(ctx context.Context) (bool, error) {
	s.mu.Lock()
	var kept []models.Task
	var removed []models.Task
	for _, t := range s.tasks {
		if t.Completed {
			removed = append(removed, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.mu.Unlock()

	if len(removed) == 0 {
		return true, nil
	}

	if err := s.remote.DeleteCompleted(ctx); err != nil {
		s.mu.Lock()
		for _, t := range removed {
			if s.index(t.ID) < 0 {
				s.tasks = append(s.tasks, t)
			}
		}
		s.mu.Unlock()
		s.fail("delete completed", err)
		return false, err
	}

	s.clearError()
	for _, t := range removed {
		s.notifyCancel(ctx, t.ID)
	}
	return true, nil
}

// MarkAllComplete marks every open task as completed optimistically and
// cancels the due notifications of the tasks it closed.
func (s *Store) MarkAllComplete(ctx context.Context) (bool, error) {
	s.mu.Lock()
	var closed []string
	for i := range s.tasks {
		if !s.tasks[i].Completed {
			s.tasks[i].Completed = true
			closed = append(closed, s.tasks[i].ID)
		}
	}
	s.mu.Unlock()

	if len(closed) == 0 {
		return true, nil
	}

	if err := s.remote.MarkAllComplete(ctx); err != nil {
		s.mu.Lock()
		for _, id := range closed {
			if i := s.index(id); i >= 0 && s.tasks[i].Completed {
				s.tasks[i].Completed = false
			}
		}
		s.mu.Unlock()
		s.fail("mark all complete", err)
		return false, err
	}

	s.clearError()
	for _, id := range closed {
		s.notifyCancel(ctx, id)
	}
	return true, nil
}

// Apply reconciles a realtime change event into the collection. Inserts that
// collide with an existing id are skipped so an optimistic row is never
// duplicated by its own echo.
func (s *Store) Apply(event realtime.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Op {
	case realtime.OpInsert:
		if event.Task == nil || s.index(event.Task.ID) >= 0 {
			return
		}
		s.tasks = append([]models.Task{*event.Task}, s.tasks...)
	case realtime.OpUpdate:
		if event.Task == nil {
			return
		}
		if i := s.index(event.Task.ID); i >= 0 {
			s.tasks[i] = *event.Task
		}
	case realtime.OpDelete:
		if i := s.index(event.TaskID); i >= 0 {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		}
	}
}

// index returns the position of the task with the given id. Callers hold the lock.
func (s *Store) index(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// revertIfUnchanged rolls a row back only while it still holds the optimistic
// value; a realtime event that already corrected the row wins.
func (s *Store) revertIfUnchanged(id string, optimistic models.Task, revert func(*models.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(id); i >= 0 && s.tasks[i].Completed == optimistic.Completed &&
		s.tasks[i].UpdatedAt.Equal(optimistic.UpdatedAt) {
		revert(&s.tasks[i])
	}
}

// restoreByCreatedAt puts a removed row back at the position its creation time
// dictates in the newest-first order. The index it was removed from may be
// stale by now; realtime events can reshape the collection during the remote
// call.
func (s *Store) restoreByCreatedAt(removed models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(removed.ID) >= 0 {
		return
	}

	pos := len(s.tasks)
	for j := range s.tasks {
		if s.tasks[j].CreatedAt.Before(removed.CreatedAt) {
			pos = j
			break
		}
	}
	s.tasks = append(s.tasks[:pos:pos], append([]models.Task{removed}, s.tasks[pos:]...)...)
}

func (s *Store) removeIfUnchanged(id string, optimistic models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(id); i >= 0 && s.tasks[i].UpdatedAt.Equal(optimistic.UpdatedAt) {
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	}
}

func (s *Store) fail(op string, err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.log.Warn("operation failed", zap.String("op", op), zap.Error(err))
}

func (s *Store) clearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Store) notifyScheduleDue(ctx context.Context, task models.Task) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ScheduleTaskDue(ctx, task); err != nil {
		s.log.Warn("schedule due notifications", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (s *Store) notifyCancel(ctx context.Context, taskID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.CancelTaskNotifications(ctx, taskID); err != nil {
		s.log.Warn("cancel due notifications", zap.String("task_id", taskID), zap.Error(err))
	}
}

func applyPatch(task *models.Task, patch Patch) {
	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Category != nil {
		task.Category = *patch.Category
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.ClearDueDate {
		task.DueDate = nil
		task.TimeLabel = models.NoTimeLabel
	} else if patch.DueDate != nil {
		task.DueDate = patch.DueDate
		task.TimeLabel = models.DeriveTimeLabel(patch.DueDate)
	}
}
