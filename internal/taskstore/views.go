package taskstore

import (
	"sort"
	"strings"
	"time"

	"github.com/actionable-app/actionable/internal/models"
)

// ByCategory returns the tasks in the given category, preserving order.
func ByCategory(tasks []models.Task, category models.TaskCategory) []models.Task {
	return filter(tasks, func(t *models.Task) bool {
		return t.Category == category
	})
}

// ByPriority returns the tasks at the given priority, preserving order.
func ByPriority(tasks []models.Task, priority models.TaskPriority) []models.Task {
	return filter(tasks, func(t *models.Task) bool {
		return t.Priority == priority
	})
}

// DueToday returns tasks whose due date falls on the current local day.
func DueToday(tasks []models.Task, now time.Time) []models.Task {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	return filter(tasks, func(t *models.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(start) && t.DueDate.Before(end)
	})
}

// Overdue returns open tasks whose due date is strictly in the past. A task
// due exactly now is not overdue yet.
func Overdue(tasks []models.Task, now time.Time) []models.Task {
	return filter(tasks, func(t *models.Task) bool {
		return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
	})
}

// Upcoming returns open tasks due within the next `days` days. The window is
// half-open: a task due exactly now is excluded, a task due exactly at the
// boundary is included.
func Upcoming(tasks []models.Task, now time.Time, days int) []models.Task {
	if days <= 0 {
		days = 7
	}
	end := now.Add(time.Duration(days) * 24 * time.Hour)
	return filter(tasks, func(t *models.Task) bool {
		return !t.Completed && t.DueDate != nil && t.DueDate.After(now) && !t.DueDate.After(end)
	})
}

// SortField names a task attribute the collection can be ordered by.
type SortField string

const (
	SortCreated  SortField = "created_at"
	SortDueDate  SortField = "due_date"
	SortPriority SortField = "priority"
	SortTitle    SortField = "title"
)

// Sorted returns a copy of the tasks ordered by the given field. Tasks without
// a due date always sort after dated ones, and priority ranks high over medium
// over low rather than alphabetically.
func Sorted(tasks []models.Task, field SortField, desc bool) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)

	less := func(a, b *models.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch field {
	case SortDueDate:
		less = func(a, b *models.Task) bool {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return false
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				if desc {
					return a.DueDate.After(*b.DueDate)
				}
				return a.DueDate.Before(*b.DueDate)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
		return out
	case SortPriority:
		less = func(a, b *models.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortTitle:
		less = func(a, b *models.Task) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case SortCreated:
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(&out[j], &out[i])
		}
		return less(&out[i], &out[j])
	})
	return out
}

func filter(tasks []models.Task, keep func(*models.Task) bool) []models.Task {
	var out []models.Task
	for i := range tasks {
		if keep(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}
