package taskstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/actionable-app/actionable/internal/models"
)

func viewTask(id string, due *time.Time) models.Task {
	return models.Task{
		BaseModel: models.BaseModel{ID: id, CreatedAt: time.Now()},
		Title:     id,
		Priority:  models.PriorityMedium,
		DueDate:   due,
	}
}

func TestOverdueIsStrictlyPast(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	exact := now
	future := now.Add(time.Minute)

	done := viewTask("done", &past)
	done.Completed = true

	tasks := []models.Task{
		viewTask("past", &past),
		viewTask("exact", &exact),
		viewTask("future", &future),
		viewTask("none", nil),
		done,
	}

	overdue := Overdue(tasks, now)
	require.Len(t, overdue, 1)
	require.Equal(t, "past", overdue[0].ID)
}

func TestUpcomingWindowBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	inWindow := now.Add(7 * 24 * time.Hour)
	outOfWindow := inWindow.Add(time.Second)
	atNow := now

	tasks := []models.Task{
		viewTask("edge", &inWindow),
		viewTask("beyond", &outOfWindow),
		viewTask("now", &atNow),
	}

	upcoming := Upcoming(tasks, now, 7)
	require.Len(t, upcoming, 1)
	require.Equal(t, "edge", upcoming[0].ID)
}

func TestUpcomingExcludesCompleted(t *testing.T) {
	now := time.Now()
	due := now.Add(24 * time.Hour)
	done := viewTask("done", &due)
	done.Completed = true

	upcoming := Upcoming([]models.Task{done, viewTask("open", &due)}, now, 7)
	require.Len(t, upcoming, 1)
	require.Equal(t, "open", upcoming[0].ID)
}

func TestDueToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	night := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	tomorrow := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	tasks := []models.Task{
		viewTask("morning", &morning),
		viewTask("night", &night),
		viewTask("tomorrow", &tomorrow),
		viewTask("none", nil),
	}

	today := DueToday(tasks, now)
	require.Len(t, today, 2)
}

func TestByCategoryAndPriority(t *testing.T) {
	work := viewTask("work", nil)
	work.Category = models.CategoryWork
	health := viewTask("health", nil)
	health.Category = models.CategoryHealth
	health.Priority = models.PriorityHigh

	tasks := []models.Task{work, health}
	require.Len(t, ByCategory(tasks, models.CategoryWork), 1)
	require.Len(t, ByPriority(tasks, models.PriorityHigh), 1)
	require.Empty(t, ByCategory(tasks, models.CategoryTravel))
}

func TestSortedDueDateNilAlwaysLast(t *testing.T) {
	early := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)

	tasks := []models.Task{
		viewTask("none", nil),
		viewTask("late", &late),
		viewTask("early", &early),
	}

	asc := Sorted(tasks, SortDueDate, false)
	require.Equal(t, []string{"early", "late", "none"}, []string{asc[0].ID, asc[1].ID, asc[2].ID})

	desc := Sorted(tasks, SortDueDate, true)
	require.Equal(t, []string{"late", "early", "none"}, []string{desc[0].ID, desc[1].ID, desc[2].ID})
}

func TestSortedPriorityRank(t *testing.T) {
	low := viewTask("low", nil)
	low.Priority = models.PriorityLow
	high := viewTask("high", nil)
	high.Priority = models.PriorityHigh
	medium := viewTask("medium", nil)

	sorted := Sorted([]models.Task{low, medium, high}, SortPriority, true)
	require.Equal(t, "high", sorted[0].ID)
	require.Equal(t, "medium", sorted[1].ID)
	require.Equal(t, "low", sorted[2].ID)
}

func TestSortedTitleCaseInsensitive(t *testing.T) {
	a := viewTask("1", nil)
	a.Title = "apple"
	b := viewTask("2", nil)
	b.Title = "Banana"

	sorted := Sorted([]models.Task{b, a}, SortTitle, false)
	require.Equal(t, "apple", sorted[0].Title)
	require.Equal(t, "Banana", sorted[1].Title)
}

func TestSortedDoesNotMutateInput(t *testing.T) {
	early := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	tasks := []models.Task{viewTask("none", nil), viewTask("early", &early)}

	_ = Sorted(tasks, SortDueDate, false)
	require.Equal(t, "none", tasks[0].ID)
}
