package taskstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/realtime"
)

type fakeUpcomingRemote struct {
	tasks []models.Task
	err   error
}

func (r *fakeUpcomingRemote) FetchUpcoming(ctx context.Context) ([]models.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.Task, len(r.tasks))
	copy(out, r.tasks)
	return out, nil
}

func fixedNow() time.Time {
	// A Tuesday.
	return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
}

func upcomingTask(id string, due time.Time) models.Task {
	t := viewTask(id, &due)
	t.Title = id
	return t
}

func TestUpcomingViewRefreshTrimsToLimit(t *testing.T) {
	now := fixedNow()
	var tasks []models.Task
	for i := 0; i < 8; i++ {
		tasks = append(tasks, upcomingTask(fmt.Sprintf("t%d", i), now.AddDate(0, 0, i%6+1)))
	}

	view := NewUpcomingView(&fakeUpcomingRemote{tasks: tasks}).WithClock(fixedNow)
	require.NoError(t, view.Refresh(context.Background()))
	require.Len(t, view.Tasks(), UpcomingLimit)
}

func TestUpcomingViewApplyInsertKeepsOrderAndLimit(t *testing.T) {
	now := fixedNow()
	view := NewUpcomingView(&fakeUpcomingRemote{}).WithClock(fixedNow)

	for i := 5; i >= 1; i-- {
		task := upcomingTask(fmt.Sprintf("t%d", i), now.AddDate(0, 0, i))
		view.Apply(realtime.ChangeEvent{Op: realtime.OpInsert, TaskID: task.ID, Task: &task})
	}

	tasks := view.Tasks()
	require.Len(t, tasks, 5)
	require.Equal(t, "t1", tasks[0].ID)
	require.Equal(t, "t5", tasks[4].ID)

	// A sixth, sooner task pushes the latest one out.
	soon := upcomingTask("soon", now.AddDate(0, 0, 1).Add(time.Hour))
	view.Apply(realtime.ChangeEvent{Op: realtime.OpInsert, TaskID: soon.ID, Task: &soon})

	tasks = view.Tasks()
	require.Len(t, tasks, UpcomingLimit)
	require.Equal(t, "t1", tasks[0].ID)
	require.Equal(t, "soon", tasks[1].ID)
	for _, task := range tasks {
		require.NotEqual(t, "t5", task.ID)
	}
}

func TestUpcomingViewWindowBounds(t *testing.T) {
	now := fixedNow()
	view := NewUpcomingView(&fakeUpcomingRemote{}).WithClock(fixedNow)

	cases := []struct {
		name string
		due  time.Time
		in   bool
	}{
		{"later today", now.Add(time.Hour), false},
		{"tomorrow midnight", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), true},
		{"end of window", time.Date(2026, 3, 17, 23, 59, 59, 0, time.UTC), true},
		{"past window", time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		task := upcomingTask(tc.name, tc.due)
		view.Apply(realtime.ChangeEvent{Op: realtime.OpInsert, TaskID: task.ID, Task: &task})
	}

	tasks := view.Tasks()
	require.Len(t, tasks, 2)
	require.Equal(t, "tomorrow midnight", tasks[0].ID)
	require.Equal(t, "end of window", tasks[1].ID)
}

func TestUpcomingViewApplyUpdateRemovesWhenOutOfWindow(t *testing.T) {
	now := fixedNow()
	task := upcomingTask("t1", now.AddDate(0, 0, 2))
	view := NewUpcomingView(&fakeUpcomingRemote{tasks: []models.Task{task}}).WithClock(fixedNow)
	require.NoError(t, view.Refresh(context.Background()))
	require.Len(t, view.Tasks(), 1)

	completed := task
	completed.Completed = true
	view.Apply(realtime.ChangeEvent{Op: realtime.OpUpdate, TaskID: "t1", Task: &completed})
	require.Empty(t, view.Tasks())
}

func TestUpcomingViewApplyDelete(t *testing.T) {
	now := fixedNow()
	task := upcomingTask("t1", now.AddDate(0, 0, 2))
	view := NewUpcomingView(&fakeUpcomingRemote{tasks: []models.Task{task}}).WithClock(fixedNow)
	require.NoError(t, view.Refresh(context.Background()))

	view.Apply(realtime.ChangeEvent{Op: realtime.OpDelete, TaskID: "t1"})
	require.Empty(t, view.Tasks())
}

func TestPresentLabels(t *testing.T) {
	now := fixedNow()

	today := now.Add(2 * time.Hour)
	require.Equal(t, "Today, 5:00 PM", Present(upcomingTask("a", today), now).DueLabel)

	tomorrow := now.AddDate(0, 0, 1)
	require.Equal(t, "Tomorrow, 3:00 PM", Present(upcomingTask("b", tomorrow), now).DueLabel)

	friday := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "Friday", Present(upcomingTask("c", friday), now).DueLabel)

	nextMonth := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "Apr 2", Present(upcomingTask("d", nextMonth), now).DueLabel)

	require.Equal(t, models.NoTimeLabel, Present(viewTask("e", nil), now).DueLabel)
}

func TestPresentUrgencyAndColors(t *testing.T) {
	now := fixedNow()
	soon := now.Add(3 * time.Hour)

	task := upcomingTask("t1", soon)
	task.Category = models.CategoryHealth
	task.Priority = models.PriorityHigh

	p := Present(task, now)
	require.True(t, p.Urgent)
	require.Equal(t, 3, p.HoursUntilDue)
	require.Equal(t, "fitness", p.CategoryIcon)
	require.Equal(t, "#EF4444", p.CategoryColor)
	require.Equal(t, "#EF4444", p.PriorityColor)

	task.Priority = models.PriorityLow
	p = Present(task, now)
	require.False(t, p.Urgent)
	require.Equal(t, "#10B981", p.PriorityColor)

	farOut := upcomingTask("t2", now.AddDate(0, 0, 3))
	farOut.Priority = models.PriorityHigh
	require.False(t, Present(farOut, now).Urgent)
}
