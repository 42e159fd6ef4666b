package taskstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/actionable-app/actionable/pkg/logger"

	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/realtime"
)

// UpcomingLimit caps how many tasks the upcoming view holds.
const UpcomingLimit = 5

// UpcomingRemote fetches the windowed upcoming tasks for the current user.
type UpcomingRemote interface {
	FetchUpcoming(ctx context.Context) ([]models.Task, error)
}

// UpcomingView maintains the home-screen list of at most five open tasks due
// between tomorrow and a week from today. Realtime events keep it current
// between refreshes; a timer re-evaluates the window as days roll over.
type UpcomingView struct {
	mu     sync.Mutex
	tasks  []models.Task
	remote UpcomingRemote
	now    func() time.Time
	log    *zap.Logger
}

// NewUpcomingView constructs an UpcomingView.
func NewUpcomingView(remote UpcomingRemote) *UpcomingView {
	return &UpcomingView{
		remote: remote,
		now:    time.Now,
		log:    logger.WithModule("upcoming"),
	}
}

// WithClock overrides the time source, primarily for tests.
func (v *UpcomingView) WithClock(now func() time.Time) *UpcomingView {
	if now != nil {
		v.now = now
	}
	return v
}

// Tasks returns a snapshot of the view, soonest due first.
func (v *UpcomingView) Tasks() []models.Task {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]models.Task, len(v.tasks))
	copy(out, v.tasks)
	return out
}

// Refresh reloads the view from the remote.
func (v *UpcomingView) Refresh(ctx context.Context) error {
	tasks, err := v.remote.FetchUpcoming(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if len(tasks) > UpcomingLimit {
		tasks = tasks[:UpcomingLimit]
	}
	v.tasks = tasks
	return nil
}

// Apply reconciles a task change event. Inserts and updates re-apply the
// window predicate, so a task edited out of the window disappears from the
// view; deletes remove by id.
func (v *UpcomingView) Apply(event realtime.ChangeEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch event.Op {
	case realtime.OpInsert, realtime.OpUpdate:
		if event.Task == nil {
			return
		}
		v.removeLocked(event.Task.ID)
		if v.inWindow(event.Task) {
			v.tasks = append(v.tasks, *event.Task)
			v.settleLocked()
		}
	case realtime.OpDelete:
		v.removeLocked(event.TaskID)
	}
}

// Start refreshes the view hourly, with an extra refresh aligned to midnight
// so day-relative labels and the window bounds roll over on time. It blocks
// until the context is cancelled.
func (v *UpcomingView) Start(ctx context.Context) {
	hourly := time.NewTicker(time.Hour)
	defer hourly.Stop()

	rollover := time.NewTimer(v.untilMidnight())
	defer rollover.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hourly.C:
		case <-rollover.C:
			rollover.Reset(24 * time.Hour)
		}
		if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
			v.log.Warn("refresh failed", zap.Error(err))
		}
	}
}

func (v *UpcomingView) untilMidnight() time.Duration {
	now := v.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}

func (v *UpcomingView) inWindow(task *models.Task) bool {
	if task.Completed || task.DueDate == nil {
		return false
	}
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, 1)
	end := today.AddDate(0, 0, 7).Add(24*time.Hour - time.Second)
	return !task.DueDate.Before(start) && !task.DueDate.After(end)
}

func (v *UpcomingView) removeLocked(id string) {
	for i := range v.tasks {
		if v.tasks[i].ID == id {
			v.tasks = append(v.tasks[:i:i], v.tasks[i+1:]...)
			return
		}
	}
}

func (v *UpcomingView) settleLocked() {
	sort.SliceStable(v.tasks, func(i, j int) bool {
		return v.tasks[i].DueDate.Before(*v.tasks[j].DueDate)
	})
	if len(v.tasks) > UpcomingLimit {
		v.tasks = v.tasks[:UpcomingLimit]
	}
}

// Presentation enriches a task with the display attributes the upcoming list
// renders.
type Presentation struct {
	Task          models.Task `json:"task"`
	DueLabel      string      `json:"due_label"`
	CategoryIcon  string      `json:"category_icon"`
	CategoryColor string      `json:"category_color"`
	PriorityColor string      `json:"priority_color"`
	Urgent        bool        `json:"urgent"`
	HoursUntilDue int         `json:"hours_until_due"`
}

var categoryIcons = map[models.TaskCategory]string{
	models.CategoryWork:     "briefcase",
	models.CategoryPersonal: "person",
	models.CategoryShopping: "cart",
	models.CategoryHealth:   "fitness",
	models.CategoryStudy:    "book",
	models.CategoryTravel:   "airplane",
}

var categoryColors = map[models.TaskCategory]string{
	models.CategoryWork:     "#3B82F6",
	models.CategoryPersonal: "#8B5CF6",
	models.CategoryShopping: "#F59E0B",
	models.CategoryHealth:   "#EF4444",
	models.CategoryStudy:    "#10B981",
	models.CategoryTravel:   "#06B6D4",
}

var priorityColors = map[models.TaskPriority]string{
	models.PriorityHigh:   "#EF4444",
	models.PriorityMedium: "#F59E0B",
	models.PriorityLow:    "#10B981",
}

// Present computes the display attributes for a task relative to now.
func Present(task models.Task, now time.Time) Presentation {
	p := Presentation{
		Task:          task,
		DueLabel:      dueLabel(task.DueDate, now),
		CategoryIcon:  categoryIcons[task.Category],
		CategoryColor: categoryColors[task.Category],
		PriorityColor: priorityColors[task.Priority],
	}
	if task.DueDate != nil {
		hours := int(task.DueDate.Sub(now).Hours())
		if hours < 0 {
			hours = 0
		}
		p.HoursUntilDue = hours
		p.Urgent = task.Priority == models.PriorityHigh && task.DueDate.Sub(now) < 24*time.Hour
	}
	return p
}

func dueLabel(due *time.Time, now time.Time) string {
	if due == nil {
		return models.NoTimeLabel
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())

	switch days := int(dueDay.Sub(today).Hours() / 24); {
	case days == 0:
		return "Today, " + due.Format("3:04 PM")
	case days == 1:
		return "Tomorrow, " + due.Format("3:04 PM")
	case days > 1 && days < 7:
		return due.Weekday().String()
	default:
		return due.Format("Jan 2")
	}
}
