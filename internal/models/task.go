package models

import "time"

// TaskCategory classifies a task into one of the fixed product categories.
type TaskCategory string

// Task categories.
const (
	CategoryWork     TaskCategory = "work"
	CategoryPersonal TaskCategory = "personal"
	CategoryShopping TaskCategory = "shopping"
	CategoryHealth   TaskCategory = "health"
	CategoryStudy    TaskCategory = "study"
	CategoryTravel   TaskCategory = "travel"
)

// DefaultCategory is applied when a task is created without one.
const DefaultCategory = CategoryWork

// Valid reports whether the category is one of the known values.
func (c TaskCategory) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryStudy, CategoryTravel:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

// Task priorities.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// DefaultPriority is applied when a task is created without one.
const DefaultPriority = PriorityMedium

// Valid reports whether the priority is one of the known values.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank maps priorities to a sortable weight (high > medium > low).
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// NoTimeLabel is stored for tasks saved without a due date.
const NoTimeLabel = "No time set"

// Task is an owner-scoped todo item. Every query and mutation is filtered by
// UserID in addition to the primary key.
type Task struct {
	BaseModel

	UserID      string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string       `gorm:"type:varchar(255);not null" json:"title"`
	Completed   bool         `gorm:"default:false;index" json:"completed"`
	Category    TaskCategory `gorm:"type:varchar(32);default:'work'" json:"category"`
	Priority    TaskPriority `gorm:"type:varchar(16);default:'medium'" json:"priority"`
	Description string       `gorm:"type:text" json:"description"`
	DueDate     *time.Time   `gorm:"index" json:"due_date"`
	TimeLabel   string       `gorm:"column:time;type:varchar(64)" json:"time"`
}

// DeriveTimeLabel returns the display string persisted alongside a due date.
func DeriveTimeLabel(due *time.Time) string {
	if due == nil {
		return NoTimeLabel
	}
	return due.Local().Format("3:04 PM")
}
