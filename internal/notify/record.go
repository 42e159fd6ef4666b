package notify

// Notification kinds carried in a record's Data["type"].
const (
	KindTaskDue         = "task_due"
	KindTaskCompleted   = "task_completed"
	KindDailySummary    = "daily_summary"
	KindReminder        = "reminder"
	KindReminderSnoozed = "reminder_snoozed"
	KindUpcomingTask    = "upcoming_task"
)

// Record is one entry in the device-local notification log. The log lives in
// the key-value store as a JSON array capped at 50 entries, newest first.
type Record struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
	Read      bool           `json:"read"`
}

// Kind returns the record's notification type, or the empty string.
func (r Record) Kind() string {
	if r.Data == nil {
		return ""
	}
	kind, _ := r.Data["type"].(string)
	return kind
}
