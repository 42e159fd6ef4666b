package realtime

import "github.com/actionable-app/actionable/internal/models"

// Stream names clients may subscribe to.
const (
	StreamTasks    = "tasks"
	StreamSessions = "sessions"
)

// ChangeOp identifies the kind of mutation carried by a ChangeEvent.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent describes a single task mutation pushed to subscribers.
// Delete events carry only the task ID.
type ChangeEvent struct {
	Op     ChangeOp     `json:"op"`
	TaskID string       `json:"task_id"`
	Task   *models.Task `json:"task,omitempty"`
}

// KnownStreams returns the set of streams the hub will accept subscriptions for.
func KnownStreams() map[string]struct{} {
	return map[string]struct{}{
		StreamTasks:    {},
		StreamSessions: {},
	}
}
