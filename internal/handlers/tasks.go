package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/actionable-app/actionable/pkg/response"

	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/services"
	"github.com/actionable-app/actionable/internal/taskstore"
)

// TaskHandler serves the task CRUD and derived-view endpoints.
type TaskHandler struct {
	tasks    *services.TaskService
	upcoming *services.UpcomingService
}

// NewTaskHandler constructs a TaskHandler.
func NewTaskHandler(tasks *services.TaskService, upcoming *services.UpcomingService) *TaskHandler {
	return &TaskHandler{tasks: tasks, upcoming: upcoming}
}

// List returns the user's tasks, filtered and sorted by query parameters.
func (h *TaskHandler) List(c *gin.Context) {
	opts := services.ListTasksOptions{
		Category: models.TaskCategory(c.Query("category")),
		Priority: models.TaskPriority(c.Query("priority")),
		Due:      services.DueFilter(c.Query("due")),
		SortBy:   c.Query("sort"),
		SortDesc: c.Query("order") == "desc",
	}
	if days := c.Query("days"); days != "" {
		if parsed, err := strconv.Atoi(days); err == nil {
			opts.UpcomingDays = parsed
		}
	}

	tasks, err := h.tasks.List(requestContext(c), currentUserID(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// Get returns a single task.
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Create adds a task.
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskInput
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// Update applies a partial update to a task.
func (h *TaskHandler) Update(c *gin.Context) {
	var req services.UpdateTaskInput
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Update(requestContext(c), currentUserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Toggle flips a task's completed flag.
func (h *TaskHandler) Toggle(c *gin.Context) {
	task, err := h.tasks.Toggle(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// DeleteCompleted removes every completed task.
func (h *TaskHandler) DeleteCompleted(c *gin.Context) {
	count, err := h.tasks.DeleteCompleted(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": count})
}

// MarkAllComplete marks every open task as completed.
func (h *TaskHandler) MarkAllComplete(c *gin.Context) {
	count, err := h.tasks.MarkAllComplete(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"completed": count})
}

// Upcoming returns the five-task upcoming view with display attributes.
func (h *TaskHandler) Upcoming(c *gin.Context) {
	tasks, err := h.upcoming.Fetch(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	now := timeNow()
	presented := make([]taskstore.Presentation, 0, len(tasks))
	for _, task := range tasks {
		presented = append(presented, taskstore.Present(task, now))
	}
	response.Success(c, http.StatusOK, presented)
}
