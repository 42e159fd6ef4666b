package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/actionable-app/actionable/pkg/response"

	"github.com/actionable-app/actionable/internal/notify"
)

// NotificationHandler exposes the notification log and scheduling operations.
type NotificationHandler struct {
	notify *notify.Service
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(service *notify.Service) *NotificationHandler {
	return &NotificationHandler{notify: service}
}

// List returns the stored notification log, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	records, err := h.notify.StoredNotifications(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}

// MarkRead flags a stored notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notify.MarkRead(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// ClearAll empties the notification log.
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	if err := h.notify.ClearAll(requestContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

type reminderRequest struct {
	Title  string    `json:"title" validate:"required,max=255"`
	Body   string    `json:"body" validate:"max=1024"`
	At     time.Time `json:"at" validate:"required"`
	Repeat string    `json:"repeat" validate:"omitempty,oneof=daily"`
}

// ScheduleReminder schedules a free-form reminder.
func (h *NotificationHandler) ScheduleReminder(c *gin.Context) {
	var req reminderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id, err := h.notify.ScheduleReminder(requestContext(c), req.Title, req.Body, req.At, notify.Repeat(req.Repeat))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"id": id})
}

type snoozeRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Body    string `json:"body" validate:"max=1024"`
	Minutes int    `json:"minutes" validate:"omitempty,min=1,max=1440"`
}

// Snooze reschedules a notification a number of minutes into the future.
func (h *NotificationHandler) Snooze(c *gin.Context) {
	var req snoozeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id, err := h.notify.Snooze(requestContext(c), c.Param("id"), req.Title, req.Body, req.Minutes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// EnableDailySummary schedules the recurring evening summary.
func (h *NotificationHandler) EnableDailySummary(c *gin.Context) {
	id, err := h.notify.ScheduleDailySummary(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// DisableDailySummary cancels every scheduled summary.
func (h *NotificationHandler) DisableDailySummary(c *gin.Context) {
	if err := h.notify.CancelDailySummaries(requestContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

// RegisterPush registers the device for push notifications. Sandboxed
// runtimes return a null token without error.
func (h *NotificationHandler) RegisterPush(c *gin.Context) {
	token, err := h.notify.RegisterForPush(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": token})
}
