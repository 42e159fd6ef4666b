package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/internal/database/testutil"
	"github.com/actionable-app/actionable/internal/middleware"
	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/services"
	"github.com/actionable-app/actionable/pkg/response"
)

func newTaskHandlerEnv(t *testing.T) (*TaskHandler, *gorm.DB, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	user := &models.User{Email: "handler@example.com", Name: "Handler", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	tasks, err := services.NewTaskService(db, nil)
	require.NoError(t, err)
	upcoming, err := services.NewUpcomingService(db)
	require.NoError(t, err)

	return NewTaskHandler(tasks, upcoming), db, user
}

func authedContext(t *testing.T, userID string, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserIDKey, userID)
	return c, recorder
}

func decodeData[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(dataBytes, &out))
	return out
}

func TestTaskHandlerCreateAndList(t *testing.T) {
	handler, _, user := newTaskHandlerEnv(t)

	c, recorder := authedContext(t, user.ID, http.MethodPost, "/api/tasks", gin.H{
		"title":    "Write report",
		"category": "work",
		"priority": "high",
	})
	handler.Create(c)
	require.Equal(t, http.StatusCreated, recorder.Code)

	created := decodeData[models.Task](t, recorder)
	require.Equal(t, "Write report", created.Title)
	require.Equal(t, models.PriorityHigh, created.Priority)

	c, recorder = authedContext(t, user.ID, http.MethodGet, "/api/tasks?priority=high", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	listed := decodeData[[]models.Task](t, recorder)
	require.Len(t, listed, 1)
	require.Equal(t, created.ID, listed[0].ID)
}

func TestTaskHandlerCreateRejectsMissingTitle(t *testing.T) {
	handler, _, user := newTaskHandlerEnv(t)

	c, recorder := authedContext(t, user.ID, http.MethodPost, "/api/tasks", gin.H{"description": "no title"})
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
}

func TestTaskHandlerToggleAndDelete(t *testing.T) {
	handler, _, user := newTaskHandlerEnv(t)

	c, recorder := authedContext(t, user.ID, http.MethodPost, "/api/tasks", gin.H{"title": "Flip me"})
	handler.Create(c)
	created := decodeData[models.Task](t, recorder)

	c, recorder = authedContext(t, user.ID, http.MethodPost, "/api/tasks/"+created.ID+"/toggle", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: created.ID}}
	handler.Toggle(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	toggled := decodeData[models.Task](t, recorder)
	require.True(t, toggled.Completed)

	c, recorder = authedContext(t, user.ID, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: created.ID}}
	handler.Delete(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	c, recorder = authedContext(t, user.ID, http.MethodGet, "/api/tasks/"+created.ID, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: created.ID}}
	handler.Get(c)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestTaskHandlerGetScopedToOwner(t *testing.T) {
	handler, db, user := newTaskHandlerEnv(t)

	other := &models.User{Email: "other@example.com", Name: "Other", IsActive: true}
	require.NoError(t, db.Create(other).Error)

	c, recorder := authedContext(t, user.ID, http.MethodPost, "/api/tasks", gin.H{"title": "Mine"})
	handler.Create(c)
	created := decodeData[models.Task](t, recorder)

	c, recorder = authedContext(t, other.ID, http.MethodGet, "/api/tasks/"+created.ID, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: created.ID}}
	handler.Get(c)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestTaskHandlerBulkOperations(t *testing.T) {
	handler, _, user := newTaskHandlerEnv(t)

	for _, title := range []string{"A", "B"} {
		c, recorder := authedContext(t, user.ID, http.MethodPost, "/api/tasks", gin.H{"title": title})
		handler.Create(c)
		require.Equal(t, http.StatusCreated, recorder.Code)
	}

	c, recorder := authedContext(t, user.ID, http.MethodPost, "/api/tasks/complete-all", nil)
	handler.MarkAllComplete(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	completed := decodeData[map[string]int64](t, recorder)
	require.EqualValues(t, 2, completed["completed"])

	c, recorder = authedContext(t, user.ID, http.MethodDelete, "/api/tasks/completed", nil)
	handler.DeleteCompleted(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	deleted := decodeData[map[string]int64](t, recorder)
	require.EqualValues(t, 2, deleted["deleted"])
}

func TestTaskHandlerUpcoming(t *testing.T) {
	handler, db, user := newTaskHandlerEnv(t)

	due := time.Now().AddDate(0, 0, 2)
	task := &models.Task{
		UserID:   user.ID,
		Title:    "Soon",
		Category: models.CategoryWork,
		Priority: models.PriorityMedium,
		DueDate:  &due,
	}
	require.NoError(t, db.Create(task).Error)

	c, recorder := authedContext(t, user.ID, http.MethodGet, "/api/tasks/upcoming", nil)
	handler.Upcoming(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	items, ok := payload.Data.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, first["due_label"])
	require.Equal(t, "briefcase", first["category_icon"])
}
