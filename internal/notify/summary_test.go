package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/internal/database/testutil"
	"github.com/actionable-app/actionable/internal/models"
)

// The job's clock tracks real time so rows stamped by gorm land inside the
// day bounds the queries compute.
func summaryClock() time.Time {
	return time.Now()
}

func seedSummaryUser(t *testing.T, db *gorm.DB, email string, enabled bool) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: "Tester", DailySummaryEnabled: enabled, IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSummaryTask(t *testing.T, db *gorm.DB, userID string, completed bool, due *time.Time) {
	t.Helper()
	task := &models.Task{
		UserID:    userID,
		Title:     "Task",
		Completed: completed,
		Category:  models.CategoryWork,
		Priority:  models.PriorityMedium,
		DueDate:   due,
	}
	require.NoError(t, db.Create(task).Error)
}

func TestSummaryJobRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedSummaryUser(t, db, "summary@example.com", true)

	now := summaryClock()
	tomorrow := now.AddDate(0, 0, 1)
	dueTomorrow := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, now.Location())
	dayAfter := dueTomorrow.AddDate(0, 0, 1)

	seedSummaryTask(t, db, user.ID, false, nil)
	seedSummaryTask(t, db, user.ID, false, &dueTomorrow)
	seedSummaryTask(t, db, user.ID, false, &dayAfter)
	seedSummaryTask(t, db, user.ID, true, nil)

	job, err := NewSummaryJob(db, WithSummaryClock(summaryClock))
	require.NoError(t, err)
	require.NoError(t, job.RunOnce(context.Background()))

	var records []models.NotificationRecord
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&records).Error)
	require.Len(t, records, 1)
	require.Equal(t, "Daily summary", records[0].Title)

	var data map[string]any
	require.NoError(t, json.Unmarshal(records[0].Data, &data))
	require.EqualValues(t, 3, data["open"])
	require.EqualValues(t, 1, data["completed_today"])
	require.EqualValues(t, 1, data["due_tomorrow"])
}

func TestSummaryJobSkipsOptedOutUsers(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	optedOut := seedSummaryUser(t, db, "optout@example.com", false)
	inactive := seedSummaryUser(t, db, "inactive@example.com", true)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	job, err := NewSummaryJob(db, WithSummaryClock(summaryClock))
	require.NoError(t, err)
	require.NoError(t, job.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.NotificationRecord{}).Count(&count).Error)
	require.Zero(t, count)
	_ = optedOut
}

func TestSummaryJobIsolatesUsers(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	a := seedSummaryUser(t, db, "a@example.com", true)
	b := seedSummaryUser(t, db, "b@example.com", true)

	seedSummaryTask(t, db, a.ID, false, nil)

	job, err := NewSummaryJob(db, WithSummaryClock(summaryClock))
	require.NoError(t, err)
	require.NoError(t, job.RunOnce(context.Background()))

	var forA, forB []models.NotificationRecord
	require.NoError(t, db.Where("user_id = ?", a.ID).Find(&forA).Error)
	require.NoError(t, db.Where("user_id = ?", b.ID).Find(&forB).Error)
	require.Len(t, forA, 1)
	require.Len(t, forB, 1)
	require.Contains(t, forA[0].Body, "1 open")
	require.Contains(t, forB[0].Body, "0 open")
}
