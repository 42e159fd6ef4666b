package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type deliveryLog struct {
	mu    sync.Mutex
	fired []Request
}

func (d *deliveryLog) deliver(req Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fired = append(d.fired, req)
}

func (d *deliveryLog) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fired)
}

func TestLocalSchedulerFiresPastDueImmediately(t *testing.T) {
	log := &deliveryLog{}
	s := NewLocalScheduler(log.deliver)
	defer s.Close()

	id, err := s.Schedule(Request{Title: "Already due", At: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Empty(t, s.Scheduled())
}

func TestLocalSchedulerReplacesSameID(t *testing.T) {
	s := NewLocalScheduler(nil)
	defer s.Close()

	_, err := s.Schedule(Request{ID: "r1", Title: "First", At: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Schedule(Request{ID: "r1", Title: "Second", At: time.Now().Add(2 * time.Hour)})
	require.NoError(t, err)

	require.Equal(t, []string{"r1"}, s.Scheduled())
}

func TestLocalSchedulerCancelUnknownIsNoop(t *testing.T) {
	s := NewLocalScheduler(nil)
	defer s.Close()

	s.Cancel("missing")
	require.Empty(t, s.Scheduled())
}

func TestLocalSchedulerDailyRepeatStaysPending(t *testing.T) {
	s := NewLocalScheduler(nil)
	defer s.Close()

	at := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	id, err := s.Schedule(Request{ID: "daily", Title: "Summary", At: at, Repeat: RepeatDaily})
	require.NoError(t, err)
	require.Equal(t, "daily", id)
	require.Equal(t, []string{"daily"}, s.Scheduled())
}

func TestLocalSchedulerCancelAll(t *testing.T) {
	s := NewLocalScheduler(nil)
	defer s.Close()

	_, err := s.Schedule(Request{ID: "a", At: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Schedule(Request{ID: "b", At: time.Now().Add(time.Hour), Repeat: RepeatDaily})
	require.NoError(t, err)

	s.CancelAll()
	require.Empty(t, s.Scheduled())
}

func TestLocalSchedulerGeneratesID(t *testing.T) {
	s := NewLocalScheduler(nil)
	defer s.Close()

	id, err := s.Schedule(Request{Title: "Anonymous", At: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, []string{id}, s.Scheduled())
}
