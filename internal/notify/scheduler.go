package notify

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Repeat selects how often a scheduled notification fires.
type Repeat string

const (
	RepeatNone  Repeat = ""
	RepeatDaily Repeat = "daily"
)

// Request describes a notification to fire at a future time. For daily
// repeats, At supplies the time of day.
type Request struct {
	ID     string
	Title  string
	Body   string
	Data   map[string]any
	At     time.Time
	Repeat Repeat
}

// Scheduler is the platform notification scheduler the service drives. The
// local implementation fires in-process; a mobile host would bridge to the
// OS scheduler instead.
type Scheduler interface {
	// Schedule registers the request and returns its identifier. A blank
	// request ID gets a generated one.
	Schedule(req Request) (string, error)
	// Cancel drops the given identifiers. Unknown ids are ignored.
	Cancel(ids ...string)
	// Scheduled lists the identifiers of all pending notifications.
	Scheduled() []string
	// CancelAll drops every pending notification.
	CancelAll()
}

// Deliverer receives notifications when they fire.
type Deliverer func(Request)

// LocalScheduler runs one-off notifications on timers and daily repeats on a
// cron runner, all in-process.
type LocalScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	entries map[string]cron.EntryID
	pending map[string]Request
	cron    *cron.Cron
	deliver Deliverer
	now     func() time.Time
}

// LocalSchedulerOption customises LocalScheduler construction.
type LocalSchedulerOption func(*LocalScheduler)

// WithSchedulerClock overrides the time source, primarily for tests.
func WithSchedulerClock(now func() time.Time) LocalSchedulerOption {
	return func(s *LocalScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLocalScheduler constructs and starts a LocalScheduler. The deliverer may
// be nil when nothing needs to observe fired notifications.
func NewLocalScheduler(deliver Deliverer, opts ...LocalSchedulerOption) *LocalScheduler {
	s := &LocalScheduler{
		timers:  make(map[string]*time.Timer),
		entries: make(map[string]cron.EntryID),
		pending: make(map[string]Request),
		cron:    cron.New(),
		deliver: deliver,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron.Start()
	return s
}

// Schedule registers the request. Requests whose time already passed fire
// immediately.
func (s *LocalScheduler) Schedule(req Request) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace any pending notification with the same id.
	s.cancelLocked(req.ID)

	if req.Repeat == RepeatDaily {
		spec := fmt.Sprintf("%d %d * * *", req.At.Minute(), req.At.Hour())
		id := req.ID
		entry, err := s.cron.AddFunc(spec, func() { s.fire(id) })
		if err != nil {
			return "", fmt.Errorf("scheduler: add daily job: %w", err)
		}
		s.entries[req.ID] = entry
		s.pending[req.ID] = req
		return req.ID, nil
	}

	delay := req.At.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	id := req.ID
	s.timers[req.ID] = time.AfterFunc(delay, func() { s.fireOnce(id) })
	s.pending[req.ID] = req
	return req.ID, nil
}

// Cancel drops the given notifications if still pending.
func (s *LocalScheduler) Cancel(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.cancelLocked(id)
	}
}

// Scheduled returns the pending notification ids in stable order.
func (s *LocalScheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CancelAll drops every pending notification.
func (s *LocalScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.pending {
		s.cancelLocked(id)
	}
}

// Close stops the cron runner and all pending timers.
func (s *LocalScheduler) Close() {
	s.CancelAll()
	<-s.cron.Stop().Done()
}

func (s *LocalScheduler) cancelLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	if entry, ok := s.entries[id]; ok {
		s.cron.Remove(entry)
		delete(s.entries, id)
	}
	delete(s.pending, id)
}

func (s *LocalScheduler) fireOnce(id string) {
	s.mu.Lock()
	req, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if ok && s.deliver != nil {
		s.deliver(req)
	}
}

func (s *LocalScheduler) fire(id string) {
	s.mu.Lock()
	req, ok := s.pending[id]
	s.mu.Unlock()

	if ok && s.deliver != nil {
		s.deliver(req)
	}
}
