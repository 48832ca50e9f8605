package poller

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// Hook receives a job update. ctx is cancelled when the loop is replaced or the tracker stops.
type Hook func(ctx context.Context, update model.JobUpdate)

// Hooks are job callbacks. The terminal callback fires at most once per polling loop.
type Hooks struct {
	OnProgress  Hook
	OnSuccess   Hook
	OnFailed    Hook
	OnCancelled Hook
}

// Snapshot is the live view of a tracked job.
type Snapshot struct {
	Key       model.ReportKey `json:"key"`
	JobID     string          `json:"job_id"`
	Kind      model.JobKind   `json:"kind"`
	Status    model.JobStatus `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	StartedAt time.Time       `json:"started_at"`
}

type loop struct {
	cancel  context.CancelFunc
	stopped atomic.Bool

	mu   sync.Mutex
	snap Snapshot
}

func (l *loop) stop() {
	l.stopped.Store(true)
	l.cancel()
}

func (l *loop) record(u model.JobUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap.Status = u.Status
	l.snap.Progress = u.Progress
	l.snap.Message = u.Message
}

func (l *loop) snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Tracker runs at most one poll loop per (cycle, report).
type Tracker struct {
	poller *Poller
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	loops map[model.ReportKey]*loop
}

func NewTracker(p *Poller, log zerolog.Logger) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		poller: p,
		log:    log.With().Str("component", "tracker").Logger(),
		ctx:    ctx,
		cancel: cancel,
		loops:  make(map[model.ReportKey]*loop),
	}
}

// Start begins tracking jobID for key, cancelling any loop already tracking that key.
func (t *Tracker) Start(key model.ReportKey, jobID string, kind model.JobKind, hooks Hooks) error {
	if strings.TrimSpace(jobID) == "" {
		return ErrEmptyJobID
	}

	ctx, cancel := context.WithCancel(t.ctx)
	l := &loop{
		cancel: cancel,
		snap: Snapshot{
			Key:       key,
			JobID:     jobID,
			Kind:      kind,
			Status:    model.JobRunning,
			StartedAt: time.Now(),
		},
	}

	t.mu.Lock()
	if prev, ok := t.loops[key]; ok {
		prev.stop()
		t.log.Info().
			Str("key", key.String()).
			Str("replaced_job_id", prev.snapshot().JobID).
			Str("job_id", jobID).
			Msg("replacing tracked job")
	}
	t.loops[key] = l
	t.wg.Add(1)
	t.mu.Unlock()

	updates, err := t.poller.Track(ctx, jobID)
	if err != nil {
		t.release(key, l)
		t.wg.Done()
		cancel()
		return err
	}

	go t.consume(ctx, key, l, updates, hooks)
	return nil
}

func (t *Tracker) consume(ctx context.Context, key model.ReportKey, l *loop, updates <-chan model.JobUpdate, hooks Hooks) {
	defer t.wg.Done()
	defer l.cancel()
	defer t.release(key, l)

	for u := range updates {
		if l.stopped.Load() {
			continue
		}
		l.record(u)

		var h Hook
		switch u.Status {
		case model.JobCompleted:
			h = hooks.OnSuccess
		case model.JobFailed:
			h = hooks.OnFailed
		case model.JobCancelled:
			h = hooks.OnCancelled
		default:
			h = hooks.OnProgress
		}
		if h != nil {
			h(ctx, u)
		}
	}
}

// release removes the entry only while key still points at this loop.
func (t *Tracker) release(key model.ReportKey, l *loop) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.loops[key]; ok && cur == l {
		delete(t.loops, key)
	}
}

// Cancel stops tracking key. No hooks fire after Cancel returns.
func (t *Tracker) Cancel(key model.ReportKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.loops[key]
	if !ok {
		return false
	}
	l.stop()
	delete(t.loops, key)
	return true
}

// Current returns the job tracked for key, if any.
func (t *Tracker) Current(key model.ReportKey) (Snapshot, bool) {
	t.mu.Lock()
	l, ok := t.loops[key]
	t.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return l.snapshot(), true
}

// Active returns the number of jobs being tracked.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loops)
}

// Stop cancels every loop and waits for them to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	for key, l := range t.loops {
		l.stop()
		delete(t.loops, key)
	}
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}
