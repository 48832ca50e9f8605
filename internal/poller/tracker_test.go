package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/model"
)

type hookLog struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
	once   sync.Once
}

func newHookLog() *hookLog {
	return &hookLog{done: make(chan struct{})}
}

func (h *hookLog) add(event string, terminal bool) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	if terminal {
		h.once.Do(func() { close(h.done) })
	}
}

func (h *hookLog) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *hookLog) hooks(prefix string) Hooks {
	return Hooks{
		OnProgress: func(_ context.Context, u model.JobUpdate) {
			h.add(prefix+":progress", false)
		},
		OnSuccess: func(_ context.Context, u model.JobUpdate) {
			h.add(prefix+":success", true)
		},
		OnFailed: func(_ context.Context, u model.JobUpdate) {
			h.add(prefix+":failed", true)
		},
		OnCancelled: func(_ context.Context, u model.JobUpdate) {
			h.add(prefix+":cancelled", true)
		},
	}
}

func (h *hookLog) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("terminal hook not called")
	}
}

func setupTracker(t *testing.T, src StatusSource, interval time.Duration) *Tracker {
	t.Helper()
	p := New(src, config.PollerConfig{Interval: interval, ProgressStep: 10, ProgressCap: 95}, zerolog.Nop())
	tr := NewTracker(p, zerolog.Nop())
	t.Cleanup(tr.Stop)
	return tr
}

var trackerKey = model.ReportKey{CycleID: 58, ReportID: 156}

func TestTracker_Start(t *testing.T) {
	t.Run("success hook fires once", func(t *testing.T) {
		src := newSource().script("job-1", running(), running(), status("completed"))
		tr := setupTracker(t, src, time.Millisecond)
		log := newHookLog()

		require.NoError(t, tr.Start(trackerKey, "job-1", model.JobKindGenerateRules, log.hooks("a")))
		log.wait(t)

		assert.Eventually(t, func() bool { return tr.Active() == 0 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"a:progress", "a:progress", "a:success"}, log.Events())
	})

	t.Run("failed and cancelled hooks", func(t *testing.T) {
		src := newSource().
			script("job-f", status("failed")).
			script("job-c", status("cancelled"))
		tr := setupTracker(t, src, time.Millisecond)

		failed := newHookLog()
		require.NoError(t, tr.Start(trackerKey, "job-f", model.JobKindExecuteProfiling, failed.hooks("f")))
		failed.wait(t)
		assert.Equal(t, []string{"f:failed"}, failed.Events())

		cancelled := newHookLog()
		require.NoError(t, tr.Start(model.ReportKey{CycleID: 1, ReportID: 2}, "job-c", model.JobKindExecuteProfiling, cancelled.hooks("c")))
		cancelled.wait(t)
		assert.Equal(t, []string{"c:cancelled"}, cancelled.Events())
	})

	t.Run("empty job id", func(t *testing.T) {
		tr := setupTracker(t, newSource(), time.Millisecond)
		err := tr.Start(trackerKey, "", model.JobKindGenerateRules, Hooks{})
		assert.ErrorIs(t, err, ErrEmptyJobID)
		assert.Equal(t, 0, tr.Active())
	})

	t.Run("new job replaces the tracked one", func(t *testing.T) {
		src := newSource().
			script("job-old", running(), status("completed")).
			script("job-new", running(), running(), running(), status("completed"))
		tr := setupTracker(t, src, 50*time.Millisecond)

		oldLog := newHookLog()
		require.NoError(t, tr.Start(trackerKey, "job-old", model.JobKindGenerateRules, oldLog.hooks("old")))
		require.Eventually(t, func() bool { return src.Calls("job-old") >= 1 }, time.Second, time.Millisecond)

		newLog := newHookLog()
		require.NoError(t, tr.Start(trackerKey, "job-new", model.JobKindGenerateRules, newLog.hooks("new")))

		snap, ok := tr.Current(trackerKey)
		require.True(t, ok)
		assert.Equal(t, "job-new", snap.JobID)
		assert.Equal(t, 1, tr.Active(), "loops are replaced, not stacked")

		newLog.wait(t)
		time.Sleep(100 * time.Millisecond)

		for _, e := range oldLog.Events() {
			assert.NotEqual(t, "old:success", e, "replaced loop must not fire terminal hooks")
		}
		assert.Equal(t, 1, src.Calls("job-old"), "replaced loop stops polling")
		assert.Equal(t, "new:success", newLog.Events()[len(newLog.Events())-1])
	})
}

func TestTracker_Cancel(t *testing.T) {
	src := newSource().script("job-1", running())
	tr := setupTracker(t, src, 5*time.Millisecond)
	log := newHookLog()

	require.NoError(t, tr.Start(trackerKey, "job-1", model.JobKindExecuteProfiling, log.hooks("a")))
	require.Eventually(t, func() bool { return src.Calls("job-1") >= 2 }, time.Second, time.Millisecond)

	snap, ok := tr.Current(trackerKey)
	require.True(t, ok)
	assert.Equal(t, model.JobKindExecuteProfiling, snap.Kind)

	assert.True(t, tr.Cancel(trackerKey))
	assert.False(t, tr.Cancel(trackerKey))

	_, ok = tr.Current(trackerKey)
	assert.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	calls := src.Calls("job-1")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.Calls("job-1"))
}

func TestTracker_Stop(t *testing.T) {
	src := newSource().script("job-1", running()).script("job-2", running())
	p := New(src, config.PollerConfig{Interval: time.Millisecond}, zerolog.Nop())
	tr := NewTracker(p, zerolog.Nop())

	require.NoError(t, tr.Start(model.ReportKey{CycleID: 1, ReportID: 1}, "job-1", model.JobKindGenerateRules, Hooks{}))
	require.NoError(t, tr.Start(model.ReportKey{CycleID: 1, ReportID: 2}, "job-2", model.JobKindGenerateRules, Hooks{}))
	assert.Equal(t, 2, tr.Active())

	stopped := make(chan struct{})
	go func() {
		tr.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 0, tr.Active())
}
