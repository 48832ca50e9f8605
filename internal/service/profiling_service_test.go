package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
	"github.com/qs3c/regflow_go_server/internal/poller"
	"github.com/qs3c/regflow_go_server/internal/reconciler"
	"github.com/qs3c/regflow_go_server/internal/repository"
	"github.com/qs3c/regflow_go_server/internal/testutil"
)

const (
	reportPath      = "/api/v1/data-profiling/cycles/58/reports/156"
	unifiedPath     = "/api/v1/status/cycles/58/reports/156/phases/Data Profiling"
	assignmentsPath = "/api/v1/universal-assignments/assignments"
)

type profilingFixture struct {
	svc     *ProfilingService
	backend *testutil.FakeBackend
	flags   flagstore.Store
	jobs    *repository.JobRepository
	notices *testutil.NoticeRecorder
	watches *WatchList
}

func setupProfilingService(t *testing.T) *profilingFixture {
	t.Helper()

	backend := testutil.NewFakeBackend(t)
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	c := client.New(backend.URL(), backend.Server.Client(), zerolog.Nop())
	p := poller.New(c, config.PollerConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())
	tracker := poller.NewTracker(p, zerolog.Nop())
	t.Cleanup(tracker.Stop)

	flags := flagstore.NewMemoryStore()
	jobs := repository.NewJobRepository(db)
	notices := &testutil.NoticeRecorder{}
	watches := NewWatchList()

	svc := NewProfilingService(c, flags, tracker, jobs, notices, watches, zerolog.Nop())
	t.Cleanup(svc.Wait)

	return &profilingFixture{svc: svc, backend: backend, flags: flags, jobs: jobs, notices: notices, watches: watches}
}

func (f *profilingFixture) unifiedStatus(state model.PhaseState) {
	f.backend.JSON(http.MethodGet, unifiedPath, http.StatusOK, map[string]interface{}{
		"phase_name":   model.PhaseDataProfiling,
		"phase_status": string(state),
		"metadata": map[string]interface{}{
			"total_rules":         4,
			"approved_rules":      4,
			"can_proceed_to_next": state == model.PhaseReadyForExecution,
		},
	})
}

func TestProfilingService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("advanced backend state restores the flag silently", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseReadyForExecution)

		status, err := f.svc.Status(ctx, testutil.TestKey, 7)
		require.NoError(t, err)
		assert.Equal(t, model.PhaseReadyForExecution, status.PhaseStatus)
		assert.Equal(t, 4, status.TotalRules)

		advanced, err := f.flags.Get(ctx, testutil.TestKey)
		require.NoError(t, err)
		assert.True(t, advanced)
		assert.Empty(t, f.notices.Events())
		assert.Equal(t, 1, f.watches.Len())
	})

	t.Run("in progress leaves the flag alone", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseInProgress)

		_, err := f.svc.Status(ctx, testutil.TestKey, 7)
		require.NoError(t, err)

		advanced, err := f.flags.Get(ctx, testutil.TestKey)
		require.NoError(t, err)
		assert.False(t, advanced)
	})

	t.Run("both sources down", func(t *testing.T) {
		f := setupProfilingService(t)

		_, err := f.svc.Status(ctx, testutil.TestKey, 7)
		assert.Error(t, err)
	})

	t.Run("invalid key", func(t *testing.T) {
		f := setupProfilingService(t)

		_, err := f.svc.Status(ctx, model.ReportKey{CycleID: 58}, 7)
		assert.ErrorIs(t, err, ErrInvalidReport)
		assert.Zero(t, f.backend.TotalCalls())
	})
}

func TestProfilingService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("advanced backend state restores the flag silently", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseReadyForExecution)

		require.NoError(t, f.svc.Refresh(ctx, testutil.TestKey))

		advanced, err := f.flags.Get(ctx, testutil.TestKey)
		require.NoError(t, err)
		assert.True(t, advanced)
		assert.Empty(t, f.notices.Events())
		assert.Zero(t, f.watches.Len())
	})

	t.Run("refetch after complete restores from the backend state", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/complete", http.StatusOK, map[string]bool{"success": true})
		f.unifiedStatus(model.PhaseReadyForExecution)

		_, err := f.svc.CompletePhase(ctx, testutil.TestKey, "")
		require.NoError(t, err)

		advanced, err := f.flags.Get(ctx, testutil.TestKey)
		require.NoError(t, err)
		assert.True(t, advanced)
		assert.Empty(t, f.notices.Events())
	})

	t.Run("optimistic state does not set the flag", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/complete", http.StatusOK, map[string]bool{"success": true})

		resp, err := f.svc.CompletePhase(ctx, testutil.TestKey, "")
		require.NoError(t, err)
		assert.Equal(t, model.PhaseComplete, resp.Status.PhaseStatus)

		advanced, err := f.flags.Get(ctx, testutil.TestKey)
		require.NoError(t, err)
		assert.False(t, advanced)
	})
}

func TestProfilingService_StartPhase(t *testing.T) {
	ctx := context.Background()

	t.Run("conflict is a warning and the phase reads in progress", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/start", http.StatusConflict, map[string]string{"detail": "Phase already started"})
		f.unifiedStatus(model.PhaseNotStarted)

		resp, err := f.svc.StartPhase(ctx, testutil.TestKey, 7)
		require.NoError(t, err)
		assert.Equal(t, "Phase already started", resp.Warning)
		assert.Equal(t, model.PhaseInProgress, resp.Status.PhaseStatus)
		assert.Equal(t, 1, f.backend.Calls(http.MethodGet, unifiedPath))

		ev := f.notices.Last(pubsub.EventPhaseStartConflict)
		require.NotNil(t, ev)
		assert.Equal(t, int64(7), ev.UserID)
	})

	t.Run("conflict without detail uses the default warning", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/start", http.StatusConflict, nil)
		f.unifiedStatus(model.PhaseInProgress)

		resp, err := f.svc.StartPhase(ctx, testutil.TestKey, 7)
		require.NoError(t, err)
		assert.Equal(t, phaseAlreadyStarted, resp.Warning)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/start", http.StatusInternalServerError, map[string]string{"detail": "boom"})

		_, err := f.svc.StartPhase(ctx, testutil.TestKey, 7)
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, client.StatusCode(err))
		assert.Empty(t, f.notices.Events())
	})

	t.Run("success without warning", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/start", http.StatusOK, map[string]bool{"success": true})
		f.unifiedStatus(model.PhaseInProgress)

		resp, err := f.svc.StartPhase(ctx, testutil.TestKey, 7)
		require.NoError(t, err)
		assert.Empty(t, resp.Warning)
		assert.Equal(t, model.PhaseInProgress, resp.Status.PhaseStatus)
	})
}

func TestProfilingService_CompletePhase(t *testing.T) {
	f := setupProfilingService(t)
	f.backend.JSON(http.MethodPost, reportPath+"/complete", http.StatusOK, map[string]bool{"success": true})

	resp, err := f.svc.CompletePhase(context.Background(), testutil.TestKey, "done")
	require.NoError(t, err)
	// 状态接口不可用时使用乐观状态
	assert.Equal(t, model.PhaseComplete, resp.Status.PhaseStatus)
	assert.JSONEq(t, `{"completion_notes":"done"}`, string(f.backend.LastBody(http.MethodPost, reportPath+"/complete")))
}

func TestProfilingService_Launch(t *testing.T) {
	ctx := context.Background()

	t.Run("async job is tracked to success", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseInProgress)
		f.backend.JSON(http.MethodPost, reportPath+"/generate-rules", http.StatusOK, map[string]string{"job_id": "job-9"})
		f.backend.JSON(http.MethodGet, "/api/v1/jobs/job-9/status", http.StatusOK, map[string]string{"status": "completed"})
		f.backend.JSON(http.MethodGet, reportPath+"/workflow-stats", http.StatusOK, map[string]int{"total": 4})

		resp, err := f.svc.GenerateRules(ctx, testutil.TestKey, 7)
		require.NoError(t, err)
		assert.Equal(t, "job-9", resp.JobID)
		assert.False(t, resp.Immediate)

		require.Eventually(t, func() bool {
			return f.notices.Count(pubsub.EventRulesGenerated) == 1
		}, time.Second, 10*time.Millisecond)

		ev := f.notices.Last(pubsub.EventRulesGenerated)
		assert.Equal(t, int64(7), ev.UserID)
		assert.Equal(t, "job-9", ev.JobID)
		assert.Equal(t, 100, ev.Progress)

		job, err := f.jobs.GetByJobID("job-9")
		require.NoError(t, err)
		assert.Equal(t, string(model.JobCompleted), job.Status)
		assert.Equal(t, 100, job.Progress)

		snap, ok := f.svc.Snapshot(testutil.TestKey)
		require.True(t, ok)
		assert.EqualValues(t, 4, snap.WorkflowStats["total"])
		assert.Zero(t, f.backend.Calls(http.MethodGet, reportPath+"/execution-results"))
	})

	t.Run("immediate success skips polling", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseReadyForExecution)
		f.backend.JSON(http.MethodPost, reportPath+"/execute", http.StatusOK, map[string]interface{}{"success": true})
		f.backend.JSON(http.MethodGet, reportPath+"/execution-results", http.StatusOK, map[string]int{"passed": 3})

		resp, err := f.svc.ExecuteProfiling(ctx, testutil.TestKey, 7)
		require.NoError(t, err)
		assert.True(t, resp.Immediate)
		assert.Empty(t, resp.JobID)

		assert.Equal(t, 1, f.notices.Count(pubsub.EventProfilingExecuted))
		assert.Equal(t, "Profiling execution completed", f.notices.Last(pubsub.EventProfilingExecuted).Message)
		assert.Equal(t, 1, f.backend.Calls(http.MethodGet, reportPath+"/execution-results"))

		_, err = f.svc.CurrentJob(testutil.TestKey)
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("rejected launch", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/generate-rules", http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "no attributes selected",
		})

		_, err := f.svc.GenerateRules(ctx, testutil.TestKey, 7)
		assert.ErrorIs(t, err, ErrLaunchRejected)
		assert.Contains(t, err.Error(), "no attributes selected")
	})

	t.Run("failed job notifies with the backend error", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/execute", http.StatusOK, map[string]string{"job_id": "job-10"})
		f.backend.JSON(http.MethodGet, "/api/v1/jobs/job-10/status", http.StatusOK, map[string]string{
			"status": "failed",
			"error":  "rule engine crashed",
		})

		_, err := f.svc.ExecuteProfiling(ctx, testutil.TestKey, 7)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return f.notices.Count(pubsub.EventJobFailed) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, "rule engine crashed", f.notices.Last(pubsub.EventJobFailed).Message)
		assert.Zero(t, f.notices.Count(pubsub.EventProfilingExecuted))

		// 循环退出后回落到持久化记录
		require.Eventually(t, func() bool {
			job, err := f.svc.CurrentJob(testutil.TestKey)
			return err == nil && !job.Live
		}, time.Second, 10*time.Millisecond)
		job, err := f.svc.CurrentJob(testutil.TestKey)
		require.NoError(t, err)
		assert.Equal(t, string(model.JobFailed), job.Status)
	})

	t.Run("running job is reported live and can be cancelled", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodPost, reportPath+"/generate-rules", http.StatusOK, map[string]string{"job_id": "job-11"})
		f.backend.JSON(http.MethodGet, "/api/v1/jobs/job-11/status", http.StatusOK, map[string]string{"status": "running"})

		_, err := f.svc.GenerateRules(ctx, testutil.TestKey, 7)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return f.notices.Count(pubsub.EventJobProgress) >= 2
		}, time.Second, 5*time.Millisecond)

		job, err := f.svc.CurrentJob(testutil.TestKey)
		require.NoError(t, err)
		assert.True(t, job.Live)
		assert.Equal(t, "job-11", job.JobID)

		progress := f.notices.Last(pubsub.EventJobProgress)
		assert.Zero(t, progress.UserID)

		assert.True(t, f.svc.CancelJob(testutil.TestKey))
		assert.False(t, f.svc.CancelJob(testutil.TestKey))
	})
}

func TestProfilingService_Reconcile(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, decisions ...model.DecisionStatus) *profilingFixture {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseReadyForExecution)
		f.backend.JSON(http.MethodGet, assignmentsPath, http.StatusOK, []model.Assignment{testutil.RuleApproval(testutil.TestKey)})
		f.backend.JSON(http.MethodGet, reportPath+"/rules/decisions", http.StatusOK, testutil.Decisions(decisions...))
		f.backend.JSON(http.MethodPut, assignmentsPath+"/asg-1/complete", http.StatusOK, nil)
		f.backend.JSON(http.MethodPut, reportPath+"/advance-workflow", http.StatusOK, nil)
		return f
	}

	t.Run("second call makes no backend calls", func(t *testing.T) {
		f := setup(t, model.DecisionApproved, model.DecisionApproved)

		res, err := f.svc.Reconcile(ctx, testutil.TestKey, 7, false)
		require.NoError(t, err)
		assert.Equal(t, reconciler.Advanced, res.Outcome)
		f.svc.Wait()
		assert.Equal(t, 1, f.notices.Count(pubsub.EventRulesApproved))

		calls := f.backend.TotalCalls()
		res, err = f.svc.Reconcile(ctx, testutil.TestKey, 7, false)
		require.NoError(t, err)
		assert.Equal(t, reconciler.NoAction, res.Outcome)
		assert.Equal(t, reconciler.ReasonAlreadyAdvanced, res.Reason)
		assert.Equal(t, calls, f.backend.TotalCalls())
		assert.Equal(t, 1, f.notices.Count(pubsub.EventRulesApproved))
	})

	t.Run("rejection sends a notice unless quiet", func(t *testing.T) {
		f := setup(t, model.DecisionApproved, model.DecisionRejected)

		res, err := f.svc.Reconcile(ctx, testutil.TestKey, 7, true)
		require.NoError(t, err)
		assert.Equal(t, reconciler.RejectedNotice, res.Outcome)
		assert.Zero(t, f.notices.Count(pubsub.EventRulesRejected))

		_, err = f.svc.Reconcile(ctx, testutil.TestKey, 7, false)
		require.NoError(t, err)
		assert.Equal(t, 1, f.notices.Count(pubsub.EventRulesRejected))
	})

	t.Run("refetch failure", func(t *testing.T) {
		f := setupProfilingService(t)
		f.backend.JSON(http.MethodGet, assignmentsPath, http.StatusOK, []model.Assignment{})

		_, err := f.svc.Reconcile(ctx, testutil.TestKey, 7, false)
		assert.Error(t, err)
	})

	t.Run("reset clears the flag", func(t *testing.T) {
		f := setup(t, model.DecisionApproved)
		require.NoError(t, f.flags.Set(ctx, testutil.TestKey, true))

		require.NoError(t, f.svc.ResetWorkflow(ctx, testutil.TestKey))
		advanced, err := f.flags.Get(ctx, testutil.TestKey)
		require.NoError(t, err)
		assert.False(t, advanced)
	})
}

func TestProfilingService_ResumeTracking(t *testing.T) {
	f := setupProfilingService(t)
	f.unifiedStatus(model.PhaseInProgress)
	f.backend.JSON(http.MethodGet, "/api/v1/jobs/job-20/status", http.StatusOK, map[string]string{"status": "completed"})

	require.NoError(t, f.jobs.Create(&model.TrackedJob{
		JobID:    "job-20",
		CycleID:  testutil.TestKey.CycleID,
		ReportID: testutil.TestKey.ReportID,
		UserID:   9,
		Kind:     string(model.JobKindGenerateRules),
		Status:   string(model.JobRunning),
	}))

	n, err := f.svc.ResumeTracking(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool {
		return f.notices.Count(pubsub.EventRulesGenerated) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(9), f.notices.Last(pubsub.EventRulesGenerated).UserID)
}

func TestProfilingService_View(t *testing.T) {
	ctx := context.Background()

	t.Run("tester on a fresh phase can start it", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseNotStarted)
		f.backend.JSON(http.MethodGet, reportPath+"/rules/decisions", http.StatusOK, []model.RuleDecision{})

		view, err := f.svc.View(ctx, testutil.TestKey, 7, model.RoleTester)
		require.NoError(t, err)
		assert.Equal(t, model.RoleTester, view.Role)
		assert.Equal(t, []string{ActionStartPhase}, view.Actions)
		assert.Nil(t, view.Job)
		assert.False(t, view.ReadOnly)
	})

	t.Run("report owner sees pending rules", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseInProgress)
		f.backend.JSON(http.MethodGet, reportPath+"/rules/decisions", http.StatusOK,
			testutil.Decisions(model.DecisionApproved, model.DecisionPending))

		view, err := f.svc.View(ctx, testutil.TestKey, 7, model.RoleReportOwner)
		require.NoError(t, err)
		require.NotNil(t, view.Decisions)
		assert.Equal(t, 1, view.Decisions.Pending)
		assert.Len(t, view.Decisions.PendingRules, 1)
		assert.Equal(t, []string{ActionReviewRules}, view.Actions)
	})

	t.Run("data provider is read only", func(t *testing.T) {
		f := setupProfilingService(t)
		f.unifiedStatus(model.PhaseInProgress)

		view, err := f.svc.View(ctx, testutil.TestKey, 7, model.RoleDataProvider)
		require.NoError(t, err)
		assert.True(t, view.ReadOnly)
		assert.Empty(t, view.Actions)
	})

	t.Run("unknown role", func(t *testing.T) {
		f := setupProfilingService(t)

		_, err := f.svc.View(ctx, testutil.TestKey, 7, model.RoleUnknown)
		assert.ErrorIs(t, err, ErrUnsupportedRole)
	})
}
