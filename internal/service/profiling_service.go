package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/qs3c/regflow_go_server/internal/aggregator"
	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
	"github.com/qs3c/regflow_go_server/internal/notify"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
	"github.com/qs3c/regflow_go_server/internal/poller"
	"github.com/qs3c/regflow_go_server/internal/reconciler"
	"github.com/qs3c/regflow_go_server/internal/repository"
)

var (
	ErrJobNotFound    = errors.New("no job has been started for this report")
	ErrLaunchRejected = errors.New("backend did not start the job")
)

// ProfilingService 数据剖析页面：阶段状态、规则生成/执行任务以及规则审批对账
type ProfilingService struct {
	phaseActions

	reconciler *reconciler.Reconciler
	tracker    *poller.Tracker
	jobRepo    *repository.JobRepository
	flags      flagstore.Store
	watches    *WatchList
	router     *ViewRouter

	mu        sync.RWMutex
	snapshots map[model.ReportKey]*dto.ReportSnapshot
}

func NewProfilingService(
	backend *client.Client,
	flags flagstore.Store,
	tracker *poller.Tracker,
	jobRepo *repository.JobRepository,
	notifier notify.Notifier,
	watches *WatchList,
	log zerolog.Logger,
) *ProfilingService {
	log = log.With().Str("component", "profiling_service").Logger()
	if watches == nil {
		watches = NewWatchList()
	}

	s := &ProfilingService{
		phaseActions: newPhaseActions(model.PhaseDataProfiling, backend, notifier, log),
		tracker:      tracker,
		jobRepo:      jobRepo,
		flags:        flags,
		watches:      watches,
		snapshots:    make(map[model.ReportKey]*dto.ReportSnapshot),
	}
	s.phaseActions.restorer = aggregator.NewRestorer(flags, log)
	s.reconciler = reconciler.New(backend, backend, flags, s, s.notifier, log)
	s.router = NewViewRouter().
		Handle(model.RoleTester, s.testerView).
		Handle(model.RoleReportOwner, s.reportOwnerView).
		Handle(model.RoleDataOwner, s.dataOwnerView).
		Handle(model.RoleDataProvider, s.readOnlyView).
		Handle(model.RoleAdmin, s.readOnlyView)
	return s
}

// Status 获取聚合后的阶段状态，并在后端已推进时恢复 advancement flag（不发通知）
func (s *ProfilingService) Status(ctx context.Context, key model.ReportKey, userID int64) (model.PhaseStatus, error) {
	status, err := s.fetchStatus(ctx, key)
	if err != nil {
		return model.PhaseStatus{}, err
	}
	s.watches.Touch(key, userID)

	s.mu.Lock()
	snap := s.snapshotLocked(key)
	snap.Status = status
	snap.RefreshedAt = time.Now()
	s.mu.Unlock()
	return status, nil
}

func (s *ProfilingService) StartPhase(ctx context.Context, key model.ReportKey, userID int64) (*dto.PhaseActionResponse, error) {
	return s.startPhase(ctx, key, userID)
}

func (s *ProfilingService) CompletePhase(ctx context.Context, key model.ReportKey, notes string) (*dto.PhaseActionResponse, error) {
	return s.completePhase(ctx, key, notes)
}

// GenerateRules 启动规则生成
func (s *ProfilingService) GenerateRules(ctx context.Context, key model.ReportKey, userID int64) (*dto.LaunchResponse, error) {
	return s.launch(ctx, key, userID, model.JobKindGenerateRules, s.backend.GenerateRules)
}

// ExecuteProfiling 启动规则执行
func (s *ProfilingService) ExecuteProfiling(ctx context.Context, key model.ReportKey, userID int64) (*dto.LaunchResponse, error) {
	return s.launch(ctx, key, userID, model.JobKindExecuteProfiling, s.backend.ExecuteProfiling)
}

type launchFunc func(ctx context.Context, key model.ReportKey) (*client.LaunchResponse, error)

// launch 异步任务交给 tracker 跟踪；后端同步完成时直接走成功路径
func (s *ProfilingService) launch(ctx context.Context, key model.ReportKey, userID int64, kind model.JobKind, start launchFunc) (*dto.LaunchResponse, error) {
	if !key.Valid() {
		return nil, ErrInvalidReport
	}
	s.watches.Touch(key, userID)

	resp, err := start(ctx, key)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Async():
		jobID := string(resp.JobID)
		s.persistJob(key, userID, kind, jobID)
		if err := s.tracker.Start(key, jobID, kind, s.hooks(key, userID, kind)); err != nil {
			return nil, err
		}
		s.log.Info().Str("key", key.String()).Str("job_id", jobID).Str("kind", string(kind)).Msg("job launched")
		return &dto.LaunchResponse{JobID: jobID, Message: resp.Message}, nil

	case resp.Success:
		s.succeeded(ctx, key, userID, kind, "", resp.Message)
		return &dto.LaunchResponse{Immediate: true, Message: resp.Message}, nil

	default:
		if resp.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrLaunchRejected, resp.Message)
		}
		return nil, ErrLaunchRejected
	}
}

func (s *ProfilingService) persistJob(key model.ReportKey, userID int64, kind model.JobKind, jobID string) {
	if err := s.jobRepo.SupersedeRunning(key, jobID); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("failed to supersede running jobs")
	}
	job := &model.TrackedJob{
		JobID:    jobID,
		CycleID:  key.CycleID,
		ReportID: key.ReportID,
		UserID:   userID,
		Kind:     string(kind),
		Status:   string(model.JobRunning),
	}
	if err := s.jobRepo.Create(job); err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to persist tracked job")
	}
}

func (s *ProfilingService) recordJob(u model.JobUpdate) {
	if err := s.jobRepo.UpdateProgress(u); err != nil {
		s.log.Warn().Err(err).Str("job_id", u.JobID).Msg("failed to record job progress")
	}
}

func (s *ProfilingService) hooks(key model.ReportKey, userID int64, kind model.JobKind) poller.Hooks {
	return poller.Hooks{
		OnProgress: func(ctx context.Context, u model.JobUpdate) {
			s.recordJob(u)
			s.notifier.Notify(ctx, &pubsub.Event{
				Type:     pubsub.EventJobProgress,
				CycleID:  key.CycleID,
				ReportID: key.ReportID,
				JobID:    u.JobID,
				Status:   string(u.Status),
				Progress: u.Progress,
				Message:  u.Message,
				Data:     map[string]interface{}{"kind": string(kind)},
			})
		},
		OnSuccess: func(ctx context.Context, u model.JobUpdate) {
			s.recordJob(u)
			s.succeeded(ctx, key, userID, kind, u.JobID, u.Message)
		},
		OnFailed: func(ctx context.Context, u model.JobUpdate) {
			s.recordJob(u)
			msg := u.Message
			if msg == "" {
				msg = "Job failed"
			}
			s.log.Error().Str("key", key.String()).Str("job_id", u.JobID).Str("kind", string(kind)).Msg(msg)
			s.notifier.Notify(ctx, &pubsub.Event{
				Type:     pubsub.EventJobFailed,
				UserID:   userID,
				CycleID:  key.CycleID,
				ReportID: key.ReportID,
				JobID:    u.JobID,
				Status:   string(u.Status),
				Progress: u.Progress,
				Message:  msg,
				Data:     map[string]interface{}{"kind": string(kind)},
			})
		},
		OnCancelled: func(ctx context.Context, u model.JobUpdate) {
			s.recordJob(u)
			s.notifier.Notify(ctx, &pubsub.Event{
				Type:     pubsub.EventJobCancelled,
				UserID:   userID,
				CycleID:  key.CycleID,
				ReportID: key.ReportID,
				JobID:    u.JobID,
				Status:   string(u.Status),
				Progress: 0,
				Message:  "Job was cancelled",
				Data:     map[string]interface{}{"kind": string(kind)},
			})
		},
	}
}

// succeeded 成功路径：先刷新，再发一次性通知
func (s *ProfilingService) succeeded(ctx context.Context, key model.ReportKey, userID int64, kind model.JobKind, jobID, message string) {
	withResults := kind == model.JobKindExecuteProfiling
	if err := s.refresh(ctx, key, withResults); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("post-job refresh failed (non-fatal)")
	}

	eventType, fallback := pubsub.EventRulesGenerated, "Profiling rules generated"
	if withResults {
		eventType, fallback = pubsub.EventProfilingExecuted, "Profiling execution completed"
	}
	if message == "" {
		message = fallback
	}
	s.notifier.Notify(ctx, &pubsub.Event{
		Type:     eventType,
		UserID:   userID,
		CycleID:  key.CycleID,
		ReportID: key.ReportID,
		JobID:    jobID,
		Status:   string(model.JobCompleted),
		Progress: 100,
		Message:  message,
	})
}

// ResumeTracking 重启后继续轮询关闭时仍在运行的任务
func (s *ProfilingService) ResumeTracking(limit int) (int, error) {
	jobs, err := s.jobRepo.ListRunning(limit)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, job := range jobs {
		key := model.ReportKey{CycleID: job.CycleID, ReportID: job.ReportID}
		kind := model.JobKind(job.Kind)
		if err := s.tracker.Start(key, job.JobID, kind, s.hooks(key, job.UserID, kind)); err != nil {
			s.log.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to resume job tracking")
			continue
		}
		resumed++
	}
	return resumed, nil
}

// CurrentJob 优先返回正在轮询的任务，否则返回最近一次记录
func (s *ProfilingService) CurrentJob(key model.ReportKey) (*dto.JobView, error) {
	if snap, ok := s.tracker.Current(key); ok {
		return &dto.JobView{
			JobID:     snap.JobID,
			Kind:      string(snap.Kind),
			Status:    string(snap.Status),
			Progress:  snap.Progress,
			Message:   snap.Message,
			Live:      true,
			StartedAt: snap.StartedAt,
		}, nil
	}

	job, err := s.jobRepo.GetLatestByReport(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &dto.JobView{
		JobID:       job.JobID,
		Kind:        job.Kind,
		Status:      job.Status,
		Progress:    job.Progress,
		Message:     job.Message,
		StartedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// CancelJob 停止本地跟踪，后端任务继续运行
func (s *ProfilingService) CancelJob(key model.ReportKey) bool {
	return s.tracker.Cancel(key)
}

// Reconcile 同时重新拉取任务交接和规则决定并执行对账
// 已推进的报告不会发起任何后端调用
func (s *ProfilingService) Reconcile(ctx context.Context, key model.ReportKey, userID int64, quiet bool) (reconciler.Result, error) {
	if !key.Valid() {
		return reconciler.Result{}, ErrInvalidReport
	}

	advanced, err := s.reconciler.AlreadyAdvanced(ctx, key)
	if err != nil {
		return reconciler.Result{Outcome: reconciler.NoAction, Reason: reconciler.ReasonFlagUnavailable}, err
	}
	if advanced {
		return reconciler.Result{Outcome: reconciler.NoAction, Reason: reconciler.ReasonAlreadyAdvanced}, nil
	}

	var (
		assignments []model.Assignment
		decisions   []model.RuleDecision
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = s.backend.ListAssignments(gctx, model.AssignmentFilter{
			CycleID:        key.CycleID,
			ReportID:       key.ReportID,
			Phase:          model.PhaseDataProfiling,
			AssignmentType: model.AssignmentTypeRuleApproval,
		})
		return err
	})
	g.Go(func() error {
		var err error
		decisions, err = s.backend.GetRuleDecisions(gctx, key)
		return err
	})
	if err := g.Wait(); err != nil {
		return reconciler.Result{Outcome: reconciler.NoAction}, err
	}

	return s.reconciler.Reconcile(ctx, reconciler.Input{
		Key:         key,
		UserID:      userID,
		Phase:       model.PhaseDataProfiling,
		Decisions:   decisions,
		Assignments: assignments,
		Quiet:       quiet,
	})
}

// ResetWorkflow 清除 advancement flag（支持/调试用）
func (s *ProfilingService) ResetWorkflow(ctx context.Context, key model.ReportKey) error {
	if !key.Valid() {
		return ErrInvalidReport
	}
	if err := s.flags.Delete(ctx, key); err != nil {
		return err
	}
	s.log.Info().Str("key", key.String()).Msg("advancement flag reset")
	return nil
}

// Refresh 重新加载阶段指标、工作流统计和执行结果
func (s *ProfilingService) Refresh(ctx context.Context, key model.ReportKey) error {
	return s.refresh(ctx, key, true)
}

func (s *ProfilingService) refresh(ctx context.Context, key model.ReportKey, withResults bool) error {
	var (
		status  model.PhaseStatus
		stats   map[string]interface{}
		results map[string]interface{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = s.fetch(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		if stats, err = s.backend.GetWorkflowStats(gctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key.String()).Msg("workflow stats unavailable")
		}
		return nil
	})
	if withResults {
		g.Go(func() error {
			var err error
			if results, err = s.backend.GetExecutionResults(gctx, key); err != nil {
				s.log.Warn().Err(err).Str("key", key.String()).Msg("execution results unavailable")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(key)
	snap.Status = status
	if stats != nil {
		snap.WorkflowStats = stats
	}
	if results != nil {
		snap.ExecutionResults = results
	}
	snap.RefreshedAt = time.Now()
	return nil
}

func (s *ProfilingService) snapshotLocked(key model.ReportKey) *dto.ReportSnapshot {
	snap, ok := s.snapshots[key]
	if !ok {
		snap = &dto.ReportSnapshot{}
		s.snapshots[key] = snap
	}
	return snap
}

// Snapshot 返回最近一次刷新的数据副本
func (s *ProfilingService) Snapshot(key model.ReportKey) (*dto.ReportSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[key]
	if !ok {
		return nil, false
	}
	cp := *snap
	return &cp, true
}

// View 按角色返回页面数据
func (s *ProfilingService) View(ctx context.Context, key model.ReportKey, userID int64, role model.ViewerRole) (*dto.PageView, error) {
	if !key.Valid() {
		return nil, ErrInvalidReport
	}
	return s.router.Route(ctx, ViewRequest{Key: key, UserID: userID, Role: role})
}

// Wait 等待对账触发的后台刷新结束
func (s *ProfilingService) Wait() {
	s.reconciler.Wait()
}

func (s *ProfilingService) decisionSummary(ctx context.Context, key model.ReportKey, withPending bool) *dto.DecisionSummary {
	decisions, err := s.backend.GetRuleDecisions(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("rule decisions unavailable")
		return nil
	}
	approved, rejected, pending := reconciler.Partition(decisions)
	summary := &dto.DecisionSummary{
		Total:    len(decisions),
		Approved: len(approved),
		Rejected: len(rejected),
		Pending:  len(pending),
	}
	if withPending {
		summary.PendingRules = pending
	}
	return summary
}

func (s *ProfilingService) testerView(ctx context.Context, req ViewRequest) (*dto.PageView, error) {
	status, err := s.Status(ctx, req.Key, req.UserID)
	if err != nil {
		return nil, err
	}
	view := &dto.PageView{
		Status:    status,
		Decisions: s.decisionSummary(ctx, req.Key, false),
	}
	job, err := s.CurrentJob(req.Key)
	if err == nil {
		view.Job = job
	}
	view.Actions = testerActions(status, job != nil && job.Live)
	return view, nil
}

func (s *ProfilingService) reportOwnerView(ctx context.Context, req ViewRequest) (*dto.PageView, error) {
	status, err := s.Status(ctx, req.Key, req.UserID)
	if err != nil {
		return nil, err
	}
	view := &dto.PageView{
		Status:    status,
		Decisions: s.decisionSummary(ctx, req.Key, true),
	}
	if view.Decisions != nil && view.Decisions.Pending > 0 {
		view.Actions = []string{ActionReviewRules}
	}
	return view, nil
}

func (s *ProfilingService) dataOwnerView(ctx context.Context, req ViewRequest) (*dto.PageView, error) {
	status, err := s.Status(ctx, req.Key, req.UserID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.backend.ListAssignments(ctx, model.AssignmentFilter{
		CycleID:  req.Key.CycleID,
		ReportID: req.Key.ReportID,
		Role:     model.RoleDataOwner.BackendName(),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("assignments unavailable for data owner view")
	}
	return &dto.PageView{Status: status, Assignments: assignments, ReadOnly: true}, nil
}

func (s *ProfilingService) readOnlyView(ctx context.Context, req ViewRequest) (*dto.PageView, error) {
	status, err := s.Status(ctx, req.Key, req.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.PageView{Status: status, ReadOnly: true}, nil
}
