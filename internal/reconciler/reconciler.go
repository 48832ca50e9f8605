// Package reconciler decides when the tester → report owner rule review should auto-advance
// and performs the advancement side effects at most once per (cycle, report).
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/notify"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
)

const CompletionNote = "All rules approved by report owner - ready for profiling execution"

const refreshTimeout = 30 * time.Second

// Outcome is the result of one reconciliation.
type Outcome string

const (
	Advanced       Outcome = "advanced"
	RejectedNotice Outcome = "rejected_notice"
	NoAction       Outcome = "no_action"
)

// Reasons for NoAction.
const (
	ReasonAlreadyAdvanced = "already_advanced"
	ReasonFlagUnavailable = "flag_unavailable"
	ReasonNotEligible     = "not_eligible"
	ReasonPending         = "pending_decisions"
	ReasonNoDecisions     = "no_decisions"
)

type AssignmentCompleter interface {
	CompleteAssignment(ctx context.Context, id string, req model.AssignmentCompletion) error
}

type WorkflowAdvancer interface {
	AdvanceWorkflow(ctx context.Context, key model.ReportKey, fromStep, toStep string) error
}

// Refresher reloads phase metrics, workflow stats and execution results for a report.
type Refresher interface {
	Refresh(ctx context.Context, key model.ReportKey) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, key model.ReportKey) error

func (f RefresherFunc) Refresh(ctx context.Context, key model.ReportKey) error { return f(ctx, key) }

// Input is one logical fetch cycle: decisions and assignments must come from the same refetch.
type Input struct {
	Key    model.ReportKey
	UserID int64
	// Phase defaults to Data Profiling.
	Phase     string
	Decisions []model.RuleDecision
	// Assignment is the eligibility context. When nil it is looked up in Assignments.
	Assignment  *model.Assignment
	Assignments []model.Assignment
	// Quiet suppresses the rules_rejected notice (background sweeps).
	Quiet bool
}

type Result struct {
	Outcome             Outcome `json:"outcome"`
	Reason              string  `json:"reason,omitempty"`
	Approved            int     `json:"approved"`
	Rejected            int     `json:"rejected"`
	Pending             int     `json:"pending"`
	AssignmentCompleted bool    `json:"assignment_completed"`
}

type Reconciler struct {
	assignments AssignmentCompleter
	advancer    WorkflowAdvancer
	flags       flagstore.Store
	refresher   Refresher
	notifier    notify.Notifier
	log         zerolog.Logger

	mu    sync.Mutex
	locks map[model.ReportKey]*sync.Mutex
	wg    sync.WaitGroup
}

func New(
	assignments AssignmentCompleter,
	advancer WorkflowAdvancer,
	flags flagstore.Store,
	refresher Refresher,
	notifier notify.Notifier,
	log zerolog.Logger,
) *Reconciler {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Reconciler{
		assignments: assignments,
		advancer:    advancer,
		flags:       flags,
		refresher:   refresher,
		notifier:    notifier,
		log:         log.With().Str("component", "reconciler").Logger(),
		locks:       make(map[model.ReportKey]*sync.Mutex),
	}
}

func (r *Reconciler) lockFor(key model.ReportKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// AlreadyAdvanced reads the advancement flag. Callers use it to skip refetching entirely.
func (r *Reconciler) AlreadyAdvanced(ctx context.Context, key model.ReportKey) (bool, error) {
	return r.flags.Get(ctx, key)
}

// Reconcile evaluates the guards in order and runs the advancement sequence when every
// rule is approved by the report owner.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (Result, error) {
	l := r.lockFor(in.Key)
	l.Lock()
	defer l.Unlock()

	advanced, err := r.flags.Get(ctx, in.Key)
	if err != nil {
		return Result{Outcome: NoAction, Reason: ReasonFlagUnavailable}, fmt.Errorf("failed to read advancement flag: %w", err)
	}
	if advanced {
		return Result{Outcome: NoAction, Reason: ReasonAlreadyAdvanced}, nil
	}

	phase := in.Phase
	if phase == "" {
		phase = model.PhaseDataProfiling
	}

	assignment := in.Assignment
	if assignment == nil {
		assignment = RuleApprovalContext(in.Assignments, in.Key, phase)
	}
	if !Eligible(assignment) {
		return Result{Outcome: NoAction, Reason: ReasonNotEligible}, nil
	}

	approved, rejected, pending := Partition(in.Decisions)
	res := Result{
		Approved: len(approved),
		Rejected: len(rejected),
		Pending:  len(pending),
	}

	switch {
	case len(approved) > 0 && len(rejected) == 0 && len(pending) == 0:
		res.Outcome = Advanced
		err := r.advance(ctx, in, phase, &res)
		return res, err
	case len(rejected) > 0:
		res.Outcome = RejectedNotice
		if !in.Quiet {
			r.notifier.Notify(ctx, &pubsub.Event{
				Type:     pubsub.EventRulesRejected,
				UserID:   in.UserID,
				CycleID:  in.Key.CycleID,
				ReportID: in.Key.ReportID,
				Message:  fmt.Sprintf("%d rules rejected by report owner - tester rework required", len(rejected)),
				Data:     map[string]interface{}{"rejected_count": len(rejected)},
			})
		}
		return res, nil
	case len(pending) > 0:
		res.Outcome = NoAction
		res.Reason = ReasonPending
		return res, nil
	default:
		res.Outcome = NoAction
		res.Reason = ReasonNoDecisions
		return res, nil
	}
}

// advance completes the open assignment, advances the workflow step, persists the flag,
// refreshes and notifies. Earlier steps are never rolled back.
func (r *Reconciler) advance(ctx context.Context, in Input, phase string, res *Result) error {
	log := r.log.With().
		Int64("cycle_id", in.Key.CycleID).
		Int64("report_id", in.Key.ReportID).
		Logger()

	if open := OpenRuleApproval(in.Assignments, in.Key, phase); open != nil {
		err := r.assignments.CompleteAssignment(ctx, open.AssignmentID.String(), model.AssignmentCompletion{
			CompletionNotes: CompletionNote,
			ContextUpdates: map[string]interface{}{
				"workflow_step": model.WorkflowStepReadyForProfilingExe,
			},
		})
		if err != nil {
			log.Error().Err(err).Str("assignment_id", open.AssignmentID.String()).Msg("failed to complete rule approval assignment")
		} else {
			res.AssignmentCompleted = true
		}
	} else {
		log.Info().Msg("no open rule approval assignment, continuing advancement")
	}

	if err := r.advancer.AdvanceWorkflow(ctx, in.Key,
		model.WorkflowStepRuleApprovalComplete, model.WorkflowStepReadyForExecution); err != nil {
		log.Warn().Err(err).Str("step", model.WorkflowStepReadyForExecution).Msg("failed to advance workflow step (non-fatal)")
	}

	var flagErr error
	if err := r.flags.Set(ctx, in.Key, true); err != nil {
		log.Error().Err(err).Msg("failed to persist advancement flag")
		flagErr = fmt.Errorf("failed to persist advancement flag: %w", err)
	}

	r.refreshAsync(ctx, in.Key, log)

	r.notifier.Notify(ctx, &pubsub.Event{
		Type:     pubsub.EventRulesApproved,
		UserID:   in.UserID,
		CycleID:  in.Key.CycleID,
		ReportID: in.Key.ReportID,
		Message:  fmt.Sprintf("All %d rules approved by report owner - ready for profiling execution", res.Approved),
		Data:     map[string]interface{}{"approved_count": res.Approved},
	})

	log.Info().Int("approved", res.Approved).Bool("assignment_completed", res.AssignmentCompleted).Msg("rule review advanced")
	return flagErr
}

func (r *Reconciler) refreshAsync(ctx context.Context, key model.ReportKey, log zerolog.Logger) {
	if r.refresher == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		if err := r.refresher.Refresh(rctx, key); err != nil {
			log.Warn().Err(err).Msg("post-advancement refresh failed (non-fatal)")
		}
	}()
}

// Wait blocks until background refreshes finish.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}
