package service

import (
	"context"
	"errors"

	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
)

var ErrUnsupportedRole = errors.New("unsupported viewer role")

// 页面可执行的操作
const (
	ActionStartPhase       = "start_phase"
	ActionGenerateRules    = "generate_rules"
	ActionExecuteProfiling = "execute_profiling"
	ActionCompletePhase    = "complete_phase"
	ActionReviewRules      = "review_rules"
)

type ViewRequest struct {
	Key    model.ReportKey
	UserID int64
	Role   model.ViewerRole
}

type ViewHandler func(ctx context.Context, req ViewRequest) (*dto.PageView, error)

// ViewRouter 按查看者角色分发页面视图
type ViewRouter struct {
	handlers map[model.ViewerRole]ViewHandler
}

func NewViewRouter() *ViewRouter {
	return &ViewRouter{handlers: make(map[model.ViewerRole]ViewHandler)}
}

func (r *ViewRouter) Handle(role model.ViewerRole, h ViewHandler) *ViewRouter {
	r.handlers[role] = h
	return r
}

func (r *ViewRouter) Route(ctx context.Context, req ViewRequest) (*dto.PageView, error) {
	h, ok := r.handlers[req.Role]
	if !ok {
		return nil, ErrUnsupportedRole
	}
	view, err := h(ctx, req)
	if err != nil {
		return nil, err
	}
	view.Role = req.Role
	if view.Actions == nil {
		view.Actions = []string{}
	}
	return view, nil
}

// testerActions 测试人员在当前阶段状态下可执行的操作
func testerActions(status model.PhaseStatus, jobRunning bool) []string {
	actions := []string{}
	switch status.PhaseStatus {
	case model.PhaseNotStarted:
		actions = append(actions, ActionStartPhase)
	case model.PhaseInProgress:
		if !jobRunning {
			actions = append(actions, ActionGenerateRules)
		}
	case model.PhaseReadyForExecution:
		if !jobRunning {
			actions = append(actions, ActionExecuteProfiling)
		}
	}
	if status.CanProceedToNext && status.PhaseStatus != model.PhaseComplete {
		actions = append(actions, ActionCompletePhase)
	}
	return actions
}
