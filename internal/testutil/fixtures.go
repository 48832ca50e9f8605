package testutil

import (
	"fmt"
	"strconv"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// TestKey 测试用的 (cycle, report)
var TestKey = model.ReportKey{CycleID: 58, ReportID: 156}

// Decisions 按给定的 report owner 状态构造规则决定
func Decisions(statuses ...model.DecisionStatus) []model.RuleDecision {
	out := make([]model.RuleDecision, len(statuses))
	for i, s := range statuses {
		out[i] = model.RuleDecision{
			RuleID:            model.ID(strconv.Itoa(i + 1)),
			RuleName:          fmt.Sprintf("rule_%d", i+1),
			TesterStatus:      model.DecisionApproved,
			ReportOwnerStatus: s,
		}
	}
	return out
}

// RuleApproval 构造 Rule Approval 任务交接
func RuleApproval(key model.ReportKey, opts ...func(*model.Assignment)) model.Assignment {
	a := model.Assignment{
		AssignmentID:   "asg-1",
		AssignmentType: model.AssignmentTypeRuleApproval,
		Title:          "Approve profiling rules",
		Status:         model.AssignmentAssigned,
		FromRole:       "Tester",
		ToRole:         "Report Owner",
		ContextData: model.AssignmentContext{
			CycleID:      key.CycleID,
			ReportID:     key.ReportID,
			Phase:        model.PhaseDataProfiling,
			WorkflowStep: model.WorkflowStepTesterApprovedRules,
		},
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func WithAssignmentID(id string) func(*model.Assignment) {
	return func(a *model.Assignment) {
		a.AssignmentID = model.ID(id)
	}
}

func WithAssignmentStatus(status model.AssignmentStatus) func(*model.Assignment) {
	return func(a *model.Assignment) {
		a.Status = status
	}
}

func WithWorkflowStep(step string) func(*model.Assignment) {
	return func(a *model.Assignment) {
		a.ContextData.WorkflowStep = step
	}
}

func WithAssignmentType(typ string) func(*model.Assignment) {
	return func(a *model.Assignment) {
		a.AssignmentType = typ
	}
}
