package dto

import (
	"time"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// CompletePhaseRequest 完成阶段请求
type CompletePhaseRequest struct {
	Notes string `json:"notes,omitempty" binding:"omitempty,max=2000"`
}

// PhaseActionResponse 阶段操作结果；Warning 非空表示可恢复的冲突
type PhaseActionResponse struct {
	Status  model.PhaseStatus `json:"status"`
	Warning string            `json:"warning,omitempty"`
}

// LaunchResponse 任务启动结果
type LaunchResponse struct {
	JobID     string `json:"job_id,omitempty"`
	Immediate bool   `json:"immediate"`
	Message   string `json:"message,omitempty"`
}

// JobView 当前任务
type JobView struct {
	JobID       string     `json:"job_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Live        bool       `json:"live"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ReconcileRequest 对账请求
type ReconcileRequest struct {
	Quiet bool `json:"quiet,omitempty"`
}

// AssignmentQuery 任务交接列表过滤条件
type AssignmentQuery struct {
	CycleID        int64  `form:"cycle_id" binding:"omitempty,min=1"`
	ReportID       int64  `form:"report_id" binding:"omitempty,min=1"`
	Phase          string `form:"phase" binding:"omitempty,max=100"`
	AssignmentType string `form:"assignment_type" binding:"omitempty,max=100"`
	Status         string `form:"status" binding:"omitempty,max=30"`
}

// CompleteAssignmentRequest 完成任务交接请求
type CompleteAssignmentRequest struct {
	Notes          string                 `json:"notes,omitempty" binding:"omitempty,max=2000"`
	ContextUpdates map[string]interface{} `json:"context_updates,omitempty"`
}

// ActivityRequest 活动开始/完成请求
type ActivityRequest struct {
	CycleID   int64  `json:"cycle_id" binding:"required,min=1"`
	ReportID  int64  `json:"report_id" binding:"required,min=1"`
	PhaseName string `json:"phase_name" binding:"required,max=100"`
	Notes     string `json:"notes,omitempty" binding:"omitempty,max=2000"`
}

// DecisionSummary 规则审批统计
type DecisionSummary struct {
	Total        int                  `json:"total"`
	Approved     int                  `json:"approved"`
	Rejected     int                  `json:"rejected"`
	Pending      int                  `json:"pending"`
	PendingRules []model.RuleDecision `json:"pending_rules,omitempty"`
}

// PageView 按角色渲染的页面数据
type PageView struct {
	Role        model.ViewerRole   `json:"role"`
	Status      model.PhaseStatus  `json:"status"`
	Actions     []string           `json:"actions"`
	Decisions   *DecisionSummary   `json:"decisions,omitempty"`
	Assignments []model.Assignment `json:"assignments,omitempty"`
	Job         *JobView           `json:"job,omitempty"`
	ReadOnly    bool               `json:"read_only"`
}

// ReportSnapshot 最近一次刷新的报告数据
type ReportSnapshot struct {
	Status           model.PhaseStatus      `json:"status"`
	WorkflowStats    map[string]interface{} `json:"workflow_stats,omitempty"`
	ExecutionResults map[string]interface{} `json:"execution_results,omitempty"`
	RefreshedAt      time.Time              `json:"refreshed_at"`
}
