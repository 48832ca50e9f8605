package client

import "github.com/qs3c/regflow_go_server/internal/model"

// ID 兼容字符串和数字形式的标识符
type ID = model.ID

// LaunchResponse generate-rules 与 execute 的返回
// 异步时带 JobID，同步完成时 Success 为 true
type LaunchResponse struct {
	JobID   ID     `json:"job_id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (r *LaunchResponse) Async() bool {
	return r != nil && r.JobID != ""
}

type completePhaseRequest struct {
	CompletionNotes string `json:"completion_notes,omitempty"`
}

type advanceWorkflowRequest struct {
	FromStep string `json:"from_step"`
	ToStep   string `json:"to_step"`
}

// ActivityRequest 活动所属的阶段
type ActivityRequest struct {
	CycleID   int64  `json:"cycle_id"`
	ReportID  int64  `json:"report_id"`
	PhaseName string `json:"phase_name"`
	Notes     string `json:"notes,omitempty"`
}

// ActivityResponse 活动状态变更后的后端视图
type ActivityResponse struct {
	ActivityID ID     `json:"activity_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}
