package model

import (
	"strings"
	"time"
)

// JobStatus 后端异步任务状态
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func ParseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "success", "succeeded":
		return JobCompleted
	case "failed", "error":
		return JobFailed
	case "cancelled", "canceled":
		return JobCancelled
	default:
		return JobRunning
	}
}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobKind 任务类型
type JobKind string

const (
	JobKindGenerateRules    JobKind = "generate_rules"
	JobKindExecuteProfiling JobKind = "execute_profiling"
)

// JobStatusReport 任务状态接口的返回
type JobStatusReport struct {
	Status   string `json:"status"`
	Progress *int   `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// JobUpdate 轮询得到的一次观测
type JobUpdate struct {
	JobID    string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Terminal bool      `json:"terminal"`
}

// TrackedJob 本地跟踪的后端任务
type TrackedJob struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	JobID       string     `gorm:"size:100;not null;uniqueIndex" json:"job_id"`
	CycleID     int64      `gorm:"not null;index:idx_tracked_report" json:"cycle_id"`
	ReportID    int64      `gorm:"not null;index:idx_tracked_report" json:"report_id"`
	UserID      int64      `gorm:"index" json:"user_id"`
	Kind        string     `gorm:"size:30;not null" json:"kind"`
	Status      string     `gorm:"size:20;default:running;index" json:"status"` // running, completed, failed, cancelled
	Progress    int        `gorm:"default:0" json:"progress"`
	Message     string     `gorm:"type:text" json:"message,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (TrackedJob) TableName() string {
	return "tracked_jobs"
}
