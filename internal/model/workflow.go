package model

import (
	"fmt"
	"strings"
	"time"
)

// 阶段名称
const (
	PhaseDataProfiling = "Data Profiling"
	PhaseDataOwner     = "Data Owner Identification"
)

// 工作流步骤
const (
	WorkflowStepTesterApprovedRules  = "tester_approved_rules_for_report_owner_review"
	WorkflowStepReadyForProfilingExe = "ready_for_profiling_execution"
	WorkflowStepRuleApprovalComplete = "rule_approval_complete"
	WorkflowStepReadyForExecution    = "ready_for_execution"
)

const AssignmentTypeRuleApproval = "Rule Approval"

// ReportKey 标识一个 (cycle, report)
type ReportKey struct {
	CycleID  int64 `json:"cycle_id"`
	ReportID int64 `json:"report_id"`
}

func (k ReportKey) String() string {
	return fmt.Sprintf("%d:%d", k.CycleID, k.ReportID)
}

func (k ReportKey) Valid() bool {
	return k.CycleID > 0 && k.ReportID > 0
}

// PhaseState 后端返回的阶段状态
type PhaseState string

const (
	PhaseNotStarted        PhaseState = "Not Started"
	PhaseInProgress        PhaseState = "In Progress"
	PhaseReadyForExecution PhaseState = "Ready for Execution"
	PhaseComplete          PhaseState = "Complete"
)

// ParsePhaseState 兼容展示文案和 snake_case 标识
// 未知或空值视为 PhaseNotStarted
func ParsePhaseState(s string) PhaseState {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "in progress", "started":
		return PhaseInProgress
	case "ready for execution":
		return PhaseReadyForExecution
	case "complete", "completed":
		return PhaseComplete
	default:
		return PhaseNotStarted
	}
}

// Advanced 阶段是否已经越过规则审批完成点
func (s PhaseState) Advanced() bool {
	return s == PhaseReadyForExecution || s == PhaseComplete
}

// PhaseStatus 某个 (cycle, report) 的阶段状态视图
type PhaseStatus struct {
	CycleID             int64      `json:"cycle_id"`
	ReportID            int64      `json:"report_id"`
	Phase               string     `json:"phase"`
	PhaseStatus         PhaseState `json:"phase_status"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	TotalAttributes     int        `json:"total_attributes"`
	AttributesWithRules int        `json:"attributes_with_rules"`
	TotalRules          int        `json:"total_rules"`
	ApprovedRules       int        `json:"approved_rules"`
	RejectedRules       int        `json:"rejected_rules"`
	PendingRules        int        `json:"pending_rules"`
	TotalSamples        int        `json:"total_samples"`
	TotalLOBs           int        `json:"total_lobs"`
	CanProceedToNext    bool       `json:"can_proceed_to_next"`
	Source              string     `json:"source"` // unified, legacy, none
}

// UnifiedStatus 统一状态接口中的阶段条目
type UnifiedStatus struct {
	PhaseName   string           `json:"phase_name"`
	PhaseStatus string           `json:"phase_status"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Metadata    *UnifiedMetadata `json:"metadata,omitempty"`
}

type UnifiedMetadata struct {
	TotalAttributes     int  `json:"total_attributes"`
	AttributesWithRules int  `json:"attributes_with_rules"`
	TotalRules          int  `json:"total_rules"`
	ApprovedRules       int  `json:"approved_rules"`
	RejectedRules       int  `json:"rejected_rules"`
	PendingRules        int  `json:"pending_rules"`
	TotalSamples        int  `json:"total_samples"`
	TotalLOBs           int  `json:"total_lobs"`
	CanProceedToNext    bool `json:"can_proceed_to_next"`
}

// LegacyPhaseStatus 阶段专用状态接口的返回，所有字段都可能缺失
type LegacyPhaseStatus struct {
	PhaseStatus         *string    `json:"phase_status,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	TotalAttributes     *int       `json:"total_attributes,omitempty"`
	AttributesWithRules *int       `json:"attributes_with_rules,omitempty"`
	TotalRules          *int       `json:"total_profiling_rules,omitempty"`
	ApprovedRules       *int       `json:"approved_rules,omitempty"`
	RejectedRules       *int       `json:"rejected_rules,omitempty"`
	PendingRules        *int       `json:"pending_rules,omitempty"`
	TotalSamples        *int       `json:"total_samples,omitempty"`
	TotalLOBs           *int       `json:"total_lobs,omitempty"`
	CanProceedToNext    *bool      `json:"can_proceed_to_next,omitempty"`
}

// AssignmentStatus 任务交接状态
type AssignmentStatus string

const (
	AssignmentAssigned     AssignmentStatus = "Assigned"
	AssignmentAcknowledged AssignmentStatus = "Acknowledged"
	AssignmentInProgress   AssignmentStatus = "In Progress"
	AssignmentCompleted    AssignmentStatus = "Completed"
)

func (s AssignmentStatus) IsOpen() bool {
	switch s {
	case AssignmentAssigned, AssignmentAcknowledged, AssignmentInProgress:
		return true
	}
	return false
}

type AssignmentContext struct {
	CycleID      int64  `json:"cycle_id"`
	ReportID     int64  `json:"report_id"`
	Phase        string `json:"phase"`
	WorkflowStep string `json:"workflow_step,omitempty"`
}

// Assignment 角色之间的任务交接
type Assignment struct {
	AssignmentID   ID                `json:"assignment_id"`
	AssignmentType string            `json:"assignment_type"`
	Title          string            `json:"title,omitempty"`
	Status         AssignmentStatus  `json:"status"`
	FromRole       string            `json:"from_role,omitempty"`
	ToRole         string            `json:"to_role,omitempty"`
	ContextData    AssignmentContext `json:"context_data"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

func (a *Assignment) Matches(key ReportKey, phase string) bool {
	return a.ContextData.CycleID == key.CycleID &&
		a.ContextData.ReportID == key.ReportID &&
		a.ContextData.Phase == phase
}

// AssignmentFilter 任务列表查询条件
type AssignmentFilter struct {
	CycleID        int64
	ReportID       int64
	Phase          string
	AssignmentType string
	Status         AssignmentStatus
	Role           string
}

// AssignmentCompletion 完成任务交接的请求体
type AssignmentCompletion struct {
	CompletionNotes string                 `json:"completion_notes"`
	ContextUpdates  map[string]interface{} `json:"context_updates,omitempty"`
}

// DecisionStatus 规则审批状态
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "PENDING"
	DecisionApproved DecisionStatus = "APPROVED"
	DecisionRejected DecisionStatus = "REJECTED"
)

// ParseDecision 忽略大小写；空值或未知值视为待审批
func ParseDecision(s string) DecisionStatus {
	switch DecisionStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionApproved:
		return DecisionApproved
	case DecisionRejected:
		return DecisionRejected
	default:
		return DecisionPending
	}
}

type RuleDecision struct {
	RuleID            ID             `json:"rule_id"`
	RuleName          string         `json:"rule_name,omitempty"`
	AttributeName     string         `json:"attribute_name,omitempty"`
	TesterStatus      DecisionStatus `json:"tester_status"`
	ReportOwnerStatus DecisionStatus `json:"report_owner_status"`
}
