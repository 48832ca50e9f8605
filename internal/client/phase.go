package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// phaseSegment 阶段名到后端路由前缀的映射
func phaseSegment(phase string) string {
	switch phase {
	case model.PhaseDataOwner:
		return "data-owner"
	default:
		return "data-profiling"
	}
}

func phasePath(phase string, key model.ReportKey, suffix string) string {
	return fmt.Sprintf("/api/v1/%s/cycles/%d/reports/%d/%s", phaseSegment(phase), key.CycleID, key.ReportID, suffix)
}

// GetLegacyStatus 获取阶段专用状态接口
func (c *Client) GetLegacyStatus(ctx context.Context, key model.ReportKey, phase string) (*model.LegacyPhaseStatus, error) {
	var resp model.LegacyPhaseStatus
	if err := c.get(ctx, phasePath(phase, key, "status"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUnifiedStatus 获取统一状态接口中的阶段条目
func (c *Client) GetUnifiedStatus(ctx context.Context, key model.ReportKey, phase string) (*model.UnifiedStatus, error) {
	path := fmt.Sprintf("/api/v1/status/cycles/%d/reports/%d/phases/%s", key.CycleID, key.ReportID, url.PathEscape(phase))

	var resp model.UnifiedStatus
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartPhase 开始阶段；已开始时后端返回 409
func (c *Client) StartPhase(ctx context.Context, key model.ReportKey, phase string) error {
	return c.post(ctx, phasePath(phase, key, "start"), struct{}{}, nil)
}

// CompletePhase 完成阶段
func (c *Client) CompletePhase(ctx context.Context, key model.ReportKey, phase, notes string) error {
	return c.post(ctx, phasePath(phase, key, "complete"), completePhaseRequest{CompletionNotes: notes}, nil)
}

// GenerateRules 启动规则生成任务
func (c *Client) GenerateRules(ctx context.Context, key model.ReportKey) (*LaunchResponse, error) {
	var resp LaunchResponse
	if err := c.post(ctx, phasePath(model.PhaseDataProfiling, key, "generate-rules"), struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecuteProfiling 启动规则执行任务
func (c *Client) ExecuteProfiling(ctx context.Context, key model.ReportKey) (*LaunchResponse, error) {
	var resp LaunchResponse
	if err := c.post(ctx, phasePath(model.PhaseDataProfiling, key, "execute"), struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdvanceWorkflow 更新阶段的 workflow_step 元数据
func (c *Client) AdvanceWorkflow(ctx context.Context, key model.ReportKey, fromStep, toStep string) error {
	req := advanceWorkflowRequest{FromStep: fromStep, ToStep: toStep}
	return c.put(ctx, phasePath(model.PhaseDataProfiling, key, "advance-workflow"), req, nil)
}

// GetRuleDecisions 获取规则的审批状态
func (c *Client) GetRuleDecisions(ctx context.Context, key model.ReportKey) ([]model.RuleDecision, error) {
	var resp []model.RuleDecision
	if err := c.get(ctx, phasePath(model.PhaseDataProfiling, key, "rules/decisions"), &resp); err != nil {
		return nil, err
	}
	for i := range resp {
		resp[i].ReportOwnerStatus = model.ParseDecision(string(resp[i].ReportOwnerStatus))
		resp[i].TesterStatus = model.ParseDecision(string(resp[i].TesterStatus))
	}
	return resp, nil
}

func (c *Client) GetWorkflowStats(ctx context.Context, key model.ReportKey) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.get(ctx, phasePath(model.PhaseDataProfiling, key, "workflow-stats"), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetExecutionResults(ctx context.Context, key model.ReportKey) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.get(ctx, phasePath(model.PhaseDataProfiling, key, "execution-results"), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
