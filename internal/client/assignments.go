package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qs3c/regflow_go_server/internal/model"
)

const assignmentsPath = "/api/v1/universal-assignments/assignments"

// ListAssignments 按上下文过滤获取任务交接列表
func (c *Client) ListAssignments(ctx context.Context, filter model.AssignmentFilter) ([]model.Assignment, error) {
	q := url.Values{}
	if filter.CycleID > 0 {
		q.Set("cycle_id", strconv.FormatInt(filter.CycleID, 10))
	}
	if filter.ReportID > 0 {
		q.Set("report_id", strconv.FormatInt(filter.ReportID, 10))
	}
	if filter.Phase != "" {
		q.Set("phase", filter.Phase)
	}
	if filter.AssignmentType != "" {
		q.Set("assignment_type", filter.AssignmentType)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Role != "" {
		q.Set("role", filter.Role)
	}

	path := assignmentsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp []model.Assignment
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return resp, nil
}

func (c *Client) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	var resp model.Assignment
	if err := c.get(ctx, assignmentsPath+"/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AcknowledgeAssignment(ctx context.Context, id string) error {
	return c.put(ctx, assignmentsPath+"/"+url.PathEscape(id)+"/acknowledge", struct{}{}, nil)
}

func (c *Client) StartAssignment(ctx context.Context, id string) error {
	return c.put(ctx, assignmentsPath+"/"+url.PathEscape(id)+"/start", struct{}{}, nil)
}

// CompleteAssignment 完成任务交接，附带完成说明与上下文更新
func (c *Client) CompleteAssignment(ctx context.Context, id string, req model.AssignmentCompletion) error {
	return c.put(ctx, assignmentsPath+"/"+url.PathEscape(id)+"/complete", req, nil)
}
