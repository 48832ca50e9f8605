package client

import (
	"context"
	"net/url"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// GetJobStatus 查询异步任务状态
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusReport, error) {
	var resp model.JobStatusReport
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(jobID)+"/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

const activitiesPath = "/api/v1/activity-management/activities/"

// StartActivity 通用活动开始
func (c *Client) StartActivity(ctx context.Context, activityID string, req ActivityRequest) (*ActivityResponse, error) {
	var resp ActivityResponse
	if err := c.post(ctx, activitiesPath+url.PathEscape(activityID)+"/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteActivity 通用活动完成
func (c *Client) CompleteActivity(ctx context.Context, activityID string, req ActivityRequest) (*ActivityResponse, error) {
	var resp ActivityResponse
	if err := c.post(ctx, activitiesPath+url.PathEscape(activityID)+"/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
