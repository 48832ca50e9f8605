package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/internal/api/middleware"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
	"github.com/qs3c/regflow_go_server/internal/pkg/response"
	"github.com/qs3c/regflow_go_server/internal/service"
)

type ProfilingHandler struct {
	profilingService *service.ProfilingService
}

func NewProfilingHandler(profilingService *service.ProfilingService) *ProfilingHandler {
	return &ProfilingHandler{
		profilingService: profilingService,
	}
}

// Status 阶段状态
// GET /api/v1/cycles/:cycle_id/reports/:report_id/profiling/status
func (h *ProfilingHandler) Status(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	status, err := h.profilingService.Status(c.Request.Context(), key, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, status)
}

// StartPhase 开始阶段；409 作为警告返回
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/start
func (h *ProfilingHandler) StartPhase(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	resp, err := h.profilingService.StartPhase(c.Request.Context(), key, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.ConflictWarning(c, resp.Warning, resp)
}

// CompletePhase 完成阶段
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/complete
func (h *ProfilingHandler) CompletePhase(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}

	var req dto.CompletePhaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	resp, err := h.profilingService.CompletePhase(c.Request.Context(), key, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Phase completed", resp)
}

// GenerateRules 启动规则生成
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/generate-rules
func (h *ProfilingHandler) GenerateRules(c *gin.Context) {
	h.launch(c, h.profilingService.GenerateRules)
}

// ExecuteProfiling 启动规则执行
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/execute
func (h *ProfilingHandler) ExecuteProfiling(c *gin.Context) {
	h.launch(c, h.profilingService.ExecuteProfiling)
}

type launcher func(ctx context.Context, key model.ReportKey, userID int64) (*dto.LaunchResponse, error)

func (h *ProfilingHandler) launch(c *gin.Context, start launcher) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	resp, err := start(c.Request.Context(), key, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// GetJob 当前任务
// GET /api/v1/cycles/:cycle_id/reports/:report_id/profiling/job
func (h *ProfilingHandler) GetJob(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}

	job, err := h.profilingService.CurrentJob(key)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, job)
}

// CancelJob 停止本地轮询（后端任务不受影响）
// DELETE /api/v1/cycles/:cycle_id/reports/:report_id/profiling/job
func (h *ProfilingHandler) CancelJob(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	response.Success(c, gin.H{"cancelled": h.profilingService.CancelJob(key)})
}

// Reconcile 规则审批对账
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/reconcile
func (h *ProfilingHandler) Reconcile(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req dto.ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	res, err := h.profilingService.Reconcile(c.Request.Context(), key, userID, req.Quiet)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// ResetWorkflow 清除 advancement flag
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/reset-workflow
func (h *ProfilingHandler) ResetWorkflow(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	if err := h.profilingService.ResetWorkflow(c.Request.Context(), key); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Workflow advancement reset", nil)
}

// Refresh 重新加载阶段指标、统计与执行结果
// POST /api/v1/cycles/:cycle_id/reports/:report_id/profiling/refresh
func (h *ProfilingHandler) Refresh(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	if err := h.profilingService.Refresh(c.Request.Context(), key); err != nil {
		writeError(c, err)
		return
	}
	snap, _ := h.profilingService.Snapshot(key)
	response.Success(c, snap)
}

// View 按角色的页面数据
// GET /api/v1/cycles/:cycle_id/reports/:report_id/profiling/view
func (h *ProfilingHandler) View(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	view, err := h.profilingService.View(c.Request.Context(), key, userID, middleware.GetRole(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, view)
}
