package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/internal/api/middleware"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
	"github.com/qs3c/regflow_go_server/internal/pkg/response"
	"github.com/qs3c/regflow_go_server/internal/service"
)

type DataOwnerHandler struct {
	dataOwnerService *service.DataOwnerService
}

func NewDataOwnerHandler(dataOwnerService *service.DataOwnerService) *DataOwnerHandler {
	return &DataOwnerHandler{
		dataOwnerService: dataOwnerService,
	}
}

// Status 数据负责人识别阶段状态
// GET /api/v1/cycles/:cycle_id/reports/:report_id/data-owner/status
func (h *DataOwnerHandler) Status(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	status, err := h.dataOwnerService.Status(c.Request.Context(), key, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, status)
}

// StartPhase POST /api/v1/cycles/:cycle_id/reports/:report_id/data-owner/start
func (h *DataOwnerHandler) StartPhase(c *gin.Context) {
	key, ok := reportKey(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	resp, err := h.dataOwnerService.StartPhase(c.Request.Context(), key, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.ConflictWarning(c, resp.Warning, resp)
}

// CompletePhase POST /api/v1/cycles/:cycle_id/reports/:report_id/data-owner/complete
func (h *DataOwnerHandler) CompletePhase(c *gin.Context) {
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

	resp, err := h.dataOwnerService.CompletePhase(c.Request.Context(), key, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Phase completed", resp)
}
