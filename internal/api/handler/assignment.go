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

type AssignmentHandler struct {
	assignmentService *service.AssignmentService
}

func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
	}
}

// List 当前角色的任务交接
// GET /api/v1/assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	var q dto.AssignmentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	items, err := h.assignmentService.ListAssignments(c.Request.Context(), middleware.GetRole(c), q)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, items)
}

// Acknowledge POST /api/v1/assignments/:id/acknowledge
func (h *AssignmentHandler) Acknowledge(c *gin.Context) {
	h.transition(c, h.assignmentService.Acknowledge)
}

// Start POST /api/v1/assignments/:id/start
func (h *AssignmentHandler) Start(c *gin.Context) {
	h.transition(c, h.assignmentService.Start)
}

// Complete POST /api/v1/assignments/:id/complete
func (h *AssignmentHandler) Complete(c *gin.Context) {
	var req dto.CompleteAssignmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	a, err := h.assignmentService.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Assignment completed", a)
}

func (h *AssignmentHandler) transition(c *gin.Context, apply func(ctx context.Context, id string) (*model.Assignment, error)) {
	a, err := apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, a)
}

// StartActivity POST /api/v1/activities/:id/start
func (h *AssignmentHandler) StartActivity(c *gin.Context) {
	var req dto.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.assignmentService.StartActivity(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// CompleteActivity POST /api/v1/activities/:id/complete
func (h *AssignmentHandler) CompleteActivity(c *gin.Context) {
	var req dto.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.assignmentService.CompleteActivity(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}
