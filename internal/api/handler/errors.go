package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/pkg/response"
	"github.com/qs3c/regflow_go_server/internal/service"
)

// reportKey 解析路径中的 cycle_id / report_id
func reportKey(c *gin.Context) (model.ReportKey, bool) {
	cycleID, err1 := strconv.ParseInt(c.Param("cycle_id"), 10, 64)
	reportID, err2 := strconv.ParseInt(c.Param("report_id"), 10, 64)
	key := model.ReportKey{CycleID: cycleID, ReportID: reportID}
	if err1 != nil || err2 != nil || !key.Valid() {
		response.ParamError(c, "Invalid cycle or report id")
		return key, false
	}
	return key, true
}

// writeError 将服务层错误映射为统一响应码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidReport), errors.Is(err, service.ErrInvalidActivity):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrUnsupportedRole):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrAssignmentCompleted):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrLaunchRejected):
		response.ConflictError(c, err.Error())
	case client.StatusCode(err) != 0:
		response.UpstreamError(c, err)
	default:
		response.ServerError(c, "")
	}
}
