package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/internal/client"
)

// 错误码定义
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeConflict         = 1004
	CodeDuplicateAction  = 1005
	CodeServerError      = 5000
	CodeUpstreamError    = 5002
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "Invalid parameters",
	CodeAuthFailed:       "Authentication failed",
	CodePermissionDenied: "Permission denied",
	CodeResourceNotFound: "Resource not found",
	CodeConflict:         "Resource state conflict",
	CodeDuplicateAction:  "Duplicate action",
	CodeServerError:      "Internal server error",
	CodeUpstreamError:    "Regulatory backend request failed",
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// ConflictWarning 成功响应，message 携带可恢复的 409 警告
func ConflictWarning(c *gin.Context, warning string, data interface{}) {
	if warning == "" {
		Success(c, data)
		return
	}
	SuccessWithMessage(c, warning, data)
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// ConflictError 状态冲突
func ConflictError(c *gin.Context, message string) {
	Error(c, CodeConflict, message)
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// UpstreamError 后端调用失败：优先展示后端返回的 detail，否则使用通用消息
func UpstreamError(c *gin.Context, err error) {
	detail := client.DetailOr(err, "")
	switch client.StatusCode(err) {
	case http.StatusNotFound:
		NotFoundError(c, detail)
	case http.StatusConflict:
		ConflictError(c, detail)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		ParamError(c, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		PermissionError(c, detail)
	default:
		Error(c, CodeUpstreamError, detail)
	}
}
