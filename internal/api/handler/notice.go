package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/internal/api/middleware"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
	"github.com/qs3c/regflow_go_server/internal/pkg/queue"
	"github.com/qs3c/regflow_go_server/internal/pkg/response"
)

type NoticeHandler struct {
	inbox *queue.Inbox
}

func NewNoticeHandler(inbox *queue.Inbox) *NoticeHandler {
	return &NoticeHandler{inbox: inbox}
}

// List 取出离线期间积压的通知（读取即清空）
// GET /api/v1/notices
func (h *NoticeHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	events, err := h.inbox.Drain(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "Failed to load notices")
		return
	}
	if events == nil {
		events = []*pubsub.Event{}
	}
	response.Success(c, events)
}
