package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/api/middleware"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/pkg/response"
	"github.com/qs3c/regflow_go_server/internal/pkg/ws"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 非浏览器客户端不带 Origin
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

// Handle WebSocket 连接处理，携带 cycle_id/report_id 时同时接收该报告的任务进度
// GET /api/v1/ws?token=xxx&cycle_id=58&report_id=156
func (h *WebSocketHandler) Handle(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var report model.ReportKey
	report.CycleID, _ = strconv.ParseInt(c.Query("cycle_id"), 10, 64)
	report.ReportID, _ = strconv.ParseInt(c.Query("report_id"), 10, 64)
	if !report.Valid() {
		report = model.ReportKey{}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to upgrade connection")
		return
	}

	client := &ws.Client{
		UserID: userID,
		Report: report,
		Conn:   conn,
	}
	h.hub.Register(client)

	// 保持连接，读取消息（主要用于检测断开）
	go func() {
		defer h.hub.Unregister(client)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
