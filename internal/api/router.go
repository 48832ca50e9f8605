package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/api/handler"
	"github.com/qs3c/regflow_go_server/internal/api/middleware"
	"github.com/qs3c/regflow_go_server/internal/model"
)

type Router struct {
	profilingHandler  *handler.ProfilingHandler
	dataOwnerHandler  *handler.DataOwnerHandler
	assignmentHandler *handler.AssignmentHandler
	noticeHandler     *handler.NoticeHandler
	websocketHandler  *handler.WebSocketHandler
	healthHandler     *handler.HealthHandler
	cfg               *config.Config
}

func NewRouter(
	profilingHandler *handler.ProfilingHandler,
	dataOwnerHandler *handler.DataOwnerHandler,
	assignmentHandler *handler.AssignmentHandler,
	noticeHandler *handler.NoticeHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		profilingHandler:  profilingHandler,
		dataOwnerHandler:  dataOwnerHandler,
		assignmentHandler: assignmentHandler,
		noticeHandler:     noticeHandler,
		websocketHandler:  websocketHandler,
		healthHandler:     healthHandler,
		cfg:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", r.healthHandler.Check)

	operators := middleware.RequireRole(model.RoleTester, model.RoleAdmin)

	api := engine.Group("/api/v1")
	api.Use(middleware.Auth(r.cfg.JWT.Secret))
	{
		// WebSocket（token 通过 query 传递）
		api.GET("/ws", r.websocketHandler.Handle)

		api.GET("/notices", r.noticeHandler.List)

		report := api.Group("/cycles/:cycle_id/reports/:report_id")

		// 数据画像阶段
		profiling := report.Group("/profiling")
		{
			profiling.GET("/status", r.profilingHandler.Status)
			profiling.GET("/view", r.profilingHandler.View)
			profiling.GET("/job", r.profilingHandler.GetJob)
			profiling.DELETE("/job", r.profilingHandler.CancelJob)
			profiling.POST("/reconcile", r.profilingHandler.Reconcile)
			profiling.POST("/refresh", r.profilingHandler.Refresh)

			profiling.POST("/start", operators, r.profilingHandler.StartPhase)
			profiling.POST("/complete", operators, r.profilingHandler.CompletePhase)
			profiling.POST("/generate-rules", operators, r.profilingHandler.GenerateRules)
			profiling.POST("/execute", operators, r.profilingHandler.ExecuteProfiling)
			profiling.POST("/reset-workflow", middleware.RequireRole(model.RoleAdmin), r.profilingHandler.ResetWorkflow)
		}

		// 数据负责人识别阶段
		dataOwner := report.Group("/data-owner")
		{
			dataOwner.GET("/status", r.dataOwnerHandler.Status)
			dataOwner.POST("/start", operators, r.dataOwnerHandler.StartPhase)
			dataOwner.POST("/complete", operators, r.dataOwnerHandler.CompletePhase)
		}

		// 任务分派
		assignments := api.Group("/assignments")
		{
			assignments.GET("", r.assignmentHandler.List)
			assignments.POST("/:id/acknowledge", r.assignmentHandler.Acknowledge)
			assignments.POST("/:id/start", r.assignmentHandler.Start)
			assignments.POST("/:id/complete", r.assignmentHandler.Complete)
		}

		activities := api.Group("/activities")
		{
			activities.POST("/:id/start", r.assignmentHandler.StartActivity)
			activities.POST("/:id/complete", r.assignmentHandler.CompleteActivity)
		}
	}

	return engine
}
