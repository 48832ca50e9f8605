package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/api"
	"github.com/qs3c/regflow_go_server/internal/api/handler"
	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/database"
	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/logger"
	"github.com/qs3c/regflow_go_server/internal/notify"
	"github.com/qs3c/regflow_go_server/internal/pkg/cron"
	"github.com/qs3c/regflow_go_server/internal/pkg/oauth"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
	"github.com/qs3c/regflow_go_server/internal/pkg/queue"
	"github.com/qs3c/regflow_go_server/internal/pkg/ws"
	"github.com/qs3c/regflow_go_server/internal/poller"
	"github.com/qs3c/regflow_go_server/internal/repository"
	"github.com/qs3c/regflow_go_server/internal/service"
)

// 重启后恢复跟踪的任务上限
const resumeLimit = 100

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	flags, err := flagstore.New(cfg.FlagStore, rdb, db)
	if err != nil {
		return err
	}

	// 后端客户端
	backend := client.New(cfg.Backend.BaseURL, oauth.NewHTTPClient(ctx, cfg.Backend), log)

	// 通知：发布到 redis，由 dispatcher 推送到 websocket 或离线收件箱
	wsHub := ws.NewHub(log)
	inbox := queue.NewInbox(rdb, cfg.Notice.InboxSize)
	notifier := notify.NewPublishNotifier(pubsub.NewPublisher(rdb), log)
	dispatcher := notify.NewDispatcher(wsHub, inbox, log)
	go func() {
		if err := dispatcher.Run(ctx, pubsub.NewSubscriber(rdb)); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("dispatcher stopped")
		}
	}()

	// 任务轮询
	tracker := poller.NewTracker(poller.New(backend, cfg.Poller, log), log)
	defer tracker.Stop()

	// 初始化 Service
	watches := service.NewWatchList()
	jobRepo := repository.NewJobRepository(db)
	profilingService := service.NewProfilingService(backend, flags, tracker, jobRepo, notifier, watches, log)
	dataOwnerService := service.NewDataOwnerService(backend, notifier, log)
	assignmentService := service.NewAssignmentService(backend, log)

	if n, err := profilingService.ResumeTracking(resumeLimit); err != nil {
		log.Warn().Err(err).Msg("failed to resume job tracking")
	} else if n > 0 {
		log.Info().Int("jobs", n).Msg("resumed job tracking")
	}

	sweeper := cron.NewService(watches, profilingService, cfg.Sweeper, log)
	sweeper.Start()
	defer sweeper.Stop()

	// 初始化 Handler 与 Router
	router := api.NewRouter(
		handler.NewProfilingHandler(profilingService),
		handler.NewDataOwnerHandler(dataOwnerService),
		handler.NewAssignmentHandler(assignmentService),
		handler.NewNoticeHandler(inbox),
		handler.NewWebSocketHandler(wsHub, cfg.CORS.AllowedOrigins, log),
		handler.NewHealthHandler(db, rdb),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
	}
	profilingService.Wait()
	return nil
}
