package cron

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/reconciler"
	"github.com/qs3c/regflow_go_server/internal/service"
)

const sweepTimeout = time.Minute

// ReconcileTarget 被定时对账的页面服务
type ReconcileTarget interface {
	Reconcile(ctx context.Context, key model.ReportKey, userID int64, quiet bool) (reconciler.Result, error)
}

// Summary 一次扫描的结果
type Summary struct {
	Checked  int
	Advanced int
	Failed   int
}

// Service 定期为最近查看过的报告重新对账，页面关闭期间完成的审批也能推进工作流
type Service struct {
	watches  *service.WatchList
	target   ReconcileTarget
	interval time.Duration
	watchTTL time.Duration
	log      zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(watches *service.WatchList, target ReconcileTarget, cfg config.SweeperConfig, log zerolog.Logger) *Service {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ttl := cfg.WatchTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Service{
		watches:  watches,
		target:   target,
		interval: interval,
		watchTTL: ttl,
		log:      log.With().Str("component", "sweeper").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时对账
func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info().Dur("interval", s.interval).Dur("watch_ttl", s.watchTTL).Msg("reconcile sweeper started")
}

// Stop 停止定时任务并等待当前扫描结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.log.Info().Msg("reconcile sweeper stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			s.RunNow(ctx)
			cancel()
		}
	}
}

// RunNow 立即扫描一次（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) Summary {
	var sum Summary
	for _, w := range s.watches.Active(s.watchTTL) {
		if ctx.Err() != nil {
			break
		}
		sum.Checked++

		res, err := s.target.Reconcile(ctx, w.Key, w.UserID, true)
		if err != nil {
			sum.Failed++
			s.log.Warn().Err(err).
				Int64("cycle_id", w.Key.CycleID).
				Int64("report_id", w.Key.ReportID).
				Msg("sweep reconcile failed")
			continue
		}
		if res.Outcome == reconciler.Advanced {
			sum.Advanced++
		}
		// 已推进的报告不再需要扫描，再次访问时会重新加入
		if res.Outcome == reconciler.Advanced || res.Reason == reconciler.ReasonAlreadyAdvanced {
			s.watches.Forget(w.Key)
		}
	}

	if sum.Advanced > 0 || sum.Failed > 0 {
		s.log.Info().Int("checked", sum.Checked).Int("advanced", sum.Advanced).Int("failed", sum.Failed).Msg("sweep summary")
	}
	return sum
}
