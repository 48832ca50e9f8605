package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/aggregator"
	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
	"github.com/qs3c/regflow_go_server/internal/notify"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
)

var ErrInvalidReport = errors.New("invalid cycle or report id")

const phaseAlreadyStarted = "Phase has already been started"

// phaseActions 某个阶段的状态查询与开始/完成操作，两个页面共用
type phaseActions struct {
	phase    string
	backend  *client.Client
	fetcher  *aggregator.Fetcher
	restorer *aggregator.Restorer // 为空时不同步 advancement flag
	notifier notify.Notifier
	log      zerolog.Logger
}

func newPhaseActions(phase string, backend *client.Client, notifier notify.Notifier, log zerolog.Logger) phaseActions {
	if notifier == nil {
		notifier = notify.Nop
	}
	return phaseActions{
		phase:    phase,
		backend:  backend,
		fetcher:  aggregator.NewFetcher(backend, log),
		notifier: notifier,
		log:      log,
	}
}

func (p *phaseActions) fetchStatus(ctx context.Context, key model.ReportKey) (model.PhaseStatus, error) {
	if !key.Valid() {
		return model.PhaseStatus{}, ErrInvalidReport
	}
	return p.fetch(ctx, key)
}

// fetch 拉取聚合状态；每次拿到后端状态都同步 advancement flag（不发通知）
func (p *phaseActions) fetch(ctx context.Context, key model.ReportKey) (model.PhaseStatus, error) {
	status, err := p.fetcher.Fetch(ctx, key, p.phase)
	if err != nil {
		return status, err
	}
	if p.restorer != nil {
		if _, err := p.restorer.Restore(ctx, key, status); err != nil {
			p.log.Warn().Err(err).Str("key", key.String()).Msg("advancement flag restoration failed")
		}
	}
	return status, nil
}

// startPhase 409 只作为警告：阶段按进行中返回并重新拉取状态
func (p *phaseActions) startPhase(ctx context.Context, key model.ReportKey, userID int64) (*dto.PhaseActionResponse, error) {
	if !key.Valid() {
		return nil, ErrInvalidReport
	}

	resp := &dto.PhaseActionResponse{}
	if err := p.backend.StartPhase(ctx, key, p.phase); err != nil {
		if !client.IsConflict(err) {
			return nil, err
		}
		resp.Warning = client.DetailOr(err, phaseAlreadyStarted)
		p.log.Warn().
			Int64("cycle_id", key.CycleID).
			Int64("report_id", key.ReportID).
			Str("phase", p.phase).
			Str("detail", resp.Warning).
			Msg("phase start conflict, continuing optimistically")
		p.notifier.Notify(ctx, &pubsub.Event{
			Type:     pubsub.EventPhaseStartConflict,
			UserID:   userID,
			CycleID:  key.CycleID,
			ReportID: key.ReportID,
			Message:  resp.Warning,
			Data:     map[string]interface{}{"phase": p.phase},
		})
	}

	resp.Status = p.refetch(ctx, key, model.PhaseInProgress)
	return resp, nil
}

func (p *phaseActions) completePhase(ctx context.Context, key model.ReportKey, notes string) (*dto.PhaseActionResponse, error) {
	if !key.Valid() {
		return nil, ErrInvalidReport
	}
	if err := p.backend.CompletePhase(ctx, key, p.phase, notes); err != nil {
		return nil, err
	}
	return &dto.PhaseActionResponse{Status: p.refetch(ctx, key, model.PhaseComplete)}, nil
}

// refetch 重新拉取状态；拉取失败或状态尚未跟上时使用乐观状态
func (p *phaseActions) refetch(ctx context.Context, key model.ReportKey, optimistic model.PhaseState) model.PhaseStatus {
	status, err := p.fetch(ctx, key)
	if err != nil {
		p.log.Warn().Err(err).Str("phase", p.phase).Msg("status refetch failed after phase action")
		status = model.PhaseStatus{
			CycleID:  key.CycleID,
			ReportID: key.ReportID,
			Phase:    p.phase,
			Source:   aggregator.SourceNone,
		}
	}
	if rank(status.PhaseStatus) < rank(optimistic) {
		status.PhaseStatus = optimistic
	}
	return status
}

func rank(s model.PhaseState) int {
	switch s {
	case model.PhaseInProgress:
		return 1
	case model.PhaseReadyForExecution:
		return 2
	case model.PhaseComplete:
		return 3
	default:
		return 0
	}
}
