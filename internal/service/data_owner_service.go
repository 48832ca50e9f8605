package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
	"github.com/qs3c/regflow_go_server/internal/notify"
)

// DataOwnerService 数据负责人识别阶段
// 不参与规则审批对账，因此不登记巡检
type DataOwnerService struct {
	phaseActions
}

func NewDataOwnerService(backend *client.Client, notifier notify.Notifier, log zerolog.Logger) *DataOwnerService {
	log = log.With().Str("component", "data_owner_service").Logger()
	return &DataOwnerService{
		phaseActions: newPhaseActions(model.PhaseDataOwner, backend, notifier, log),
	}
}

func (s *DataOwnerService) Status(ctx context.Context, key model.ReportKey, _ int64) (model.PhaseStatus, error) {
	return s.fetchStatus(ctx, key)
}

func (s *DataOwnerService) StartPhase(ctx context.Context, key model.ReportKey, userID int64) (*dto.PhaseActionResponse, error) {
	return s.startPhase(ctx, key, userID)
}

func (s *DataOwnerService) CompletePhase(ctx context.Context, key model.ReportKey, notes string) (*dto.PhaseActionResponse, error) {
	return s.completePhase(ctx, key, notes)
}
