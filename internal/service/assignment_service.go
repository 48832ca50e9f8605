package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/client"
	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/model/dto"
)

var (
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrAssignmentCompleted = errors.New("assignment already completed")
	ErrInvalidTransition   = errors.New("assignment cannot move to the requested status")
	ErrInvalidActivity     = errors.New("activity id is required")
)

// AssignmentService 任务交接与通用活动
type AssignmentService struct {
	backend *client.Client
	log     zerolog.Logger
}

func NewAssignmentService(backend *client.Client, log zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		backend: backend,
		log:     log.With().Str("component", "assignment_service").Logger(),
	}
}

// ListAssignments 按角色列出任务交接；admin 不按角色过滤
func (s *AssignmentService) ListAssignments(ctx context.Context, role model.ViewerRole, q dto.AssignmentQuery) ([]model.Assignment, error) {
	filter := model.AssignmentFilter{
		CycleID:        q.CycleID,
		ReportID:       q.ReportID,
		Phase:          q.Phase,
		AssignmentType: q.AssignmentType,
		Status:         model.AssignmentStatus(q.Status),
	}
	if role != model.RoleAdmin {
		filter.Role = role.BackendName()
	}
	assignments, err := s.backend.ListAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	return assignments, nil
}

func (s *AssignmentService) Acknowledge(ctx context.Context, id string) (*model.Assignment, error) {
	return s.transition(ctx, id, "acknowledge", func(st model.AssignmentStatus) bool {
		return st == model.AssignmentAssigned
	}, func(ctx context.Context, a *model.Assignment) error {
		return s.backend.AcknowledgeAssignment(ctx, a.AssignmentID.String())
	})
}

func (s *AssignmentService) Start(ctx context.Context, id string) (*model.Assignment, error) {
	return s.transition(ctx, id, "start", func(st model.AssignmentStatus) bool {
		return st == model.AssignmentAssigned || st == model.AssignmentAcknowledged
	}, func(ctx context.Context, a *model.Assignment) error {
		return s.backend.StartAssignment(ctx, a.AssignmentID.String())
	})
}

func (s *AssignmentService) Complete(ctx context.Context, id string, req dto.CompleteAssignmentRequest) (*model.Assignment, error) {
	return s.transition(ctx, id, "complete", model.AssignmentStatus.IsOpen, func(ctx context.Context, a *model.Assignment) error {
		return s.backend.CompleteAssignment(ctx, a.AssignmentID.String(), model.AssignmentCompletion{
			CompletionNotes: req.Notes,
			ContextUpdates:  req.ContextUpdates,
		})
	})
}

// transition 读取当前状态，校验后执行操作，并返回最新的任务交接
func (s *AssignmentService) transition(
	ctx context.Context,
	id, action string,
	allowed func(model.AssignmentStatus) bool,
	apply func(context.Context, *model.Assignment) error,
) (*model.Assignment, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == model.AssignmentCompleted {
		return nil, ErrAssignmentCompleted
	}
	if !allowed(current.Status) {
		return nil, fmt.Errorf("%w: %s from %q", ErrInvalidTransition, action, current.Status)
	}

	if err := apply(ctx, current); err != nil {
		return nil, err
	}
	s.log.Info().Str("assignment_id", id).Str("action", action).Msg("assignment updated")

	updated, err := s.get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("assignment_id", id).Msg("assignment refetch failed")
		return current, nil
	}
	return updated, nil
}

func (s *AssignmentService) get(ctx context.Context, id string) (*model.Assignment, error) {
	a, err := s.backend.GetAssignment(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AssignmentService) StartActivity(ctx context.Context, activityID string, req dto.ActivityRequest) (*client.ActivityResponse, error) {
	if activityID == "" {
		return nil, ErrInvalidActivity
	}
	return s.backend.StartActivity(ctx, activityID, activityRequest(req))
}

func (s *AssignmentService) CompleteActivity(ctx context.Context, activityID string, req dto.ActivityRequest) (*client.ActivityResponse, error) {
	if activityID == "" {
		return nil, ErrInvalidActivity
	}
	return s.backend.CompleteActivity(ctx, activityID, activityRequest(req))
}

func activityRequest(req dto.ActivityRequest) client.ActivityRequest {
	return client.ActivityRequest{
		CycleID:   req.CycleID,
		ReportID:  req.ReportID,
		PhaseName: req.PhaseName,
		Notes:     req.Notes,
	}
}
