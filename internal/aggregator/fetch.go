package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/qs3c/regflow_go_server/internal/model"
)

var ErrNoStatusSource = errors.New("no status source available")

// fetchTimeout bounds the shared round trip, which no single caller can cancel.
const fetchTimeout = 20 * time.Second

// StatusSources are the two status endpoints.
type StatusSources interface {
	GetUnifiedStatus(ctx context.Context, key model.ReportKey, phase string) (*model.UnifiedStatus, error)
	GetLegacyStatus(ctx context.Context, key model.ReportKey, phase string) (*model.LegacyPhaseStatus, error)
}

// Fetcher loads both sources concurrently and merges them. Concurrent fetches of the
// same (cycle, report, phase) share one round trip.
type Fetcher struct {
	sources StatusSources
	group   singleflight.Group
	log     zerolog.Logger
}

func NewFetcher(sources StatusSources, log zerolog.Logger) *Fetcher {
	return &Fetcher{sources: sources, log: log.With().Str("component", "status_fetcher").Logger()}
}

// Fetch returns the merged status. One failing source is logged and treated as absent;
// ErrNoStatusSource is returned only when both fail.
func (f *Fetcher) Fetch(ctx context.Context, key model.ReportKey, phase string) (model.PhaseStatus, error) {
	flightKey := fmt.Sprintf("%s:%s", key, phase)
	ch := f.group.DoChan(flightKey, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return f.fetch(sctx, key, phase)
	})
	select {
	case <-ctx.Done():
		return model.PhaseStatus{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return model.PhaseStatus{}, r.Err
		}
		return r.Val.(model.PhaseStatus), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, key model.ReportKey, phase string) (model.PhaseStatus, error) {
	var (
		unified            *model.UnifiedStatus
		legacy             *model.LegacyPhaseStatus
		unifiedErr, legErr error
	)

	// errors are kept per source so one failure does not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		unified, unifiedErr = f.sources.GetUnifiedStatus(ctx, key, phase)
		return nil
	})
	g.Go(func() error {
		legacy, legErr = f.sources.GetLegacyStatus(ctx, key, phase)
		return nil
	})
	_ = g.Wait()

	log := f.log.With().Int64("cycle_id", key.CycleID).Int64("report_id", key.ReportID).Str("phase", phase).Logger()
	if unifiedErr != nil && legErr != nil {
		log.Error().AnErr("unified_err", unifiedErr).AnErr("legacy_err", legErr).Msg("both status sources failed")
		return model.PhaseStatus{}, fmt.Errorf("%w: %v", ErrNoStatusSource, legErr)
	}
	if unifiedErr != nil {
		log.Warn().Err(unifiedErr).Msg("unified status unavailable, using phase status")
		unified = nil
	}
	if legErr != nil {
		log.Warn().Err(legErr).Msg("phase status unavailable, using unified status")
		legacy = nil
	}

	status := Aggregate(unified, legacy)
	status.CycleID = key.CycleID
	status.ReportID = key.ReportID
	status.Phase = phase
	return status, nil
}
