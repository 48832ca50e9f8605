package aggregator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/model"
)

// Restorer syncs the advancement flag with a phase the backend already advanced.
// It never emits a notice.
type Restorer struct {
	flags flagstore.Store
	log   zerolog.Logger
}

func NewRestorer(flags flagstore.Store, log zerolog.Logger) *Restorer {
	return &Restorer{flags: flags, log: log.With().Str("component", "restorer").Logger()}
}

// Restore sets the flag when status is Ready for Execution or Complete and the flag is unset.
func (r *Restorer) Restore(ctx context.Context, key model.ReportKey, status model.PhaseStatus) (bool, error) {
	if !status.PhaseStatus.Advanced() {
		return false, nil
	}

	advanced, err := r.flags.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if advanced {
		return false, nil
	}

	if err := r.flags.Set(ctx, key, true); err != nil {
		return false, err
	}
	r.log.Info().
		Int64("cycle_id", key.CycleID).
		Int64("report_id", key.ReportID).
		Str("phase_status", string(status.PhaseStatus)).
		Msg("advancement flag restored from backend status")
	return true, nil
}
