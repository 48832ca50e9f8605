// Package aggregator merges the unified status feed and the phase-specific status endpoint
// into one PhaseStatus.
package aggregator

import (
	"github.com/qs3c/regflow_go_server/internal/model"
)

// Status sources.
const (
	SourceUnified = "unified"
	SourceLegacy  = "legacy"
	SourceNone    = "none"
)

// Aggregate merges both sources. Unified metadata wins when present; otherwise legacy fields
// are taken one by one with zero defaults. Either source may be nil.
func Aggregate(unified *model.UnifiedStatus, legacy *model.LegacyPhaseStatus) model.PhaseStatus {
	status := model.PhaseStatus{
		PhaseStatus: model.PhaseNotStarted,
		Source:      SourceNone,
	}

	switch {
	case unified != nil && unified.Metadata != nil:
		m := unified.Metadata
		status.Source = SourceUnified
		status.PhaseStatus = model.ParsePhaseState(unified.PhaseStatus)
		if unified.PhaseStatus == "" && legacy != nil && legacy.PhaseStatus != nil {
			status.PhaseStatus = model.ParsePhaseState(*legacy.PhaseStatus)
		}
		status.StartedAt = unified.StartedAt
		status.CompletedAt = unified.CompletedAt
		status.TotalAttributes = m.TotalAttributes
		status.AttributesWithRules = m.AttributesWithRules
		status.TotalRules = m.TotalRules
		status.ApprovedRules = m.ApprovedRules
		status.RejectedRules = m.RejectedRules
		status.PendingRules = m.PendingRules
		status.TotalSamples = m.TotalSamples
		status.TotalLOBs = m.TotalLOBs
		status.CanProceedToNext = m.CanProceedToNext

	case legacy != nil:
		status.Source = SourceLegacy
		if unified != nil && unified.PhaseStatus != "" {
			status.PhaseStatus = model.ParsePhaseState(unified.PhaseStatus)
		} else if legacy.PhaseStatus != nil {
			status.PhaseStatus = model.ParsePhaseState(*legacy.PhaseStatus)
		}
		status.StartedAt = legacy.StartedAt
		status.CompletedAt = legacy.CompletedAt
		status.TotalAttributes = intOr(legacy.TotalAttributes)
		status.AttributesWithRules = intOr(legacy.AttributesWithRules)
		status.TotalRules = intOr(legacy.TotalRules)
		status.ApprovedRules = intOr(legacy.ApprovedRules)
		status.RejectedRules = intOr(legacy.RejectedRules)
		status.PendingRules = intOr(legacy.PendingRules)
		status.TotalSamples = intOr(legacy.TotalSamples)
		status.TotalLOBs = intOr(legacy.TotalLOBs)
		if legacy.CanProceedToNext != nil {
			status.CanProceedToNext = *legacy.CanProceedToNext
		}

	case unified != nil:
		// status string only, no metrics
		status.Source = SourceUnified
		status.PhaseStatus = model.ParsePhaseState(unified.PhaseStatus)
		status.StartedAt = unified.StartedAt
		status.CompletedAt = unified.CompletedAt
	}

	// completed_at only means something once Complete
	if status.PhaseStatus != model.PhaseComplete {
		status.CompletedAt = nil
	}
	return status
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
