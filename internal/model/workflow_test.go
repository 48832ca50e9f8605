package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePhaseState(t *testing.T) {
	cases := map[string]PhaseState{
		"Not Started":         PhaseNotStarted,
		"":                    PhaseNotStarted,
		"In Progress":         PhaseInProgress,
		"in_progress":         PhaseInProgress,
		"Ready for Execution": PhaseReadyForExecution,
		"ready_for_execution": PhaseReadyForExecution,
		"Complete":            PhaseComplete,
		"completed":           PhaseComplete,
		"garbage":             PhaseNotStarted,
	}

	for in, want := range cases {
		assert.Equal(t, want, ParsePhaseState(in), "input %q", in)
	}
}

func TestPhaseState_Advanced(t *testing.T) {
	assert.False(t, PhaseNotStarted.Advanced())
	assert.False(t, PhaseInProgress.Advanced())
	assert.True(t, PhaseReadyForExecution.Advanced())
	assert.True(t, PhaseComplete.Advanced())
}

func TestAssignmentStatus_IsOpen(t *testing.T) {
	assert.True(t, AssignmentAssigned.IsOpen())
	assert.True(t, AssignmentAcknowledged.IsOpen())
	assert.True(t, AssignmentInProgress.IsOpen())
	assert.False(t, AssignmentCompleted.IsOpen())
	assert.False(t, AssignmentStatus("Cancelled").IsOpen())
}

func TestParseDecision(t *testing.T) {
	assert.Equal(t, DecisionApproved, ParseDecision("approved"))
	assert.Equal(t, DecisionRejected, ParseDecision(" REJECTED "))
	assert.Equal(t, DecisionPending, ParseDecision(""))
	assert.Equal(t, DecisionPending, ParseDecision("needs_review"))
}

func TestParseJobStatus(t *testing.T) {
	assert.Equal(t, JobRunning, ParseJobStatus("pending"))
	assert.Equal(t, JobRunning, ParseJobStatus("RUNNING"))
	assert.Equal(t, JobCompleted, ParseJobStatus("success"))
	assert.Equal(t, JobFailed, ParseJobStatus("error"))
	assert.Equal(t, JobCancelled, ParseJobStatus("canceled"))

	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, JobCancelled.Terminal())
	assert.False(t, JobRunning.Terminal())
}

func TestParseViewerRole(t *testing.T) {
	assert.Equal(t, RoleReportOwner, ParseViewerRole("Report Owner"))
	assert.Equal(t, RoleReportOwner, ParseViewerRole("report-owner"))
	assert.Equal(t, RoleTester, ParseViewerRole("TESTER"))
	assert.Equal(t, RoleDataOwner, ParseViewerRole("cdo"))
	assert.Equal(t, RoleUnknown, ParseViewerRole("auditor"))
	assert.Equal(t, "Report Owner", RoleReportOwner.BackendName())
}

func TestReportKey(t *testing.T) {
	k := ReportKey{CycleID: 7, ReportID: 42}
	assert.Equal(t, "7:42", k.String())
	assert.True(t, k.Valid())
	assert.False(t, ReportKey{CycleID: 7}.Valid())
}
