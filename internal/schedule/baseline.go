package schedule

import (
	"time"

	"github.com/google/uuid"

	"slipline/internal/domain"
)

// SnapshotResult carries everything a new baseline produces: the baseline
// row, the write-once per-stage snapshots, and the stages with their
// baseline fields rewritten.
type SnapshotResult struct {
	Baseline  domain.Baseline
	Snapshots []domain.BaselineStageSnapshot
	Stages    []domain.Stage
}

// SetInitialBaseline strikes the version-1 baseline for a project. It
// requires an approved change request of type initial_baseline and a project
// with no active baseline.
func SetInitialBaseline(project *domain.Project, stages []domain.Stage, cr domain.ChangeRequest, setByID, notes string, now time.Time) (SnapshotResult, error) {
	if cr.Status != domain.ChangeApproved {
		return SnapshotResult{}, ErrChangeRequestNotApproved
	}
	if cr.ChangeType != domain.ChangeTypeInitialBaseline {
		return SnapshotResult{}, ErrWrongChangeType
	}
	if project.ActiveBaselineID != nil {
		return SnapshotResult{}, ErrBaselineAlreadyExists
	}
	res := snapshotStages(newBaseline(project.ID, 1, setByID, notes, cr.ID, now), stages, now)
	project.ActiveBaselineID = &res.Baseline.ID
	return res, nil
}

// ResetBaseline supersedes the active baseline with a new version struck
// from the current planned dates. Preconditions: an approved change request
// and an existing active baseline; scope_change additionally requires the
// designated approver to hold owner_representative on the project. Previous
// baselines are deactivated in place, never deleted.
func ResetBaseline(project *domain.Project, stages []domain.Stage, previous []domain.Baseline, cr domain.ChangeRequest, assignments []domain.ProjectStakeholder, setByID, notes string, now time.Time) (SnapshotResult, error) {
	if cr.Status != domain.ChangeApproved {
		return SnapshotResult{}, ErrChangeRequestNotApproved
	}
	if project.ActiveBaselineID == nil {
		return SnapshotResult{}, ErrNoActiveBaseline
	}
	if cr.ChangeType == domain.ChangeTypeScopeChange {
		if err := RequireRole(assignments, cr.ApproverID, domain.RoleOwnerRep); err != nil {
			return SnapshotResult{}, err
		}
	}

	next := 0
	for _, b := range previous {
		if b.VersionNumber > next {
			next = b.VersionNumber
		}
	}
	next++

	for i := range previous {
		previous[i].IsActive = false
	}

	res := snapshotStages(newBaseline(project.ID, next, setByID, notes, cr.ID, now), stages, now)
	project.ActiveBaselineID = &res.Baseline.ID
	return res, nil
}

func newBaseline(projectID string, version int, setByID, notes, changeRequestID string, now time.Time) domain.Baseline {
	return domain.Baseline{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		VersionNumber:   version,
		SetByID:         setByID,
		SetAt:           now.UTC().Format(time.RFC3339),
		IsActive:        true,
		Notes:           notes,
		ChangeRequestID: &changeRequestID,
	}
}

// snapshotStages copies each stage's planned dates into a snapshot row and
// writes the same values onto the stage's baseline fields.
func snapshotStages(baseline domain.Baseline, stages []domain.Stage, now time.Time) SnapshotResult {
	ts := now.UTC().Format(time.RFC3339)
	snapshots := make([]domain.BaselineStageSnapshot, 0, len(stages))
	for i := range stages {
		s := &stages[i]
		snapshots = append(snapshots, domain.BaselineStageSnapshot{
			ID:                   uuid.NewString(),
			BaselineID:           baseline.ID,
			StageID:              s.ID,
			ProjectID:            s.ProjectID,
			BaselineStartDate:    s.PlannedStartDate,
			BaselineEndDate:      s.PlannedEndDate,
			BaselineDurationDays: s.PlannedDurationDays,
			SnapshottedAt:        ts,
		})
		s.BaselineStartDate = s.PlannedStartDate
		s.BaselineEndDate = s.PlannedEndDate
		s.BaselineDurationDays = s.PlannedDurationDays
		s.UpdatedAt = ts
		ComputeDeviation(s)
	}
	return SnapshotResult{Baseline: baseline, Snapshots: snapshots, Stages: stages}
}
