package engine

import (
	"context"
	"database/sql"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

// BaselineOptions are parameters for striking a baseline.
type BaselineOptions struct {
	ProjectID       string
	ChangeRequestID string
	Notes           string
	ActorID         string
}

// SetInitialBaseline strikes the version-1 baseline. It demands an approved
// initial_baseline change request and a project with no baseline yet, and
// records the audit entry and stakeholder notifications in the same
// transaction.
func (e Engine) SetInitialBaseline(ctx context.Context, opts BaselineOptions) (domain.Baseline, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Baseline{}, err
	}
	defer tx.Rollback()

	project, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Baseline{}, err
	}
	cr, err := e.Repo.GetChangeRequestTx(ctx, tx, opts.ChangeRequestID)
	if err != nil {
		return domain.Baseline{}, err
	}
	stages, err := e.Repo.ListStagesTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Baseline{}, err
	}
	res, err := schedule.SetInitialBaseline(&project, stages, cr, opts.ActorID, opts.Notes, e.now())
	if err != nil {
		return domain.Baseline{}, err
	}
	if err := e.persistBaseline(ctx, tx, project, cr, res, domain.NotifyBaselineSet, opts.Notes); err != nil {
		return domain.Baseline{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Baseline{}, err
	}
	return res.Baseline, nil
}

// ResetBaseline supersedes the active baseline with the next version. The
// preceding baselines stay queryable; only the is_active flag moves.
func (e Engine) ResetBaseline(ctx context.Context, opts BaselineOptions) (domain.Baseline, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Baseline{}, err
	}
	defer tx.Rollback()

	project, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Baseline{}, err
	}
	cr, err := e.Repo.GetChangeRequestTx(ctx, tx, opts.ChangeRequestID)
	if err != nil {
		return domain.Baseline{}, err
	}
	stages, err := e.Repo.ListStagesTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Baseline{}, err
	}
	previous, err := e.Repo.ListBaselinesTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Baseline{}, err
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Baseline{}, err
	}
	res, err := schedule.ResetBaseline(&project, stages, previous, cr, assignments, opts.ActorID, opts.Notes, e.now())
	if err != nil {
		return domain.Baseline{}, err
	}
	if err := e.Repo.DeactivateBaselines(ctx, tx, opts.ProjectID); err != nil {
		return domain.Baseline{}, err
	}
	if err := e.persistBaseline(ctx, tx, project, cr, res, domain.NotifyBaselineReset, opts.Notes); err != nil {
		return domain.Baseline{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Baseline{}, err
	}
	return res.Baseline, nil
}

func (e Engine) persistBaseline(ctx context.Context, tx *sql.Tx, project domain.Project, cr domain.ChangeRequest, res schedule.SnapshotResult, notificationType, notes string) error {
	if err := e.Repo.InsertBaseline(ctx, tx, res.Baseline); err != nil {
		return err
	}
	for _, snap := range res.Snapshots {
		if err := e.Repo.InsertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
	}
	for _, s := range res.Stages {
		if err := e.Repo.UpdateStage(ctx, tx, s); err != nil {
			return err
		}
	}
	schedule.RecalculateProjectProgress(&project, res.Stages, e.now())
	if err := e.Repo.UpdateProject(ctx, tx, project); err != nil {
		return err
	}
	lastSeq, err := e.Repo.LastAuditSequence(ctx, tx, project.ID)
	if err != nil {
		return err
	}
	entry := schedule.RecordBaselineChange(project.ID, res.Baseline, cr, lastSeq, e.now())
	if err := e.Repo.InsertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}
	return e.notifier().Broadcast(ctx, tx, project.ID, notificationType, notes, schedule.BroadcastRef{
		BaselineID:      &res.Baseline.ID,
		ChangeRequestID: &cr.ID,
	})
}

// BaselineReport is the structured report over the active baseline.
type BaselineReport struct {
	Project struct {
		ID                 string  `json:"id"`
		Name               string  `json:"name"`
		OverallProgressPct float64 `json:"overall_progress_pct"`
		ActiveBaselineID   *string `json:"active_baseline_id,omitempty"`
	} `json:"project"`
	ActiveBaseline  *domain.Baseline        `json:"active_baseline,omitempty"`
	StageDeviations []StageDeviationRow     `json:"stage_deviations"`
	History         []domain.Baseline       `json:"baseline_history"`
	AuditTrail      []domain.AuditTrailEntry `json:"audit_trail"`
}

// StageDeviationRow compares one stage's current plan with its active
// baseline snapshot.
type StageDeviationRow struct {
	StageID         string  `json:"stage_id"`
	StageName       string  `json:"stage_name"`
	BaselineStart   *string `json:"baseline_start,omitempty"`
	BaselineEnd     *string `json:"baseline_end,omitempty"`
	PlannedEnd      *string `json:"planned_end,omitempty"`
	DeviationDays   *int    `json:"deviation_days,omitempty"`
	DeviationStatus *string `json:"deviation_status,omitempty"`
}

// GenerateBaselineReport assembles project summary, per-stage deviations
// against the active snapshot, version history and the audit trail.
func (e Engine) GenerateBaselineReport(ctx context.Context, projectID string) (BaselineReport, error) {
	var report BaselineReport
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return report, err
	}
	report.Project.ID = project.ID
	report.Project.Name = project.Name
	report.Project.OverallProgressPct = project.OverallProgressPct
	report.Project.ActiveBaselineID = project.ActiveBaselineID

	history, err := e.Repo.ListBaselines(ctx, projectID)
	if err != nil {
		return report, err
	}
	report.History = history
	for i := range history {
		if history[i].IsActive {
			report.ActiveBaseline = &history[i]
		}
	}

	if report.ActiveBaseline != nil {
		stages, err := e.Repo.ListStages(ctx, projectID)
		if err != nil {
			return report, err
		}
		byID := map[string]domain.Stage{}
		for _, s := range stages {
			byID[s.ID] = s
		}
		snaps, err := e.Repo.ListSnapshots(ctx, report.ActiveBaseline.ID)
		if err != nil {
			return report, err
		}
		for _, snap := range snaps {
			stage := byID[snap.StageID]
			row := StageDeviationRow{
				StageID:       snap.StageID,
				StageName:     stage.Name,
				BaselineStart: snap.BaselineStartDate,
				BaselineEnd:   snap.BaselineEndDate,
				PlannedEnd:    stage.PlannedEndDate,
			}
			if stage.PlannedEndDate != nil && snap.BaselineEndDate != nil {
				if days, err := schedule.DayDiff(*snap.BaselineEndDate, *stage.PlannedEndDate); err == nil {
					status := domain.DeviationOnBaseline
					switch {
					case days > 0:
						status = domain.DeviationDelayed
					case days < 0:
						status = domain.DeviationAhead
					}
					row.DeviationDays = &days
					row.DeviationStatus = &status
				}
			}
			report.StageDeviations = append(report.StageDeviations, row)
		}
	}

	trail, err := e.Repo.ListAuditTrail(ctx, projectID)
	if err != nil {
		return report, err
	}
	report.AuditTrail = trail
	return report, nil
}

// ExportAuditTrail flattens the audit trail into plain rows suitable for
// CSV or JSON export, ascending by sequence number.
func (e Engine) ExportAuditTrail(ctx context.Context, projectID string) ([]map[string]any, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	trail, err := e.Repo.ListAuditTrail(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(trail))
	for _, entry := range trail {
		rows = append(rows, map[string]any{
			"sequence_number":      entry.SequenceNumber,
			"occurred_at_utc":      entry.OccurredAt,
			"change_type":          entry.ChangeType,
			"reason":               entry.Reason,
			"schedule_impact_days": entry.ScheduleImpactDays,
			"stakeholder_comments": entry.StakeholderComments,
			"reviewer_comments":    entry.ReviewerComments,
			"changed_by_id":        entry.ChangedByID,
			"approved_by_id":       entry.ApprovedByID,
			"baseline_id":          entry.BaselineID,
		})
	}
	return rows, nil
}
