package repo

import (
	"context"
	"database/sql"

	"slipline/internal/domain"
)

const baselineCols = `id,project_id,version_number,set_by_id,set_at,is_active,COALESCE(notes,''),change_request_id`

func scanBaseline(sc interface{ Scan(...any) error }) (domain.Baseline, error) {
	var b domain.Baseline
	err := sc.Scan(&b.ID, &b.ProjectID, &b.VersionNumber, &b.SetByID, &b.SetAt, &b.IsActive, &b.Notes, &b.ChangeRequestID)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) InsertBaseline(ctx context.Context, tx *sql.Tx, b domain.Baseline) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO baselines(id,project_id,version_number,set_by_id,set_at,is_active,notes,change_request_id) VALUES (?,?,?,?,?,?,?,?)`,
		b.ID, b.ProjectID, b.VersionNumber, b.SetByID, b.SetAt, b.IsActive, b.Notes, b.ChangeRequestID)
	return err
}

func (r Repo) DeactivateBaselines(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE baselines SET is_active=0 WHERE project_id=? AND is_active=1`, projectID)
	return err
}

func (r Repo) GetBaseline(ctx context.Context, id string) (domain.Baseline, error) {
	return scanBaseline(r.DB.QueryRowContext(ctx, `SELECT `+baselineCols+` FROM baselines WHERE id=?`, id))
}

func (r Repo) ActiveBaseline(ctx context.Context, projectID string) (domain.Baseline, error) {
	return scanBaseline(r.DB.QueryRowContext(ctx, `SELECT `+baselineCols+` FROM baselines WHERE project_id=? AND is_active=1`, projectID))
}

// ListBaselines returns a project's baselines ordered by version, the
// baseline history.
func (r Repo) ListBaselines(ctx context.Context, projectID string) ([]domain.Baseline, error) {
	return listBaselines(ctx, r.DB.QueryContext, projectID)
}

func (r Repo) ListBaselinesTx(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Baseline, error) {
	return listBaselines(ctx, tx.QueryContext, projectID)
}

func listBaselines(ctx context.Context, query queryFn, projectID string) ([]domain.Baseline, error) {
	rows, err := query(ctx, `SELECT `+baselineCols+` FROM baselines WHERE project_id=? ORDER BY version_number`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Baseline
	for rows.Next() {
		b, err := scanBaseline(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) InsertSnapshot(ctx context.Context, tx *sql.Tx, s domain.BaselineStageSnapshot) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO baseline_stage_snapshots(id,baseline_id,stage_id,project_id,baseline_start_date,baseline_end_date,baseline_duration_days,snapshotted_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.BaselineID, s.StageID, s.ProjectID, s.BaselineStartDate, s.BaselineEndDate, s.BaselineDurationDays, s.SnapshottedAt)
	return err
}

func (r Repo) ListSnapshots(ctx context.Context, baselineID string) ([]domain.BaselineStageSnapshot, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,baseline_id,stage_id,project_id,baseline_start_date,baseline_end_date,baseline_duration_days,snapshotted_at FROM baseline_stage_snapshots WHERE baseline_id=?`, baselineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BaselineStageSnapshot
	for rows.Next() {
		var s domain.BaselineStageSnapshot
		if err := rows.Scan(&s.ID, &s.BaselineID, &s.StageID, &s.ProjectID, &s.BaselineStartDate, &s.BaselineEndDate, &s.BaselineDurationDays, &s.SnapshottedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

const changeRequestCols = `id,project_id,requested_by_id,approver_id,change_type,reason,schedule_impact_days,cost_impact,status,reviewed_at,COALESCE(reviewer_comments,''),COALESCE(stakeholder_comments,''),submitted_at,updated_at`

func scanChangeRequest(sc interface{ Scan(...any) error }) (domain.ChangeRequest, error) {
	var cr domain.ChangeRequest
	err := sc.Scan(&cr.ID, &cr.ProjectID, &cr.RequestedByID, &cr.ApproverID, &cr.ChangeType, &cr.Reason,
		&cr.ScheduleImpactDays, &cr.CostImpact, &cr.Status, &cr.ReviewedAt,
		&cr.ReviewerComments, &cr.StakeholderComments, &cr.SubmittedAt, &cr.UpdatedAt)
	if err == sql.ErrNoRows {
		return cr, ErrNotFound
	}
	return cr, err
}

func (r Repo) InsertChangeRequest(ctx context.Context, tx *sql.Tx, cr domain.ChangeRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO change_requests(id,project_id,requested_by_id,approver_id,change_type,reason,schedule_impact_days,cost_impact,status,reviewed_at,reviewer_comments,stakeholder_comments,submitted_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		cr.ID, cr.ProjectID, cr.RequestedByID, cr.ApproverID, cr.ChangeType, cr.Reason,
		cr.ScheduleImpactDays, cr.CostImpact, cr.Status, cr.ReviewedAt,
		cr.ReviewerComments, cr.StakeholderComments, cr.SubmittedAt, cr.UpdatedAt)
	return err
}

func (r Repo) UpdateChangeRequest(ctx context.Context, tx *sql.Tx, cr domain.ChangeRequest) error {
	res, err := tx.ExecContext(ctx, `UPDATE change_requests SET status=?,reviewed_at=?,reviewer_comments=?,updated_at=? WHERE id=?`,
		cr.Status, cr.ReviewedAt, cr.ReviewerComments, cr.UpdatedAt, cr.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetChangeRequest(ctx context.Context, id string) (domain.ChangeRequest, error) {
	return scanChangeRequest(r.DB.QueryRowContext(ctx, `SELECT `+changeRequestCols+` FROM change_requests WHERE id=?`, id))
}

func (r Repo) GetChangeRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.ChangeRequest, error) {
	return scanChangeRequest(tx.QueryRowContext(ctx, `SELECT `+changeRequestCols+` FROM change_requests WHERE id=?`, id))
}

// ListChangeRequests returns a project's change requests, optionally
// filtered by status.
func (r Repo) ListChangeRequests(ctx context.Context, projectID, status string) ([]domain.ChangeRequest, error) {
	query := `SELECT ` + changeRequestCols + ` FROM change_requests WHERE project_id=?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, cr)
	}
	return res, rows.Err()
}

func (r Repo) InsertAuditEntry(ctx context.Context, tx *sql.Tx, e domain.AuditTrailEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_trail(id,project_id,sequence_number,baseline_id,change_request_id,changed_by_id,approved_by_id,change_type,reason,schedule_impact_days,stakeholder_comments,reviewer_comments,occurred_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, e.SequenceNumber, e.BaselineID, e.ChangeRequestID, e.ChangedByID, e.ApprovedByID,
		e.ChangeType, e.Reason, e.ScheduleImpactDays, e.StakeholderComments, e.ReviewerComments, e.OccurredAt)
	return err
}

// LastAuditSequence returns the highest sequence number recorded for a
// project, zero when the trail is empty.
func (r Repo) LastAuditSequence(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence_number),0) FROM audit_trail WHERE project_id=?`, projectID)
	var seq int
	err := row.Scan(&seq)
	return seq, err
}

func (r Repo) ListAuditTrail(ctx context.Context, projectID string) ([]domain.AuditTrailEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,sequence_number,baseline_id,change_request_id,changed_by_id,approved_by_id,change_type,reason,schedule_impact_days,COALESCE(stakeholder_comments,''),COALESCE(reviewer_comments,''),occurred_at FROM audit_trail WHERE project_id=? ORDER BY sequence_number`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditTrailEntry
	for rows.Next() {
		var e domain.AuditTrailEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SequenceNumber, &e.BaselineID, &e.ChangeRequestID,
			&e.ChangedByID, &e.ApprovedByID, &e.ChangeType, &e.Reason, &e.ScheduleImpactDays,
			&e.StakeholderComments, &e.ReviewerComments, &e.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
