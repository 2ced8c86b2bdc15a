package repo

import (
	"context"
	"database/sql"

	"slipline/internal/domain"
)

func (r Repo) InsertPhase(ctx context.Context, tx *sql.Tx, p domain.Phase) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO phases(id,project_id,name,description,position,overall_progress_pct,planned_start_date,planned_end_date,actual_start_date,actual_end_date,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Name, p.Description, p.Position, p.OverallProgressPct,
		p.PlannedStartDate, p.PlannedEndDate, p.ActualStartDate, p.ActualEndDate, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) UpdatePhase(ctx context.Context, tx *sql.Tx, p domain.Phase) error {
	res, err := tx.ExecContext(ctx, `UPDATE phases SET name=?,description=?,position=?,overall_progress_pct=?,planned_start_date=?,planned_end_date=?,actual_start_date=?,actual_end_date=?,updated_at=? WHERE id=?`,
		p.Name, p.Description, p.Position, p.OverallProgressPct,
		p.PlannedStartDate, p.PlannedEndDate, p.ActualStartDate, p.ActualEndDate, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeletePhase(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM phases WHERE id=?`, id)
	return err
}

const phaseCols = `id,project_id,name,COALESCE(description,''),position,overall_progress_pct,planned_start_date,planned_end_date,actual_start_date,actual_end_date,created_at,updated_at`

func scanPhase(sc interface{ Scan(...any) error }) (domain.Phase, error) {
	var p domain.Phase
	err := sc.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.Position, &p.OverallProgressPct,
		&p.PlannedStartDate, &p.PlannedEndDate, &p.ActualStartDate, &p.ActualEndDate, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) GetPhase(ctx context.Context, id string) (domain.Phase, error) {
	return scanPhase(r.DB.QueryRowContext(ctx, `SELECT `+phaseCols+` FROM phases WHERE id=?`, id))
}

func (r Repo) GetPhaseTx(ctx context.Context, tx *sql.Tx, id string) (domain.Phase, error) {
	return scanPhase(tx.QueryRowContext(ctx, `SELECT `+phaseCols+` FROM phases WHERE id=?`, id))
}

func (r Repo) ListPhases(ctx context.Context, projectID string) ([]domain.Phase, error) {
	return listPhases(ctx, r.DB.QueryContext, projectID)
}

func (r Repo) ListPhasesTx(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Phase, error) {
	return listPhases(ctx, tx.QueryContext, projectID)
}

func listPhases(ctx context.Context, query queryFn, projectID string) ([]domain.Phase, error) {
	rows, err := query(ctx, `SELECT `+phaseCols+` FROM phases WHERE project_id=? ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Phase
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

const stageCols = `id,phase_id,project_id,name,COALESCE(description,''),position,planned_start_date,planned_end_date,planned_duration_days,actual_start_date,actual_end_date,actual_duration_days,baseline_start_date,baseline_end_date,baseline_duration_days,status,progress_pct,COALESCE(comments,''),deviation_days,deviation_status,created_at,updated_at,updated_by_id`

func scanStage(sc interface{ Scan(...any) error }) (domain.Stage, error) {
	var s domain.Stage
	err := sc.Scan(&s.ID, &s.PhaseID, &s.ProjectID, &s.Name, &s.Description, &s.Position,
		&s.PlannedStartDate, &s.PlannedEndDate, &s.PlannedDurationDays,
		&s.ActualStartDate, &s.ActualEndDate, &s.ActualDurationDays,
		&s.BaselineStartDate, &s.BaselineEndDate, &s.BaselineDurationDays,
		&s.Status, &s.ProgressPct, &s.Comments, &s.DeviationDays, &s.DeviationStatus,
		&s.CreatedAt, &s.UpdatedAt, &s.UpdatedByID)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertStage(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stages(id,phase_id,project_id,name,description,position,planned_start_date,planned_end_date,planned_duration_days,actual_start_date,actual_end_date,actual_duration_days,baseline_start_date,baseline_end_date,baseline_duration_days,status,progress_pct,comments,deviation_days,deviation_status,created_at,updated_at,updated_by_id) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.PhaseID, s.ProjectID, s.Name, s.Description, s.Position,
		s.PlannedStartDate, s.PlannedEndDate, s.PlannedDurationDays,
		s.ActualStartDate, s.ActualEndDate, s.ActualDurationDays,
		s.BaselineStartDate, s.BaselineEndDate, s.BaselineDurationDays,
		s.Status, s.ProgressPct, s.Comments, s.DeviationDays, s.DeviationStatus,
		s.CreatedAt, s.UpdatedAt, s.UpdatedByID)
	return err
}

func (r Repo) UpdateStage(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	res, err := tx.ExecContext(ctx, `UPDATE stages SET name=?,description=?,position=?,planned_start_date=?,planned_end_date=?,planned_duration_days=?,actual_start_date=?,actual_end_date=?,actual_duration_days=?,baseline_start_date=?,baseline_end_date=?,baseline_duration_days=?,status=?,progress_pct=?,comments=?,deviation_days=?,deviation_status=?,updated_at=?,updated_by_id=? WHERE id=?`,
		s.Name, s.Description, s.Position,
		s.PlannedStartDate, s.PlannedEndDate, s.PlannedDurationDays,
		s.ActualStartDate, s.ActualEndDate, s.ActualDurationDays,
		s.BaselineStartDate, s.BaselineEndDate, s.BaselineDurationDays,
		s.Status, s.ProgressPct, s.Comments, s.DeviationDays, s.DeviationStatus,
		s.UpdatedAt, s.UpdatedByID, s.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteStage(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM stages WHERE id=?`, id)
	return err
}

func (r Repo) DeleteDependenciesForStage(ctx context.Context, tx *sql.Tx, stageID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM stage_dependencies WHERE predecessor_stage_id=? OR successor_stage_id=?`, stageID, stageID)
	return err
}

func (r Repo) DeleteStatusUpdatesForStage(ctx context.Context, tx *sql.Tx, stageID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM stage_status_updates WHERE stage_id=?`, stageID)
	return err
}

func (r Repo) GetStage(ctx context.Context, id string) (domain.Stage, error) {
	return scanStage(r.DB.QueryRowContext(ctx, `SELECT `+stageCols+` FROM stages WHERE id=?`, id))
}

func (r Repo) GetStageTx(ctx context.Context, tx *sql.Tx, id string) (domain.Stage, error) {
	return scanStage(tx.QueryRowContext(ctx, `SELECT `+stageCols+` FROM stages WHERE id=?`, id))
}

func (r Repo) ListStages(ctx context.Context, projectID string) ([]domain.Stage, error) {
	return listStages(ctx, r.DB.QueryContext, `SELECT `+stageCols+` FROM stages WHERE project_id=? ORDER BY position`, projectID)
}

func (r Repo) ListStagesTx(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Stage, error) {
	return listStages(ctx, tx.QueryContext, `SELECT `+stageCols+` FROM stages WHERE project_id=? ORDER BY position`, projectID)
}

func (r Repo) ListStagesByPhase(ctx context.Context, phaseID string) ([]domain.Stage, error) {
	return listStages(ctx, r.DB.QueryContext, `SELECT `+stageCols+` FROM stages WHERE phase_id=? ORDER BY position`, phaseID)
}

func listStages(ctx context.Context, query queryFn, q string, arg string) ([]domain.Stage, error) {
	rows, err := query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertDependency(ctx context.Context, tx *sql.Tx, d domain.StageDependency) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stage_dependencies(id,project_id,predecessor_stage_id,successor_stage_id,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.ProjectID, d.PredecessorStageID, d.SuccessorStageID, d.CreatedAt)
	return err
}

func (r Repo) DeleteDependency(ctx context.Context, tx *sql.Tx, predecessorID, successorID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM stage_dependencies WHERE predecessor_stage_id=? AND successor_stage_id=?`,
		predecessorID, successorID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListDependencies(ctx context.Context, projectID string) ([]domain.StageDependency, error) {
	return listDependencies(ctx, r.DB.QueryContext, projectID)
}

func (r Repo) ListDependenciesTx(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.StageDependency, error) {
	return listDependencies(ctx, tx.QueryContext, projectID)
}

func listDependencies(ctx context.Context, query queryFn, projectID string) ([]domain.StageDependency, error) {
	rows, err := query(ctx, `SELECT id,project_id,predecessor_stage_id,successor_stage_id,created_at FROM stage_dependencies WHERE project_id=? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StageDependency
	for rows.Next() {
		var d domain.StageDependency
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.PredecessorStageID, &d.SuccessorStageID, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertStatusUpdate(ctx context.Context, tx *sql.Tx, u domain.StageStatusUpdate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stage_status_updates(id,stage_id,project_id,updated_by_id,previous_status,new_status,previous_progress_pct,new_progress_pct,actual_start_date,actual_end_date,comments,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.StageID, u.ProjectID, u.UpdatedByID, u.PreviousStatus, u.NewStatus,
		u.PreviousProgressPct, u.NewProgressPct, u.ActualStartDate, u.ActualEndDate,
		u.Comments, u.UpdatedAt)
	return err
}

func (r Repo) ListStatusUpdates(ctx context.Context, stageID string) ([]domain.StageStatusUpdate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,stage_id,project_id,updated_by_id,previous_status,new_status,previous_progress_pct,new_progress_pct,actual_start_date,actual_end_date,COALESCE(comments,''),updated_at FROM stage_status_updates WHERE stage_id=? ORDER BY updated_at`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StageStatusUpdate
	for rows.Next() {
		var u domain.StageStatusUpdate
		if err := rows.Scan(&u.ID, &u.StageID, &u.ProjectID, &u.UpdatedByID, &u.PreviousStatus, &u.NewStatus,
			&u.PreviousProgressPct, &u.NewProgressPct, &u.ActualStartDate, &u.ActualEndDate, &u.Comments, &u.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
