package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"slipline/internal/config"
	"slipline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectCols = `id,name,COALESCE(description,''),COALESCE(shipyard_name,''),COALESCE(vessel_type,''),planned_start_date,planned_end_date,actual_start_date,actual_end_date,overall_progress_pct,total_planned_duration_days,total_actual_duration_days,total_baseline_duration_days,active_baseline_id,created_at,updated_at,created_by_id`

func scanProject(sc interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.ShipyardName, &p.VesselType,
		&p.PlannedStartDate, &p.PlannedEndDate, &p.ActualStartDate, &p.ActualEndDate,
		&p.OverallProgressPct, &p.TotalPlannedDurationDays, &p.TotalActualDurationDays, &p.TotalBaselineDurationDays,
		&p.ActiveBaselineID, &p.CreatedAt, &p.UpdatedAt, &p.CreatedByID)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,name,description,shipyard_name,vessel_type,planned_start_date,planned_end_date,actual_start_date,actual_end_date,overall_progress_pct,total_planned_duration_days,total_actual_duration_days,total_baseline_duration_days,active_baseline_id,created_at,updated_at,created_by_id) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.ShipyardName, p.VesselType,
		p.PlannedStartDate, p.PlannedEndDate, p.ActualStartDate, p.ActualEndDate,
		p.OverallProgressPct, p.TotalPlannedDurationDays, p.TotalActualDurationDays, p.TotalBaselineDurationDays,
		p.ActiveBaselineID, p.CreatedAt, p.UpdatedAt, p.CreatedByID)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id))
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return scanProject(tx.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id))
}

// SingleProject resolves the project when the CLI was given no --project
// flag; it fails when the workspace holds more than one.
func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects`)
	if err != nil {
		return domain.Project{}, err
	}
	defer rows.Close()
	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return domain.Project{}, err
		}
		projects = append(projects, p)
	}
	if len(projects) == 0 {
		return domain.Project{}, ErrNotFound
	}
	if len(projects) > 1 {
		return domain.Project{}, fmt.Errorf("multiple projects exist; specify --project")
	}
	return projects[0], nil
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET name=?,description=?,shipyard_name=?,vessel_type=?,planned_start_date=?,planned_end_date=?,actual_start_date=?,actual_end_date=?,overall_progress_pct=?,total_planned_duration_days=?,total_actual_duration_days=?,total_baseline_duration_days=?,active_baseline_id=?,updated_at=? WHERE id=?`,
		p.Name, p.Description, p.ShipyardName, p.VesselType,
		p.PlannedStartDate, p.PlannedEndDate, p.ActualStartDate, p.ActualEndDate,
		p.OverallProgressPct, p.TotalPlannedDurationDays, p.TotalActualDurationDays, p.TotalBaselineDurationDays,
		p.ActiveBaselineID, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpsertProjectConfig(ctx context.Context, projectID string, cfg *config.Config) error {
	return upsertProjectConfig(ctx, r.DB, nil, projectID, cfg)
}

func (r Repo) UpsertProjectConfigTx(ctx context.Context, tx *sql.Tx, projectID string, cfg *config.Config) error {
	return upsertProjectConfig(ctx, nil, tx, projectID, cfg)
}

func upsertProjectConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, projectID string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	query := `INSERT INTO project_config(project_id,config_yaml,updated_at) VALUES (?,?,?)
		ON CONFLICT(project_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`
	now := time.Now().UTC().Format(time.RFC3339)
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, projectID, string(data), now)
	} else {
		_, err = db.ExecContext(ctx, query, projectID, string(data), now)
	}
	return err
}

func (r Repo) GetProjectConfig(ctx context.Context, projectID string) (*config.Config, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM project_config WHERE project_id=?`, projectID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
