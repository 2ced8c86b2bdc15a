package repo

import (
	"context"
	"database/sql"

	"slipline/internal/domain"
)

func (r Repo) InsertStakeholder(ctx context.Context, s domain.Stakeholder) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO stakeholders(id,full_name,email,is_active,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.FullName, s.Email, s.IsActive, s.CreatedAt)
	return err
}

func (r Repo) GetStakeholder(ctx context.Context, id string) (domain.Stakeholder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,full_name,email,is_active,created_at FROM stakeholders WHERE id=?`, id)
	var s domain.Stakeholder
	err := row.Scan(&s.ID, &s.FullName, &s.Email, &s.IsActive, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListStakeholders(ctx context.Context) ([]domain.Stakeholder, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,full_name,email,is_active,created_at FROM stakeholders ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stakeholder
	for rows.Next() {
		var s domain.Stakeholder
		if err := rows.Scan(&s.ID, &s.FullName, &s.Email, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertAssignment(ctx context.Context, tx *sql.Tx, ps domain.ProjectStakeholder) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO project_stakeholders(id,project_id,stakeholder_id,role,assigned_at) VALUES (?,?,?,?,?)`,
		ps.ID, ps.ProjectID, ps.StakeholderID, ps.Role, ps.AssignedAt)
	return err
}

func (r Repo) DeleteAssignment(ctx context.Context, tx *sql.Tx, projectID, stakeholderID, role string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM project_stakeholders WHERE project_id=? AND stakeholder_id=? AND role=?`,
		projectID, stakeholderID, role)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListAssignments(ctx context.Context, projectID string) ([]domain.ProjectStakeholder, error) {
	return listAssignments(ctx, r.DB.QueryContext, projectID)
}

func (r Repo) ListAssignmentsTx(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.ProjectStakeholder, error) {
	return listAssignments(ctx, tx.QueryContext, projectID)
}

type queryFn func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func listAssignments(ctx context.Context, query queryFn, projectID string) ([]domain.ProjectStakeholder, error) {
	rows, err := query(ctx, `SELECT id,project_id,stakeholder_id,role,assigned_at FROM project_stakeholders WHERE project_id=? ORDER BY assigned_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectStakeholder
	for rows.Next() {
		var ps domain.ProjectStakeholder
		if err := rows.Scan(&ps.ID, &ps.ProjectID, &ps.StakeholderID, &ps.Role, &ps.AssignedAt); err != nil {
			return nil, err
		}
		res = append(res, ps)
	}
	return res, rows.Err()
}
