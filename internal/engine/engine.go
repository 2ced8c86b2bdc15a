package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slipline/internal/config"
	"slipline/internal/domain"
	"slipline/internal/notify"
	"slipline/internal/repo"
	"slipline/internal/schedule"
)

// Engine is the transactional use-case layer. Every mutating method runs a
// single transaction: validation through the schedule package, entity
// writes, summary refresh, audit and notification rows, then commit. A
// failed step rolls the whole change back.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) ts() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) notifier() notify.Writer {
	return notify.Writer{Repo: e.Repo, Now: e.Now}
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID               string
	Name             string
	Description      string
	ShipyardName     string
	VesselType       string
	PlannedStartDate *string
	PlannedEndDate   *string
	ActorID          string
}

// CreateProject registers a new hull fabrication project and assigns the
// creator as lead project manager.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.ActorID == "" {
		return domain.Project{}, errors.New("actor is required")
	}
	if err := schedule.CheckDateOrdering(opts.PlannedStartDate, opts.PlannedEndDate); err != nil {
		return domain.Project{}, err
	}
	if _, err := e.Repo.GetStakeholder(ctx, opts.ActorID); err != nil {
		return domain.Project{}, fmt.Errorf("stakeholder %s: %w", opts.ActorID, err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	now := e.ts()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	p := domain.Project{
		ID:               id,
		Name:             opts.Name,
		Description:      opts.Description,
		ShipyardName:     opts.ShipyardName,
		VesselType:       opts.VesselType,
		PlannedStartDate: opts.PlannedStartDate,
		PlannedEndDate:   opts.PlannedEndDate,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedByID:      &opts.ActorID,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,shipyard_name,vessel_type,planned_start_date,planned_end_date,overall_progress_pct,total_planned_duration_days,total_actual_duration_days,total_baseline_duration_days,created_at,updated_at,created_by_id) VALUES (?,?,?,?,?,?,?,0,0,0,0,?,?,?)`,
		p.ID, p.Name, p.Description, p.ShipyardName, p.VesselType, p.PlannedStartDate, p.PlannedEndDate, p.CreatedAt, p.UpdatedAt, opts.ActorID); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.InsertAssignment(ctx, tx, domain.ProjectStakeholder{
		ID:            uuid.NewString(),
		ProjectID:     p.ID,
		StakeholderID: opts.ActorID,
		Role:          domain.RoleLeadProjectManager,
		AssignedAt:    now,
	}); err != nil {
		return domain.Project{}, fmt.Errorf("assign creator: %w", err)
	}
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default(p.ID)
	}
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, p.ID, cfg); err != nil {
		return domain.Project{}, fmt.Errorf("insert project config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions carry field-level project updates; nil means keep.
type ProjectUpdateOptions struct {
	ProjectID        string
	Name             *string
	Description      *string
	PlannedStartDate *string
	PlannedEndDate   *string
	ActorID          string
}

// UpdateProject applies project-level schedule edits. Lead project manager
// only.
func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := schedule.RequireRole(assignments, opts.ActorID, domain.RoleLeadProjectManager); err != nil {
		return domain.Project{}, err
	}
	if opts.Name != nil {
		p.Name = *opts.Name
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.PlannedStartDate != nil {
		p.PlannedStartDate = opts.PlannedStartDate
	}
	if opts.PlannedEndDate != nil {
		p.PlannedEndDate = opts.PlannedEndDate
	}
	if err := schedule.CheckDateOrdering(p.PlannedStartDate, p.PlannedEndDate); err != nil {
		return domain.Project{}, err
	}
	p.UpdatedAt = e.ts()
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// CreateStakeholder registers a stakeholder in the global registry.
func (e Engine) CreateStakeholder(ctx context.Context, fullName, email string) (domain.Stakeholder, error) {
	if strings.TrimSpace(fullName) == "" {
		return domain.Stakeholder{}, errors.New("full_name is required")
	}
	if !strings.Contains(email, "@") {
		return domain.Stakeholder{}, fmt.Errorf("%q is not a valid email address", email)
	}
	s := domain.Stakeholder{
		ID:        uuid.NewString(),
		FullName:  fullName,
		Email:     email,
		IsActive:  true,
		CreatedAt: e.ts(),
	}
	if err := e.Repo.InsertStakeholder(ctx, s); err != nil {
		return domain.Stakeholder{}, err
	}
	return s, nil
}

// AssignStakeholder grants a role on a project. The same stakeholder may
// hold several roles; an exact duplicate is rejected.
func (e Engine) AssignStakeholder(ctx context.Context, projectID, stakeholderID, role string) (domain.ProjectStakeholder, error) {
	if !domain.ValidRole(role) {
		return domain.ProjectStakeholder{}, schedule.ErrUnknownEnum
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProjectStakeholder{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, projectID); err != nil {
		return domain.ProjectStakeholder{}, err
	}
	if _, err := e.Repo.GetStakeholder(ctx, stakeholderID); err != nil {
		return domain.ProjectStakeholder{}, fmt.Errorf("stakeholder %s: %w", stakeholderID, err)
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, projectID)
	if err != nil {
		return domain.ProjectStakeholder{}, err
	}
	for _, ps := range assignments {
		if ps.StakeholderID == stakeholderID && ps.Role == role {
			return domain.ProjectStakeholder{}, schedule.ErrDuplicateRole
		}
	}
	ps := domain.ProjectStakeholder{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		StakeholderID: stakeholderID,
		Role:          role,
		AssignedAt:    e.ts(),
	}
	if err := e.Repo.InsertAssignment(ctx, tx, ps); err != nil {
		return domain.ProjectStakeholder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProjectStakeholder{}, err
	}
	return ps, nil
}

// RemoveStakeholder revokes one role assignment.
func (e Engine) RemoveStakeholder(ctx context.Context, projectID, stakeholderID, role string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAssignment(ctx, tx, projectID, stakeholderID, role); err != nil {
		return err
	}
	return tx.Commit()
}

// refreshSummaries recomputes a phase (when phaseID is set) and the project
// rollup from the current stage rows inside the transaction.
func (e Engine) refreshSummaries(ctx context.Context, tx *sql.Tx, projectID, phaseID string) error {
	stages, err := e.Repo.ListStagesTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if phaseID != "" {
		phase, err := e.Repo.GetPhaseTx(ctx, tx, phaseID)
		if err != nil {
			return err
		}
		schedule.RecalculatePhaseProgress(&phase, stages, e.now())
		if err := e.Repo.UpdatePhase(ctx, tx, phase); err != nil {
			return err
		}
	}
	project, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	schedule.RecalculateProjectProgress(&project, stages, e.now())
	return e.Repo.UpdateProject(ctx, tx, project)
}
