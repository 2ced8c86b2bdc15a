package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

// StageAddOptions are parameters for adding a stage to a phase.
type StageAddOptions struct {
	ProjectID        string
	PhaseID          string
	Name             string
	Description      string
	Position         int
	PlannedStartDate *string
	PlannedEndDate   *string
	ActorID          string
}

// AddStage creates a stage under a phase. Lead project manager only.
func (e Engine) AddStage(ctx context.Context, opts StageAddOptions) (domain.Stage, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Stage{}, errors.New("name is required")
	}
	if err := schedule.CheckDateOrdering(opts.PlannedStartDate, opts.PlannedEndDate); err != nil {
		return domain.Stage{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stage{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID); err != nil {
		return domain.Stage{}, err
	}
	phase, err := e.Repo.GetPhaseTx(ctx, tx, opts.PhaseID)
	if err != nil {
		return domain.Stage{}, err
	}
	if phase.ProjectID != opts.ProjectID {
		return domain.Stage{}, fmt.Errorf("phase %s not in project %s", opts.PhaseID, opts.ProjectID)
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Stage{}, err
	}
	if err := schedule.RequireRole(assignments, opts.ActorID, domain.RoleLeadProjectManager); err != nil {
		return domain.Stage{}, err
	}
	now := e.ts()
	s := domain.Stage{
		ID:                  uuid.NewString(),
		PhaseID:             opts.PhaseID,
		ProjectID:           opts.ProjectID,
		Name:                opts.Name,
		Description:         opts.Description,
		Position:            opts.Position,
		PlannedStartDate:    opts.PlannedStartDate,
		PlannedEndDate:      opts.PlannedEndDate,
		PlannedDurationDays: schedule.DurationDays(opts.PlannedStartDate, opts.PlannedEndDate),
		Status:              domain.StageNotStarted,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.Repo.InsertStage(ctx, tx, s); err != nil {
		return domain.Stage{}, err
	}
	if err := e.refreshSummaries(ctx, tx, opts.ProjectID, opts.PhaseID); err != nil {
		return domain.Stage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stage{}, err
	}
	return s, nil
}

// StageScheduleOptions carry a planned-date edit for one stage.
type StageScheduleOptions struct {
	StageID          string
	PlannedStartDate *string
	PlannedEndDate   *string
	ActorID          string
}

// UpdateStageSchedule rewrites a stage's planned dates and recomputes its
// deviation against the baseline. Lead project manager only.
func (e Engine) UpdateStageSchedule(ctx context.Context, opts StageScheduleOptions) (domain.Stage, error) {
	if err := schedule.CheckDateOrdering(opts.PlannedStartDate, opts.PlannedEndDate); err != nil {
		return domain.Stage{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stage{}, err
	}
	defer tx.Rollback()

	stage, err := e.Repo.GetStageTx(ctx, tx, opts.StageID)
	if err != nil {
		return domain.Stage{}, err
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, stage.ProjectID)
	if err != nil {
		return domain.Stage{}, err
	}
	if err := schedule.RequireRole(assignments, opts.ActorID, domain.RoleLeadProjectManager); err != nil {
		return domain.Stage{}, err
	}
	stage.PlannedStartDate = opts.PlannedStartDate
	stage.PlannedEndDate = opts.PlannedEndDate
	stage.PlannedDurationDays = schedule.DurationDays(opts.PlannedStartDate, opts.PlannedEndDate)
	stage.UpdatedAt = e.ts()
	stage.UpdatedByID = &opts.ActorID
	schedule.ComputeDeviation(&stage)
	if err := e.Repo.UpdateStage(ctx, tx, stage); err != nil {
		return domain.Stage{}, err
	}
	if err := e.refreshSummaries(ctx, tx, stage.ProjectID, stage.PhaseID); err != nil {
		return domain.Stage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stage{}, err
	}
	return stage, nil
}

// ProgressOptions carry one stage progress report.
type ProgressOptions struct {
	StageID         string
	Status          string
	ProgressPct     float64
	ActualStartDate *string
	ActualEndDate   *string
	Comments        string
	ActorID         string
}

// RecordProgress applies a progress update, writes the immutable history
// row, refreshes phase and project summaries, and broadcasts to the
// project's stakeholders when the stage reports blocked.
func (e Engine) RecordProgress(ctx context.Context, opts ProgressOptions) (domain.Stage, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stage{}, err
	}
	defer tx.Rollback()

	stage, err := e.Repo.GetStageTx(ctx, tx, opts.StageID)
	if err != nil {
		return domain.Stage{}, err
	}
	row, err := schedule.ApplyProgressUpdate(&stage, schedule.ProgressUpdate{
		Status:          opts.Status,
		ProgressPct:     opts.ProgressPct,
		ActualStartDate: opts.ActualStartDate,
		ActualEndDate:   opts.ActualEndDate,
		Comments:        opts.Comments,
	}, opts.ActorID, e.now())
	if err != nil {
		return domain.Stage{}, err
	}
	row.ID = uuid.NewString()
	schedule.ComputeDeviation(&stage)
	if err := e.Repo.UpdateStage(ctx, tx, stage); err != nil {
		return domain.Stage{}, err
	}
	if err := e.Repo.InsertStatusUpdate(ctx, tx, row); err != nil {
		return domain.Stage{}, err
	}
	if opts.Status == domain.StageBlocked {
		if err := e.notifier().Broadcast(ctx, tx, stage.ProjectID, domain.NotifyStageBlocked, opts.Comments, schedule.BroadcastRef{StageID: &stage.ID}); err != nil {
			return domain.Stage{}, err
		}
	}
	if err := e.refreshSummaries(ctx, tx, stage.ProjectID, stage.PhaseID); err != nil {
		return domain.Stage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stage{}, err
	}
	return stage, nil
}

// AddDependency creates a finish-to-start edge after cycle, duplicate and
// self-loop checks against the project's current graph.
func (e Engine) AddDependency(ctx context.Context, projectID, predecessorID, successorID, actorID string) (domain.StageDependency, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StageDependency{}, err
	}
	defer tx.Rollback()

	for _, id := range []string{predecessorID, successorID} {
		s, err := e.Repo.GetStageTx(ctx, tx, id)
		if err != nil {
			return domain.StageDependency{}, fmt.Errorf("stage %s: %w", id, err)
		}
		if s.ProjectID != projectID {
			return domain.StageDependency{}, fmt.Errorf("stage %s not in project %s", id, projectID)
		}
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, projectID)
	if err != nil {
		return domain.StageDependency{}, err
	}
	if err := schedule.RequireRole(assignments, actorID, domain.RoleLeadProjectManager); err != nil {
		return domain.StageDependency{}, err
	}
	existing, err := e.Repo.ListDependenciesTx(ctx, tx, projectID)
	if err != nil {
		return domain.StageDependency{}, err
	}
	if err := schedule.CheckNewDependency(predecessorID, successorID, existing); err != nil {
		return domain.StageDependency{}, err
	}
	d := domain.StageDependency{
		ID:                 uuid.NewString(),
		ProjectID:          projectID,
		PredecessorStageID: predecessorID,
		SuccessorStageID:   successorID,
		CreatedAt:          e.ts(),
	}
	if err := e.Repo.InsertDependency(ctx, tx, d); err != nil {
		return domain.StageDependency{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StageDependency{}, err
	}
	return d, nil
}

// RemoveDependency deletes an edge. Lead project manager only.
func (e Engine) RemoveDependency(ctx context.Context, projectID, predecessorID, successorID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if err := schedule.RequireRole(assignments, actorID, domain.RoleLeadProjectManager); err != nil {
		return err
	}
	if err := e.Repo.DeleteDependency(ctx, tx, predecessorID, successorID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeviationReport is the per-project deviation rollup.
type DeviationReport struct {
	ProjectID  string         `json:"project_id"`
	OnBaseline int            `json:"on_baseline"`
	Ahead      int            `json:"ahead"`
	Delayed    int            `json:"delayed"`
	Stages     []domain.Stage `json:"stages"`
}

// Deviations recomputes and reports every stage's deviation against the
// active baseline. Stages without baseline dates are listed but not
// counted.
func (e Engine) Deviations(ctx context.Context, projectID string) (DeviationReport, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return DeviationReport{}, err
	}
	stages, err := e.Repo.ListStages(ctx, projectID)
	if err != nil {
		return DeviationReport{}, err
	}
	schedule.ComputeDeviations(stages)
	sum := schedule.DeviationSummary(stages)
	return DeviationReport{
		ProjectID:  projectID,
		OnBaseline: sum[domain.DeviationOnBaseline],
		Ahead:      sum[domain.DeviationAhead],
		Delayed:    sum[domain.DeviationDelayed],
		Stages:     stages,
	}, nil
}

// GanttPhase is one phase row of the Gantt view with its stages in
// position order and the dependency edges touching them.
type GanttPhase struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	Position           int                      `json:"position"`
	OverallProgressPct float64                  `json:"overall_progress_pct"`
	PlannedStartDate   *string                  `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate     *string                  `json:"planned_end_date,omitempty" format:"date"`
	Stages             []domain.Stage           `json:"stages"`
	Dependencies       []domain.StageDependency `json:"dependencies"`
}

// GanttView is the full schedule picture for one project.
type GanttView struct {
	ProjectID                 string       `json:"project_id"`
	ProjectName               string       `json:"project_name"`
	OverallProgressPct        float64      `json:"overall_progress_pct"`
	TotalPlannedDurationDays  int          `json:"total_planned_duration_days"`
	TotalActualDurationDays   int          `json:"total_actual_duration_days"`
	TotalBaselineDurationDays int          `json:"total_baseline_duration_days"`
	ActiveBaselineID          *string      `json:"active_baseline_id,omitempty"`
	Phases                    []GanttPhase `json:"phases"`
	OnBaseline                int          `json:"on_baseline"`
	Ahead                     int          `json:"ahead"`
	Delayed                   int          `json:"delayed"`
}

// Gantt assembles phases, stages and dependency edges for a project,
// recomputing stage deviations against the active baseline. Edges are
// attached to every phase containing one of their endpoints.
func (e Engine) Gantt(ctx context.Context, projectID string) (GanttView, error) {
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return GanttView{}, err
	}
	phases, err := e.Repo.ListPhases(ctx, projectID)
	if err != nil {
		return GanttView{}, err
	}
	stages, err := e.Repo.ListStages(ctx, projectID)
	if err != nil {
		return GanttView{}, err
	}
	deps, err := e.Repo.ListDependencies(ctx, projectID)
	if err != nil {
		return GanttView{}, err
	}

	schedule.ComputeDeviations(stages)
	sum := schedule.DeviationSummary(stages)

	byPhase := make(map[string][]domain.Stage, len(phases))
	for _, s := range stages {
		byPhase[s.PhaseID] = append(byPhase[s.PhaseID], s)
	}

	view := GanttView{
		ProjectID:                 project.ID,
		ProjectName:               project.Name,
		OverallProgressPct:        project.OverallProgressPct,
		TotalPlannedDurationDays:  project.TotalPlannedDurationDays,
		TotalActualDurationDays:   project.TotalActualDurationDays,
		TotalBaselineDurationDays: project.TotalBaselineDurationDays,
		ActiveBaselineID:          project.ActiveBaselineID,
		Phases:                    make([]GanttPhase, 0, len(phases)),
		OnBaseline:                sum[domain.DeviationOnBaseline],
		Ahead:                     sum[domain.DeviationAhead],
		Delayed:                   sum[domain.DeviationDelayed],
	}
	for _, ph := range phases {
		phStages := byPhase[ph.ID]
		ids := make(map[string]bool, len(phStages))
		for _, s := range phStages {
			ids[s.ID] = true
		}
		phDeps := make([]domain.StageDependency, 0)
		for _, d := range deps {
			if ids[d.PredecessorStageID] || ids[d.SuccessorStageID] {
				phDeps = append(phDeps, d)
			}
		}
		if phStages == nil {
			phStages = []domain.Stage{}
		}
		view.Phases = append(view.Phases, GanttPhase{
			ID:                 ph.ID,
			Name:               ph.Name,
			Position:           ph.Position,
			OverallProgressPct: ph.OverallProgressPct,
			PlannedStartDate:   ph.PlannedStartDate,
			PlannedEndDate:     ph.PlannedEndDate,
			Stages:             phStages,
			Dependencies:       phDeps,
		})
	}
	return view, nil
}
