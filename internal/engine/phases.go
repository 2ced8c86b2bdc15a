package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

// PhaseAddOptions are parameters for adding a phase.
type PhaseAddOptions struct {
	ProjectID   string
	Name        string
	Description string
	Position    int
	ActorID     string
}

// AddPhase appends a phase to the project's schedule. Lead project manager
// only.
func (e Engine) AddPhase(ctx context.Context, opts PhaseAddOptions) (domain.Phase, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Phase{}, errors.New("name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Phase{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID); err != nil {
		return domain.Phase{}, err
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.Phase{}, err
	}
	if err := schedule.RequireRole(assignments, opts.ActorID, domain.RoleLeadProjectManager); err != nil {
		return domain.Phase{}, err
	}
	now := e.ts()
	position := opts.Position
	if position == 0 {
		existing, err := e.Repo.ListPhasesTx(ctx, tx, opts.ProjectID)
		if err != nil {
			return domain.Phase{}, err
		}
		position = len(existing) + 1
	}
	p := domain.Phase{
		ID:          uuid.NewString(),
		ProjectID:   opts.ProjectID,
		Name:        opts.Name,
		Description: opts.Description,
		Position:    position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertPhase(ctx, tx, p); err != nil {
		return domain.Phase{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Phase{}, err
	}
	return p, nil
}

// ReorderPhases reassigns positions 1..n following the given id sequence,
// which must cover exactly the project's phases.
func (e Engine) ReorderPhases(ctx context.Context, projectID string, orderedIDs []string, actorID string) ([]domain.Phase, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	if err := schedule.RequireRole(assignments, actorID, domain.RoleLeadProjectManager); err != nil {
		return nil, err
	}
	phases, err := e.Repo.ListPhasesTx(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	byID := map[string]*domain.Phase{}
	for i := range phases {
		byID[phases[i].ID] = &phases[i]
	}
	if len(orderedIDs) != len(phases) {
		return nil, schedule.ErrOrderingMismatch
	}
	seen := map[string]bool{}
	for _, id := range orderedIDs {
		if byID[id] == nil || seen[id] {
			return nil, schedule.ErrOrderingMismatch
		}
		seen[id] = true
	}
	now := e.ts()
	for i, id := range orderedIDs {
		p := byID[id]
		p.Position = i + 1
		p.UpdatedAt = now
		if err := e.Repo.UpdatePhase(ctx, tx, *p); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return e.Repo.ListPhases(ctx, projectID)
}

// RemovePhase deletes a phase and its stages. It refuses when any stage in
// the phase has recorded actuals: completed work is never silently
// discarded.
func (e Engine) RemovePhase(ctx context.Context, projectID, phaseID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	phase, err := e.Repo.GetPhaseTx(ctx, tx, phaseID)
	if err != nil {
		return err
	}
	assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if err := schedule.RequireRole(assignments, actorID, domain.RoleLeadProjectManager); err != nil {
		return err
	}
	stages, err := e.Repo.ListStagesTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	for _, s := range stages {
		if s.PhaseID == phase.ID && s.ActualStartDate != nil {
			return schedule.ErrPhaseHasActuals
		}
	}
	for _, s := range stages {
		if s.PhaseID == phase.ID {
			if err := e.Repo.DeleteDependenciesForStage(ctx, tx, s.ID); err != nil {
				return err
			}
			if err := e.Repo.DeleteStatusUpdatesForStage(ctx, tx, s.ID); err != nil {
				return err
			}
			if err := e.Repo.DeleteStage(ctx, tx, s.ID); err != nil {
				return err
			}
		}
	}
	if err := e.Repo.DeletePhase(ctx, tx, phase.ID); err != nil {
		return err
	}
	if err := e.refreshSummaries(ctx, tx, projectID, ""); err != nil {
		return err
	}
	return tx.Commit()
}
