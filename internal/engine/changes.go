package engine

import (
	"context"
	"fmt"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

// ChangeSubmitOptions are parameters for submitting a change request.
type ChangeSubmitOptions struct {
	ProjectID           string
	ApproverID          string
	ChangeType          string
	Reason              string
	ScheduleImpactDays  int
	CostImpact          *float64
	StakeholderComments string
	ActorID             string
}

// SubmitChangeRequest files a pending request and notifies every project
// stakeholder.
func (e Engine) SubmitChangeRequest(ctx context.Context, opts ChangeSubmitOptions) (domain.ChangeRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID); err != nil {
		return domain.ChangeRequest{}, err
	}
	if _, err := e.Repo.GetStakeholder(ctx, opts.ApproverID); err != nil {
		return domain.ChangeRequest{}, fmt.Errorf("approver %s: %w", opts.ApproverID, err)
	}
	cr, err := schedule.SubmitChangeRequest(opts.ProjectID, opts.ActorID, opts.ApproverID,
		opts.ChangeType, opts.Reason, opts.ScheduleImpactDays, opts.StakeholderComments, opts.CostImpact, e.now())
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := e.Repo.InsertChangeRequest(ctx, tx, cr); err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := e.notifier().Broadcast(ctx, tx, opts.ProjectID, domain.NotifyChangeSubmitted, cr.Reason, schedule.BroadcastRef{ChangeRequestID: &cr.ID}); err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChangeRequest{}, err
	}
	return cr, nil
}

// ApproveChangeRequest moves a pending request to approved. Only the
// designated approver, with mandatory comments; scope changes additionally
// require the approver to hold owner_representative.
func (e Engine) ApproveChangeRequest(ctx context.Context, changeRequestID, reviewerID, comments string) (domain.ChangeRequest, error) {
	return e.review(ctx, changeRequestID, reviewerID, comments, true)
}

// RejectChangeRequest moves a pending request to rejected.
func (e Engine) RejectChangeRequest(ctx context.Context, changeRequestID, reviewerID, comments string) (domain.ChangeRequest, error) {
	return e.review(ctx, changeRequestID, reviewerID, comments, false)
}

func (e Engine) review(ctx context.Context, changeRequestID, reviewerID, comments string, approve bool) (domain.ChangeRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	defer tx.Rollback()

	cr, err := e.Repo.GetChangeRequestTx(ctx, tx, changeRequestID)
	if err != nil {
		return domain.ChangeRequest{}, err
	}
	notificationType := domain.NotifyChangeRejected
	if approve {
		assignments, err := e.Repo.ListAssignmentsTx(ctx, tx, cr.ProjectID)
		if err != nil {
			return domain.ChangeRequest{}, err
		}
		if err := schedule.ApproveChangeRequest(&cr, reviewerID, comments, assignments, e.now()); err != nil {
			return domain.ChangeRequest{}, err
		}
		notificationType = domain.NotifyChangeApproved
	} else {
		if err := schedule.RejectChangeRequest(&cr, reviewerID, comments, e.now()); err != nil {
			return domain.ChangeRequest{}, err
		}
	}
	if err := e.Repo.UpdateChangeRequest(ctx, tx, cr); err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := e.notifier().Broadcast(ctx, tx, cr.ProjectID, notificationType, comments, schedule.BroadcastRef{ChangeRequestID: &cr.ID}); err != nil {
		return domain.ChangeRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChangeRequest{}, err
	}
	return cr, nil
}
