package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"slipline/internal/domain"
)

// SubmitChangeRequest builds a new pending change request. The reason is
// mandatory; schedule_impact_days is declarative and never applied to any
// schedule automatically.
func SubmitChangeRequest(projectID, requestedByID, approverID, changeType, reason string, scheduleImpactDays int, stakeholderComments string, costImpact *float64, now time.Time) (domain.ChangeRequest, error) {
	if !domain.ValidChangeType(changeType) {
		return domain.ChangeRequest{}, ErrUnknownEnum
	}
	if strings.TrimSpace(reason) == "" {
		return domain.ChangeRequest{}, ErrEmptyReason
	}
	ts := now.UTC().Format(time.RFC3339)
	return domain.ChangeRequest{
		ID:                  uuid.NewString(),
		ProjectID:           projectID,
		RequestedByID:       requestedByID,
		ApproverID:          approverID,
		ChangeType:          changeType,
		Reason:              reason,
		ScheduleImpactDays:  scheduleImpactDays,
		CostImpact:          costImpact,
		StakeholderComments: stakeholderComments,
		Status:              domain.ChangePending,
		SubmittedAt:         ts,
		UpdatedAt:           ts,
	}, nil
}

// ApproveChangeRequest moves a pending request to approved. Only the
// designated approver may act, reviewer comments are mandatory, and
// scope_change approval requires the reviewer to hold owner_representative.
// The request is untouched on any failure.
func ApproveChangeRequest(cr *domain.ChangeRequest, reviewerID, reviewerComments string, assignments []domain.ProjectStakeholder, now time.Time) error {
	if err := reviewable(cr, reviewerID, reviewerComments); err != nil {
		return err
	}
	if cr.ChangeType == domain.ChangeTypeScopeChange {
		if err := RequireRole(assignments, reviewerID, domain.RoleOwnerRep); err != nil {
			return err
		}
	}
	settle(cr, domain.ChangeApproved, reviewerComments, now)
	return nil
}

// RejectChangeRequest moves a pending request to rejected. Same reviewer and
// comment rules as approval; no role requirement.
func RejectChangeRequest(cr *domain.ChangeRequest, reviewerID, reviewerComments string, now time.Time) error {
	if err := reviewable(cr, reviewerID, reviewerComments); err != nil {
		return err
	}
	settle(cr, domain.ChangeRejected, reviewerComments, now)
	return nil
}

func reviewable(cr *domain.ChangeRequest, reviewerID, comments string) error {
	if cr.Status != domain.ChangePending {
		return ErrNotPending
	}
	if cr.ApproverID != reviewerID {
		return ErrWrongApprover
	}
	if strings.TrimSpace(comments) == "" {
		return ErrMissingReviewComments
	}
	return nil
}

func settle(cr *domain.ChangeRequest, status, comments string, now time.Time) {
	ts := now.UTC().Format(time.RFC3339)
	cr.Status = status
	cr.ReviewedAt = &ts
	cr.ReviewerComments = comments
	cr.UpdatedAt = ts
}
