package schedule_test

import (
	"errors"
	"testing"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

func TestSubmitChangeRequest(t *testing.T) {
	cr, err := schedule.SubmitChangeRequest("proj-1", "pm-1", "appr-1", domain.ChangeTypeDelay, "steel delivery slipped", 14, "supplier notice attached", nil, testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if cr.Status != domain.ChangePending || cr.ScheduleImpactDays != 14 {
		t.Fatalf("request: %+v", cr)
	}

	if _, err := schedule.SubmitChangeRequest("proj-1", "pm-1", "appr-1", domain.ChangeTypeDelay, "   ", 0, "", nil, testNow); !errors.Is(err, schedule.ErrEmptyReason) {
		t.Fatalf("blank reason: %v", err)
	}
	if _, err := schedule.SubmitChangeRequest("proj-1", "pm-1", "appr-1", "rework", "r", 0, "", nil, testNow); !errors.Is(err, schedule.ErrUnknownEnum) {
		t.Fatalf("bad type: %v", err)
	}
}

func pendingCR(changeType string) domain.ChangeRequest {
	cr, _ := schedule.SubmitChangeRequest("proj-1", "pm-1", "appr-1", changeType, "reason", 7, "", nil, testNow)
	return cr
}

func TestApproveChangeRequest(t *testing.T) {
	cr := pendingCR(domain.ChangeTypeDelay)
	if err := schedule.ApproveChangeRequest(&cr, "appr-1", "verified against yard capacity", nil, testNow); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if cr.Status != domain.ChangeApproved || cr.ReviewedAt == nil {
		t.Fatalf("approved request: %+v", cr)
	}

	// approved is terminal
	if err := schedule.ApproveChangeRequest(&cr, "appr-1", "again", nil, testNow); !errors.Is(err, schedule.ErrNotPending) {
		t.Fatalf("re-approve: %v", err)
	}
	if err := schedule.RejectChangeRequest(&cr, "appr-1", "flip", testNow); !errors.Is(err, schedule.ErrNotPending) {
		t.Fatalf("reject approved: %v", err)
	}
}

func TestApproveRejections(t *testing.T) {
	cr := pendingCR(domain.ChangeTypeDelay)
	if err := schedule.ApproveChangeRequest(&cr, "intruder", "c", nil, testNow); !errors.Is(err, schedule.ErrWrongApprover) {
		t.Fatalf("wrong approver: %v", err)
	}
	if err := schedule.ApproveChangeRequest(&cr, "appr-1", "  ", nil, testNow); !errors.Is(err, schedule.ErrMissingReviewComments) {
		t.Fatalf("blank comments: %v", err)
	}
	if cr.Status != domain.ChangePending {
		t.Fatalf("failed review must leave the request pending: %s", cr.Status)
	}
}

func TestApproveScopeChangeRequiresOwnerRep(t *testing.T) {
	cr := pendingCR(domain.ChangeTypeScopeChange)
	assignments := []domain.ProjectStakeholder{
		{StakeholderID: "appr-1", Role: domain.RoleBaselineApprover},
	}
	err := schedule.ApproveChangeRequest(&cr, "appr-1", "ok", assignments, testNow)
	var roleErr *schedule.RoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("got %v, want role error", err)
	}
	if cr.Status != domain.ChangePending || cr.ReviewedAt != nil {
		t.Fatalf("request mutated on failed approval: %+v", cr)
	}

	assignments = append(assignments, domain.ProjectStakeholder{StakeholderID: "appr-1", Role: domain.RoleOwnerRep})
	if err := schedule.ApproveChangeRequest(&cr, "appr-1", "owner concurs", assignments, testNow); err != nil {
		t.Fatalf("owner rep approval: %v", err)
	}
}

func TestRejectChangeRequest(t *testing.T) {
	cr := pendingCR(domain.ChangeTypeCostChange)
	if err := schedule.RejectChangeRequest(&cr, "appr-1", "budget not available", testNow); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if cr.Status != domain.ChangeRejected || cr.ReviewerComments != "budget not available" {
		t.Fatalf("rejected request: %+v", cr)
	}
	// rejected is terminal
	if err := schedule.ApproveChangeRequest(&cr, "appr-1", "revive", nil, testNow); !errors.Is(err, schedule.ErrNotPending) {
		t.Fatalf("approve rejected: %v", err)
	}
}
