package schedule_test

import (
	"errors"
	"testing"

	"slipline/internal/domain"
	"slipline/internal/schedule"
)

func approvedCR(changeType string) domain.ChangeRequest {
	return domain.ChangeRequest{
		ID:            "cr-1",
		ProjectID:     "proj-1",
		RequestedByID: "pm-1",
		ApproverID:    "appr-1",
		ChangeType:    changeType,
		Reason:        "contract award",
		Status:        domain.ChangeApproved,
	}
}

func plannedStage(id, start, end string) domain.Stage {
	s := newStage(id)
	s.PlannedStartDate = str(start)
	s.PlannedEndDate = str(end)
	s.PlannedDurationDays = schedule.DurationDays(&start, &end)
	return s
}

func TestSetInitialBaseline(t *testing.T) {
	project := domain.Project{ID: "proj-1", Name: "Hull 204"}
	stages := []domain.Stage{
		plannedStage("a", "2024-01-01", "2024-02-01"),
		plannedStage("b", "2024-02-01", "2024-04-01"),
	}
	res, err := schedule.SetInitialBaseline(&project, stages, approvedCR(domain.ChangeTypeInitialBaseline), "pm-1", "contract baseline", testNow)
	if err != nil {
		t.Fatalf("set initial: %v", err)
	}
	if res.Baseline.VersionNumber != 1 || !res.Baseline.IsActive {
		t.Fatalf("baseline: %+v", res.Baseline)
	}
	if project.ActiveBaselineID == nil || *project.ActiveBaselineID != res.Baseline.ID {
		t.Fatalf("active baseline pointer: %v", project.ActiveBaselineID)
	}
	if len(res.Snapshots) != 2 {
		t.Fatalf("snapshots: %d", len(res.Snapshots))
	}
	for _, s := range res.Stages {
		if s.BaselineStartDate == nil || *s.BaselineStartDate != *s.PlannedStartDate {
			t.Fatalf("baseline dates not written: %+v", s)
		}
		if s.DeviationStatus == nil || *s.DeviationStatus != domain.DeviationOnBaseline {
			t.Fatalf("fresh baseline should be on_baseline: %+v", s)
		}
	}
}

func TestSetInitialBaselineRejections(t *testing.T) {
	stages := []domain.Stage{plannedStage("a", "2024-01-01", "2024-02-01")}

	pending := approvedCR(domain.ChangeTypeInitialBaseline)
	pending.Status = domain.ChangePending
	project := domain.Project{ID: "proj-1"}
	if _, err := schedule.SetInitialBaseline(&project, stages, pending, "pm-1", "", testNow); !errors.Is(err, schedule.ErrChangeRequestNotApproved) {
		t.Fatalf("pending CR: %v", err)
	}

	if _, err := schedule.SetInitialBaseline(&project, stages, approvedCR(domain.ChangeTypeDelay), "pm-1", "", testNow); !errors.Is(err, schedule.ErrWrongChangeType) {
		t.Fatalf("wrong type: %v", err)
	}

	existing := "bl-0"
	project.ActiveBaselineID = &existing
	if _, err := schedule.SetInitialBaseline(&project, stages, approvedCR(domain.ChangeTypeInitialBaseline), "pm-1", "", testNow); !errors.Is(err, schedule.ErrBaselineAlreadyExists) {
		t.Fatalf("existing baseline: %v", err)
	}
}

func TestResetBaselineVersionsAndSingleActive(t *testing.T) {
	project := domain.Project{ID: "proj-1"}
	stages := []domain.Stage{plannedStage("a", "2024-01-01", "2024-02-01")}
	first, err := schedule.SetInitialBaseline(&project, stages, approvedCR(domain.ChangeTypeInitialBaseline), "pm-1", "", testNow)
	if err != nil {
		t.Fatal(err)
	}
	history := []domain.Baseline{first.Baseline}

	// N resets yield versions 2..N+1 with exactly one active baseline
	for i := 0; i < 4; i++ {
		res, err := schedule.ResetBaseline(&project, stages, history, approvedCR(domain.ChangeTypeDelay), nil, "pm-1", "", testNow)
		if err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
		if res.Baseline.VersionNumber != i+2 {
			t.Fatalf("reset %d: version %d", i, res.Baseline.VersionNumber)
		}
		history = append(history, res.Baseline)
		active := 0
		for _, b := range history {
			if b.IsActive {
				active++
				if b.VersionNumber != res.Baseline.VersionNumber {
					t.Fatalf("stale active version %d", b.VersionNumber)
				}
			}
		}
		if active != 1 {
			t.Fatalf("active count %d after reset %d", active, i)
		}
		if *project.ActiveBaselineID != res.Baseline.ID {
			t.Fatalf("project active pointer stale")
		}
	}
}

func TestResetBaselineScopeChangeRequiresOwnerRep(t *testing.T) {
	project := domain.Project{ID: "proj-1"}
	stages := []domain.Stage{plannedStage("a", "2024-01-01", "2024-02-01")}
	first, _ := schedule.SetInitialBaseline(&project, stages, approvedCR(domain.ChangeTypeInitialBaseline), "pm-1", "", testNow)
	history := []domain.Baseline{first.Baseline}

	cr := approvedCR(domain.ChangeTypeScopeChange)
	assignments := []domain.ProjectStakeholder{
		{ProjectID: "proj-1", StakeholderID: "appr-1", Role: domain.RoleBaselineApprover},
	}
	_, err := schedule.ResetBaseline(&project, stages, history, cr, assignments, "pm-1", "", testNow)
	var roleErr *schedule.RoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("approver without owner_representative: %v", err)
	}
	if history[0].IsActive != true {
		t.Fatalf("failed reset must not deactivate the active baseline")
	}

	assignments = append(assignments, domain.ProjectStakeholder{
		ProjectID: "proj-1", StakeholderID: "appr-1", Role: domain.RoleOwnerRep,
	})
	if _, err := schedule.ResetBaseline(&project, stages, history, cr, assignments, "pm-1", "", testNow); err != nil {
		t.Fatalf("owner rep approver: %v", err)
	}
}

func TestResetBaselineRequiresActive(t *testing.T) {
	project := domain.Project{ID: "proj-1"}
	_, err := schedule.ResetBaseline(&project, nil, nil, approvedCR(domain.ChangeTypeDelay), nil, "pm-1", "", testNow)
	if !errors.Is(err, schedule.ErrNoActiveBaseline) {
		t.Fatalf("got %v, want no active baseline", err)
	}
}
