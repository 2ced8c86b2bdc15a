package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"slipline/internal/config"
	"slipline/internal/db"
	"slipline/internal/domain"
	"slipline/internal/engine"
	"slipline/internal/migrate"
	"slipline/internal/repo"
	"slipline/internal/schedule"
)

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	PM      domain.Stakeholder
	Project domain.Project
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("hull-204"))
	eng.Now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	pm, err := eng.CreateStakeholder(ctx, "Astrid Berge", "astrid@yard.example")
	if err != nil {
		t.Fatalf("create stakeholder: %v", err)
	}
	project, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{
		ID:           "hull-204",
		Name:         "Hull 204",
		ShipyardName: "Fjordverft",
		VesselType:   "platform supply vessel",
		ActorID:      pm.ID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, PM: pm, Project: project}
}

func (env testEnv) addStakeholder(t *testing.T, name, role string) domain.Stakeholder {
	t.Helper()
	s, err := env.Engine.CreateStakeholder(env.Ctx, name, name+"@yard.example")
	if err != nil {
		t.Fatalf("create stakeholder: %v", err)
	}
	if _, err := env.Engine.AssignStakeholder(env.Ctx, env.Project.ID, s.ID, role); err != nil {
		t.Fatalf("assign %s: %v", role, err)
	}
	return s
}

func (env testEnv) addPhase(t *testing.T, name string) domain.Phase {
	t.Helper()
	p, err := env.Engine.AddPhase(env.Ctx, engine.PhaseAddOptions{
		ProjectID: env.Project.ID, Name: name, ActorID: env.PM.ID,
	})
	if err != nil {
		t.Fatalf("add phase: %v", err)
	}
	return p
}

func (env testEnv) addStage(t *testing.T, phaseID, name string, start, end string) domain.Stage {
	t.Helper()
	opts := engine.StageAddOptions{
		ProjectID: env.Project.ID, PhaseID: phaseID, Name: name, ActorID: env.PM.ID,
	}
	if start != "" {
		opts.PlannedStartDate = &start
	}
	if end != "" {
		opts.PlannedEndDate = &end
	}
	s, err := env.Engine.AddStage(env.Ctx, opts)
	if err != nil {
		t.Fatalf("add stage %s: %v", name, err)
	}
	return s
}

func (env testEnv) approvedChangeRequest(t *testing.T, changeType string) domain.ChangeRequest {
	t.Helper()
	approver := env.addStakeholder(t, "approver-"+changeType, domain.RoleBaselineApprover)
	if changeType == domain.ChangeTypeScopeChange {
		if _, err := env.Engine.AssignStakeholder(env.Ctx, env.Project.ID, approver.ID, domain.RoleOwnerRep); err != nil {
			t.Fatalf("assign owner rep: %v", err)
		}
	}
	cr, err := env.Engine.SubmitChangeRequest(env.Ctx, engine.ChangeSubmitOptions{
		ProjectID:  env.Project.ID,
		ApproverID: approver.ID,
		ChangeType: changeType,
		Reason:     "schedule revision",
		ActorID:    env.PM.ID,
	})
	if err != nil {
		t.Fatalf("submit change request: %v", err)
	}
	cr, err = env.Engine.ApproveChangeRequest(env.Ctx, cr.ID, approver.ID, "reviewed and accepted")
	if err != nil {
		t.Fatalf("approve change request: %v", err)
	}
	return cr
}

func TestCreateProjectAssignsLeadPM(t *testing.T) {
	env := newTestEnv(t)
	assignments, err := env.Engine.Repo.ListAssignments(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].Role != domain.RoleLeadProjectManager || assignments[0].StakeholderID != env.PM.ID {
		t.Fatalf("creator not lead project manager: %+v", assignments)
	}
}

func TestProgressRollup(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	a := env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-02-01")
	b := env.addStage(t, phase.ID, "Block assembly", "2024-02-01", "2024-04-01")
	env.addStage(t, phase.ID, "Grand assembly", "2024-04-01", "2024-06-01")

	worker := env.addStakeholder(t, "worker", domain.RoleTeamMember)
	start := "2024-01-02"
	if _, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: a.ID, Status: domain.StageInProgress, ProgressPct: 50,
		ActualStartDate: &start, ActorID: worker.ID,
	}); err != nil {
		t.Fatalf("record progress: %v", err)
	}
	end := "2024-03-20"
	if _, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: b.ID, Status: domain.StageCompleted, ProgressPct: 100,
		ActualStartDate: &start, ActualEndDate: &end, ActorID: worker.ID,
	}); err != nil {
		t.Fatalf("record progress: %v", err)
	}

	project, err := env.Engine.Repo.GetProject(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.OverallProgressPct != 50.0 {
		t.Fatalf("project progress: %v", project.OverallProgressPct)
	}
	got, err := env.Engine.Repo.GetPhase(env.Ctx, phase.ID)
	if err != nil {
		t.Fatalf("get phase: %v", err)
	}
	if got.OverallProgressPct != 50.0 {
		t.Fatalf("phase progress: %v", got.OverallProgressPct)
	}
	updates, err := env.Engine.Repo.ListStatusUpdates(env.Ctx, a.ID)
	if err != nil || len(updates) != 1 {
		t.Fatalf("status history: %v %d", err, len(updates))
	}
	if updates[0].NewProgressPct != 50 || *updates[0].PreviousStatus != domain.StageNotStarted {
		t.Fatalf("history row: %+v", updates[0])
	}
}

func TestInvalidProgressRejected(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Outfitting")
	s := env.addStage(t, phase.ID, "Piping", "", "")
	_, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: s.ID, Status: domain.StageInProgress, ProgressPct: 140, ActorID: env.PM.ID,
	})
	if !errors.Is(err, schedule.ErrInvalidProgress) {
		t.Fatalf("got %v, want invalid progress", err)
	}
	_, err = env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: s.ID, Status: domain.StageCompleted, ProgressPct: 100, ActorID: env.PM.ID,
	})
	if !errors.Is(err, schedule.ErrIncompleteActuals) {
		t.Fatalf("got %v, want incomplete actuals", err)
	}
}

func TestBlockedStageNotifies(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	s := env.addStage(t, phase.ID, "Block assembly", "", "")
	env.addStakeholder(t, "qa", domain.RoleQAClassOfficer)

	if _, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: s.ID, Status: domain.StageBlocked, ProgressPct: 20,
		Comments: "crane out of service", ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("record blocked: %v", err)
	}
	logs, err := env.Engine.Repo.ListNotificationsForProject(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	// one per assignment: PM + QA officer
	var blocked []domain.Notification
	for _, n := range logs {
		if n.Type == domain.NotifyStageBlocked {
			blocked = append(blocked, n)
		}
	}
	if len(blocked) != 2 {
		t.Fatalf("blocked notifications: %d", len(blocked))
	}
	for _, n := range blocked {
		if n.StageID == nil || *n.StageID != s.ID || n.Comments != "crane out of service" {
			t.Fatalf("notification: %+v", n)
		}
	}
}

func TestDependencyCycle(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	a := env.addStage(t, phase.ID, "A", "", "")
	b := env.addStage(t, phase.ID, "B", "", "")
	c := env.addStage(t, phase.ID, "C", "", "")

	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, a.ID, b.ID, env.PM.ID); err != nil {
		t.Fatalf("A->B: %v", err)
	}
	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, b.ID, c.ID, env.PM.ID); err != nil {
		t.Fatalf("B->C: %v", err)
	}
	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, c.ID, a.ID, env.PM.ID); !errors.Is(err, schedule.ErrCycleDetected) {
		t.Fatalf("C->A: got %v, want cycle", err)
	}
	// rejected edge left nothing behind
	deps, err := env.Engine.Repo.ListDependencies(env.Ctx, env.Project.ID)
	if err != nil || len(deps) != 2 {
		t.Fatalf("dependencies after rejection: %v %d", err, len(deps))
	}
	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, a.ID, c.ID, env.PM.ID); err != nil {
		t.Fatalf("A->C: %v", err)
	}
}

func TestDependencyRequiresLeadPM(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	a := env.addStage(t, phase.ID, "A", "", "")
	b := env.addStage(t, phase.ID, "B", "", "")
	worker := env.addStakeholder(t, "worker", domain.RoleTeamMember)
	_, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, a.ID, b.ID, worker.ID)
	var roleErr *schedule.RoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("got %v, want role error", err)
	}
}

func TestBaselineLifecycle(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-02-01")
	env.addStage(t, phase.ID, "Block assembly", "2024-02-01", "2024-04-01")

	// initial baseline demands an approved initial_baseline request
	crWrong := env.approvedChangeRequest(t, domain.ChangeTypeDelay)
	_, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: crWrong.ID, ActorID: env.PM.ID,
	})
	if !errors.Is(err, schedule.ErrWrongChangeType) {
		t.Fatalf("wrong type: %v", err)
	}

	cr := env.approvedChangeRequest(t, domain.ChangeTypeInitialBaseline)
	bl, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: cr.ID, Notes: "contract baseline", ActorID: env.PM.ID,
	})
	if err != nil {
		t.Fatalf("set initial: %v", err)
	}
	if bl.VersionNumber != 1 || !bl.IsActive {
		t.Fatalf("baseline: %+v", bl)
	}

	// two resets: versions 2 and 3, one active at a time
	for want := 2; want <= 3; want++ {
		cr := env.approvedChangeRequest(t, domain.ChangeTypeDelay)
		bl, err = env.Engine.ResetBaseline(env.Ctx, engine.BaselineOptions{
			ProjectID: env.Project.ID, ChangeRequestID: cr.ID, ActorID: env.PM.ID,
		})
		if err != nil {
			t.Fatalf("reset %d: %v", want, err)
		}
		if bl.VersionNumber != want {
			t.Fatalf("version %d, want %d", bl.VersionNumber, want)
		}
	}
	history, err := env.Engine.Repo.ListBaselines(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length: %d", len(history))
	}
	active := 0
	for i, b := range history {
		if b.VersionNumber != i+1 {
			t.Fatalf("history order: %+v", history)
		}
		if b.IsActive {
			active++
		}
	}
	if active != 1 || !history[2].IsActive {
		t.Fatalf("active baselines: %+v", history)
	}

	// snapshots are immutable records per baseline
	snaps, err := env.Engine.Repo.ListSnapshots(env.Ctx, history[0].ID)
	if err != nil || len(snaps) != 2 {
		t.Fatalf("snapshots of v1: %v %d", err, len(snaps))
	}

	// audit trail numbered 1..3 in order
	trail, err := env.Engine.Repo.ListAuditTrail(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("trail length: %d", len(trail))
	}
	for i, entry := range trail {
		if entry.SequenceNumber != i+1 {
			t.Fatalf("trail sequence: %+v", trail)
		}
	}
}

func TestScopeChangeResetGate(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-02-01")
	cr := env.approvedChangeRequest(t, domain.ChangeTypeInitialBaseline)
	if _, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: cr.ID, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("set initial: %v", err)
	}

	// scope_change approval itself requires owner_representative
	approver := env.addStakeholder(t, "plain-approver", domain.RoleBaselineApprover)
	scopeCR, err := env.Engine.SubmitChangeRequest(env.Ctx, engine.ChangeSubmitOptions{
		ProjectID:  env.Project.ID,
		ApproverID: approver.ID,
		ChangeType: domain.ChangeTypeScopeChange,
		Reason:     "30m hull extension",
		ActorID:    env.PM.ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = env.Engine.ApproveChangeRequest(env.Ctx, scopeCR.ID, approver.ID, "fine by me")
	var roleErr *schedule.RoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("approve without owner rep: %v", err)
	}
	got, err := env.Engine.Repo.GetChangeRequest(env.Ctx, scopeCR.ID)
	if err != nil || got.Status != domain.ChangePending {
		t.Fatalf("request must stay pending: %v %+v", err, got)
	}

	if _, err := env.Engine.AssignStakeholder(env.Ctx, env.Project.ID, approver.ID, domain.RoleOwnerRep); err != nil {
		t.Fatalf("assign owner rep: %v", err)
	}
	if _, err := env.Engine.ApproveChangeRequest(env.Ctx, scopeCR.ID, approver.ID, "owner concurs"); err != nil {
		t.Fatalf("approve with owner rep: %v", err)
	}
	if _, err := env.Engine.ResetBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: scopeCR.ID, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("scope reset: %v", err)
	}
}

func TestChangeRequestReviewRules(t *testing.T) {
	env := newTestEnv(t)
	approver := env.addStakeholder(t, "approver", domain.RoleBaselineApprover)
	stranger := env.addStakeholder(t, "stranger", domain.RoleTeamMember)

	_, err := env.Engine.SubmitChangeRequest(env.Ctx, engine.ChangeSubmitOptions{
		ProjectID: env.Project.ID, ApproverID: approver.ID,
		ChangeType: domain.ChangeTypeDelay, Reason: "  ", ActorID: env.PM.ID,
	})
	if !errors.Is(err, schedule.ErrEmptyReason) {
		t.Fatalf("blank reason: %v", err)
	}

	cr, err := env.Engine.SubmitChangeRequest(env.Ctx, engine.ChangeSubmitOptions{
		ProjectID: env.Project.ID, ApproverID: approver.ID,
		ChangeType: domain.ChangeTypeDelay, Reason: "steel late", ScheduleImpactDays: 14, ActorID: env.PM.ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.Engine.ApproveChangeRequest(env.Ctx, cr.ID, stranger.ID, "approved"); !errors.Is(err, schedule.ErrWrongApprover) {
		t.Fatalf("wrong approver: %v", err)
	}
	if _, err := env.Engine.ApproveChangeRequest(env.Ctx, cr.ID, approver.ID, ""); !errors.Is(err, schedule.ErrMissingReviewComments) {
		t.Fatalf("missing comments: %v", err)
	}
	cr, err = env.Engine.RejectChangeRequest(env.Ctx, cr.ID, approver.ID, "capacity exists")
	if err != nil || cr.Status != domain.ChangeRejected {
		t.Fatalf("reject: %v %+v", err, cr)
	}
	if _, err := env.Engine.ApproveChangeRequest(env.Ctx, cr.ID, approver.ID, "changed my mind"); !errors.Is(err, schedule.ErrNotPending) {
		t.Fatalf("terminal state: %v", err)
	}

	// submit/review notifications reached stakeholders
	logs, err := env.Engine.Repo.ListNotificationsForStakeholder(env.Ctx, approver.ID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	types := map[string]bool{}
	for _, n := range logs {
		types[n.Type] = true
	}
	if !types[domain.NotifyChangeSubmitted] || !types[domain.NotifyChangeRejected] {
		t.Fatalf("notification types: %v", types)
	}
}

func TestRemovePhaseWithActualsRefused(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	s := env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-02-01")
	start := "2024-01-02"
	if _, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: s.ID, Status: domain.StageInProgress, ProgressPct: 10,
		ActualStartDate: &start, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("record progress: %v", err)
	}
	if err := env.Engine.RemovePhase(env.Ctx, env.Project.ID, phase.ID, env.PM.ID); !errors.Is(err, schedule.ErrPhaseHasActuals) {
		t.Fatalf("got %v, want phase-has-actuals", err)
	}

	empty := env.addPhase(t, "Paint")
	if err := env.Engine.RemovePhase(env.Ctx, env.Project.ID, empty.ID, env.PM.ID); err != nil {
		t.Fatalf("remove empty phase: %v", err)
	}
}

func TestUpdateStageScheduleDeviation(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	s := env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-03-01")
	cr := env.approvedChangeRequest(t, domain.ChangeTypeInitialBaseline)
	if _, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: cr.ID, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("set initial: %v", err)
	}

	start, end := "2024-01-01", "2024-03-10"
	got, err := env.Engine.UpdateStageSchedule(env.Ctx, engine.StageScheduleOptions{
		StageID: s.ID, PlannedStartDate: &start, PlannedEndDate: &end, ActorID: env.PM.ID,
	})
	if err != nil {
		t.Fatalf("update schedule: %v", err)
	}
	if got.DeviationDays == nil || *got.DeviationDays != 9 {
		t.Fatalf("deviation days: %v", got.DeviationDays)
	}
	if got.DeviationStatus == nil || *got.DeviationStatus != domain.DeviationDelayed {
		t.Fatalf("deviation status: %v", got.DeviationStatus)
	}

	report, err := env.Engine.Deviations(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("deviations: %v", err)
	}
	if report.Delayed != 1 || report.OnBaseline != 0 || report.Ahead != 0 {
		t.Fatalf("report: %+v", report)
	}
}

func TestGenerateBaselineReport(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	s := env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-03-01")
	cr := env.approvedChangeRequest(t, domain.ChangeTypeInitialBaseline)
	if _, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: cr.ID, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("set initial: %v", err)
	}
	start, end := "2024-01-01", "2024-03-06"
	if _, err := env.Engine.UpdateStageSchedule(env.Ctx, engine.StageScheduleOptions{
		StageID: s.ID, PlannedStartDate: &start, PlannedEndDate: &end, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("update schedule: %v", err)
	}

	report, err := env.Engine.GenerateBaselineReport(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.ActiveBaseline == nil || report.ActiveBaseline.VersionNumber != 1 {
		t.Fatalf("active baseline: %+v", report.ActiveBaseline)
	}
	if len(report.StageDeviations) != 1 {
		t.Fatalf("stage deviations: %+v", report.StageDeviations)
	}
	row := report.StageDeviations[0]
	if row.DeviationDays == nil || *row.DeviationDays != 5 || *row.DeviationStatus != domain.DeviationDelayed {
		t.Fatalf("deviation row: %+v", row)
	}
	if len(report.AuditTrail) != 1 || report.AuditTrail[0].SequenceNumber != 1 {
		t.Fatalf("audit trail: %+v", report.AuditTrail)
	}
}

func TestGanttView(t *testing.T) {
	env := newTestEnv(t)
	cutting := env.addPhase(t, "Plate Cutting")
	assembly := env.addPhase(t, "Block Assembly")
	nest := env.addStage(t, cutting.ID, "Nest plates", "2024-03-01", "2024-03-05")
	cut := env.addStage(t, cutting.ID, "Cut plates", "2024-03-06", "2024-03-12")
	weld := env.addStage(t, assembly.ID, "Weld panels", "2024-03-13", "2024-03-20")
	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, nest.ID, cut.ID, env.PM.ID); err != nil {
		t.Fatalf("add dependency: %v", err)
	}
	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, cut.ID, weld.ID, env.PM.ID); err != nil {
		t.Fatalf("add dependency: %v", err)
	}

	view, err := env.Engine.Gantt(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("gantt: %v", err)
	}
	if view.ProjectName != "Hull 204" {
		t.Fatalf("project name: %q", view.ProjectName)
	}
	if len(view.Phases) != 2 {
		t.Fatalf("phases: %d", len(view.Phases))
	}
	first := view.Phases[0]
	if first.Name != "Plate Cutting" || len(first.Stages) != 2 {
		t.Fatalf("first phase: %+v", first)
	}
	if first.Stages[0].ID != nest.ID || first.Stages[1].ID != cut.ID {
		t.Fatalf("stage order: %s, %s", first.Stages[0].Name, first.Stages[1].Name)
	}
	// The cut->weld edge spans both phases and must appear on each.
	if len(first.Dependencies) != 2 {
		t.Fatalf("first phase dependencies: %d", len(first.Dependencies))
	}
	second := view.Phases[1]
	if len(second.Stages) != 1 || len(second.Dependencies) != 1 {
		t.Fatalf("second phase: %d stages, %d deps", len(second.Stages), len(second.Dependencies))
	}
	if second.Dependencies[0].PredecessorStageID != cut.ID {
		t.Fatalf("cross-phase edge: %+v", second.Dependencies[0])
	}
	if view.OnBaseline != 0 || view.Ahead != 0 || view.Delayed != 0 {
		t.Fatalf("unbaselined project counted deviations: %+v", view)
	}
}

func TestEmptyOptionalFieldsPersist(t *testing.T) {
	env := newTestEnv(t)
	phase := env.addPhase(t, "Hull erection")
	s := env.addStage(t, phase.ID, "Keel laying", "2024-01-01", "2024-02-01")

	got, err := env.Engine.Repo.GetPhase(env.Ctx, phase.ID)
	if err != nil {
		t.Fatalf("get phase: %v", err)
	}
	if got.Description != "" {
		t.Fatalf("phase description: %q", got.Description)
	}

	if _, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: s.ID, Status: domain.StageBlocked, ProgressPct: 10, ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("record progress without comments: %v", err)
	}

	// a fresh change request carries no reviewer comments until reviewed
	cr := env.approvedChangeRequest(t, domain.ChangeTypeInitialBaseline)
	bl, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: cr.ID, ActorID: env.PM.ID,
	})
	if err != nil {
		t.Fatalf("baseline without notes: %v", err)
	}
	if bl.Notes != "" {
		t.Fatalf("baseline notes: %q", bl.Notes)
	}
	stage, err := env.Engine.Repo.GetStage(env.Ctx, s.ID)
	if err != nil {
		t.Fatalf("get stage: %v", err)
	}
	if stage.Description != "" || stage.Comments != "" {
		t.Fatalf("stage free-text fields: %q, %q", stage.Description, stage.Comments)
	}
}

func TestRemovePhaseWithHistoryAndBaseline(t *testing.T) {
	env := newTestEnv(t)
	outfitting := env.addPhase(t, "Outfitting")
	erection := env.addPhase(t, "Hull erection")
	piping := env.addStage(t, outfitting.ID, "Pipe spooling", "2024-01-01", "2024-02-01")
	keel := env.addStage(t, erection.ID, "Keel laying", "2024-02-01", "2024-03-01")
	if _, err := env.Engine.AddDependency(env.Ctx, env.Project.ID, keel.ID, piping.ID, env.PM.ID); err != nil {
		t.Fatalf("add dependency: %v", err)
	}
	if _, err := env.Engine.RecordProgress(env.Ctx, engine.ProgressOptions{
		StageID: piping.ID, Status: domain.StageBlocked, ProgressPct: 5,
		Comments: "material on order", ActorID: env.PM.ID,
	}); err != nil {
		t.Fatalf("record progress: %v", err)
	}
	cr := env.approvedChangeRequest(t, domain.ChangeTypeInitialBaseline)
	bl, err := env.Engine.SetInitialBaseline(env.Ctx, engine.BaselineOptions{
		ProjectID: env.Project.ID, ChangeRequestID: cr.ID, ActorID: env.PM.ID,
	})
	if err != nil {
		t.Fatalf("set initial: %v", err)
	}

	// no actuals recorded, so removal must succeed despite the dependency
	// edge, the status update and the baseline snapshot
	if err := env.Engine.RemovePhase(env.Ctx, env.Project.ID, outfitting.ID, env.PM.ID); err != nil {
		t.Fatalf("remove phase: %v", err)
	}
	phases, err := env.Engine.Repo.ListPhases(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list phases: %v", err)
	}
	if len(phases) != 1 || phases[0].ID != erection.ID {
		t.Fatalf("phases after removal: %+v", phases)
	}
	if _, err := env.Engine.Repo.GetStage(env.Ctx, piping.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stage survived removal: %v", err)
	}
	deps, err := env.Engine.Repo.ListDependencies(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list dependencies: %v", err)
	}
	if len(deps) != 0 {
		t.Fatalf("dependencies after removal: %+v", deps)
	}
	// snapshots stay behind as the permanent deviation record
	snaps, err := env.Engine.Repo.ListSnapshots(env.Ctx, bl.ID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots after removal: %d", len(snaps))
	}
}
