package domain

// Dates are day-precision ISO strings (2006-01-02); timestamps are RFC3339.

type Stakeholder struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ProjectStakeholder is one (stakeholder, project, role) fact. The same
// stakeholder may hold several roles on one project.
type ProjectStakeholder struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	StakeholderID string `json:"stakeholder_id"`
	Role          string `json:"role" enum:"lead_project_manager,baseline_approver,owner_representative,procurement_lead,qa_classification_officer,team_member"`
	AssignedAt    string `json:"assigned_at" format:"date-time"`
}

type Project struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ShipyardName string `json:"shipyard_name,omitempty"`
	VesselType   string `json:"vessel_type,omitempty"`

	PlannedStartDate *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate   *string `json:"planned_end_date,omitempty" format:"date"`
	ActualStartDate  *string `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate    *string `json:"actual_end_date,omitempty" format:"date"`

	// Summary fields recomputed from stages after every stage mutation.
	OverallProgressPct        float64 `json:"overall_progress_pct"`
	TotalPlannedDurationDays  int     `json:"total_planned_duration_days"`
	TotalActualDurationDays   int     `json:"total_actual_duration_days"`
	TotalBaselineDurationDays int     `json:"total_baseline_duration_days"`

	ActiveBaselineID *string `json:"active_baseline_id,omitempty"`

	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	CreatedByID *string `json:"created_by_id,omitempty"`
}

type Phase struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`

	OverallProgressPct float64 `json:"overall_progress_pct"`
	PlannedStartDate   *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate     *string `json:"planned_end_date,omitempty" format:"date"`
	ActualStartDate    *string `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate      *string `json:"actual_end_date,omitempty" format:"date"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Stage carries three independent schedules: planned (editable), actual
// (written by progress updates) and baseline (written only when a baseline
// is struck).
type Stage struct {
	ID          string `json:"id"`
	PhaseID     string `json:"phase_id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`

	PlannedStartDate    *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate      *string `json:"planned_end_date,omitempty" format:"date"`
	PlannedDurationDays *int    `json:"planned_duration_days,omitempty"`

	ActualStartDate    *string `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate      *string `json:"actual_end_date,omitempty" format:"date"`
	ActualDurationDays *int    `json:"actual_duration_days,omitempty"`

	BaselineStartDate    *string `json:"baseline_start_date,omitempty" format:"date"`
	BaselineEndDate      *string `json:"baseline_end_date,omitempty" format:"date"`
	BaselineDurationDays *int    `json:"baseline_duration_days,omitempty"`

	Status      string  `json:"status" enum:"not_started,in_progress,blocked,completed"`
	ProgressPct float64 `json:"progress_pct"`
	Comments    string  `json:"comments,omitempty"`

	DeviationDays   *int    `json:"deviation_days,omitempty"`
	DeviationStatus *string `json:"deviation_status,omitempty" enum:"on_baseline,ahead,delayed"`

	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	UpdatedByID *string `json:"updated_by_id,omitempty"`
}

// StageDependency is a finish-to-start edge between two stages of one
// project.
type StageDependency struct {
	ID                 string `json:"id"`
	ProjectID          string `json:"project_id"`
	PredecessorStageID string `json:"predecessor_stage_id"`
	SuccessorStageID   string `json:"successor_stage_id"`
	CreatedAt          string `json:"created_at" format:"date-time"`
}

// StageStatusUpdate is the immutable history row written by every accepted
// progress update.
type StageStatusUpdate struct {
	ID          string `json:"id"`
	StageID     string `json:"stage_id"`
	ProjectID   string `json:"project_id"`
	UpdatedByID string `json:"updated_by_id"`

	PreviousStatus      *string  `json:"previous_status,omitempty"`
	NewStatus           string   `json:"new_status"`
	PreviousProgressPct *float64 `json:"previous_progress_pct,omitempty"`
	NewProgressPct      float64  `json:"new_progress_pct"`

	ActualStartDate *string `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate   *string `json:"actual_end_date,omitempty" format:"date"`
	Comments        string  `json:"comments,omitempty"`

	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Baseline is a versioned approved snapshot of the planned schedule. At most
// one baseline per project is active; supersession flips IsActive only.
type Baseline struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	VersionNumber   int     `json:"version_number"`
	SetByID         string  `json:"set_by_id"`
	SetAt           string  `json:"set_at" format:"date-time"`
	IsActive        bool    `json:"is_active"`
	Notes           string  `json:"notes,omitempty"`
	ChangeRequestID *string `json:"change_request_id,omitempty"`
}

// BaselineStageSnapshot is the write-once copy of a stage's planned dates at
// the moment its baseline was struck.
type BaselineStageSnapshot struct {
	ID         string `json:"id"`
	BaselineID string `json:"baseline_id"`
	StageID    string `json:"stage_id"`
	ProjectID  string `json:"project_id"`

	BaselineStartDate    *string `json:"baseline_start_date,omitempty" format:"date"`
	BaselineEndDate      *string `json:"baseline_end_date,omitempty" format:"date"`
	BaselineDurationDays *int    `json:"baseline_duration_days,omitempty"`

	SnapshottedAt string `json:"snapshotted_at" format:"date-time"`
}

type ChangeRequest struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	RequestedByID string `json:"requested_by_id"`
	ApproverID    string `json:"approver_id"`

	ChangeType         string   `json:"change_type" enum:"initial_baseline,delay,scope_change,cost_change,other"`
	Reason             string   `json:"reason"`
	ScheduleImpactDays int      `json:"schedule_impact_days"`
	CostImpact         *float64 `json:"cost_impact,omitempty"`
	Status             string   `json:"status" enum:"pending,approved,rejected"`

	ReviewedAt          *string `json:"reviewed_at,omitempty" format:"date-time"`
	ReviewerComments    string  `json:"reviewer_comments,omitempty"`
	StakeholderComments string  `json:"stakeholder_comments,omitempty"`

	SubmittedAt string `json:"submitted_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// AuditTrailEntry records one baseline-establishing event. Entries are
// append-only with a per-project sequence number.
type AuditTrailEntry struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	SequenceNumber int    `json:"sequence_number"`

	BaselineID      string  `json:"baseline_id"`
	ChangeRequestID *string `json:"change_request_id,omitempty"`

	ChangedByID  string  `json:"changed_by_id"`
	ApprovedByID *string `json:"approved_by_id,omitempty"`

	ChangeType          string `json:"change_type"`
	Reason              string `json:"reason"`
	ScheduleImpactDays  int    `json:"schedule_impact_days"`
	StakeholderComments string `json:"stakeholder_comments,omitempty"`
	ReviewerComments    string `json:"reviewer_comments,omitempty"`

	OccurredAt string `json:"occurred_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Notification is one row of the per-stakeholder notification log. The
// integer id doubles as the webhook dispatch cursor.
type Notification struct {
	ID            int64  `json:"id"`
	ProjectID     string `json:"project_id"`
	StakeholderID string `json:"stakeholder_id"`

	Type       string `json:"type"`
	RoleAtTime string `json:"role_at_time_of_notification"`

	ChangeRequestID *string `json:"change_request_id,omitempty"`
	BaselineID      *string `json:"baseline_id,omitempty"`
	StageID         *string `json:"stage_id,omitempty"`

	Comments   string `json:"comments,omitempty"`
	NotifiedAt string `json:"notified_at" format:"date-time"`
}
