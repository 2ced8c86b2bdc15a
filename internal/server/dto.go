package server

// Request payloads

type CreateProjectRequest struct {
	ID               *string `json:"id,omitempty"`
	Name             string  `json:"name"`
	Description      *string `json:"description,omitempty"`
	ShipyardName     *string `json:"shipyard_name,omitempty"`
	VesselType       *string `json:"vessel_type,omitempty"`
	PlannedStartDate *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate   *string `json:"planned_end_date,omitempty" format:"date"`
}

type UpdateProjectRequest struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	PlannedStartDate *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate   *string `json:"planned_end_date,omitempty" format:"date"`
}

type CreateStakeholderRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email" format:"email"`
}

type AssignStakeholderRequest struct {
	StakeholderID string `json:"stakeholder_id"`
	Role          string `json:"role" enum:"lead_project_manager,baseline_approver,owner_representative,procurement_lead,qa_classification_officer,team_member"`
}

type CreatePhaseRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Position    *int    `json:"position,omitempty"`
}

type ReorderPhasesRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

type CreateStageRequest struct {
	PhaseID          string  `json:"phase_id"`
	Name             string  `json:"name"`
	Description      *string `json:"description,omitempty"`
	Position         *int    `json:"position,omitempty"`
	PlannedStartDate *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate   *string `json:"planned_end_date,omitempty" format:"date"`
}

type UpdateStageScheduleRequest struct {
	PlannedStartDate *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate   *string `json:"planned_end_date,omitempty" format:"date"`
}

type ProgressRequest struct {
	Status          string  `json:"status" enum:"not_started,in_progress,blocked,completed"`
	ProgressPct     float64 `json:"progress_pct" minimum:"0" maximum:"100"`
	ActualStartDate *string `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate   *string `json:"actual_end_date,omitempty" format:"date"`
	Comments        *string `json:"comments,omitempty"`
}

type CreateDependencyRequest struct {
	PredecessorStageID string `json:"predecessor_stage_id"`
	SuccessorStageID   string `json:"successor_stage_id"`
}

type BaselineRequest struct {
	ChangeRequestID string  `json:"change_request_id"`
	Notes           *string `json:"notes,omitempty"`
}

type SubmitChangeRequestRequest struct {
	ApproverID          string   `json:"approver_id"`
	ChangeType          string   `json:"change_type" enum:"initial_baseline,delay,scope_change,cost_change,other"`
	Reason              string   `json:"reason"`
	ScheduleImpactDays  *int     `json:"schedule_impact_days,omitempty"`
	CostImpact          *float64 `json:"cost_impact,omitempty"`
	StakeholderComments *string  `json:"stakeholder_comments,omitempty"`
}

type ReviewChangeRequestRequest struct {
	Comments string `json:"comments"`
}

func strOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func intOrZero(ptr *int) int {
	if ptr == nil {
		return 0
	}
	return *ptr
}
