package domain

// Stage lifecycle.
const (
	StageNotStarted = "not_started"
	StageInProgress = "in_progress"
	StageBlocked    = "blocked"
	StageCompleted  = "completed"
)

// Deviation of a stage's planned end against its baseline end.
const (
	DeviationOnBaseline = "on_baseline"
	DeviationAhead      = "ahead"
	DeviationDelayed    = "delayed"
)

// Change request lifecycle. Approved and rejected are terminal.
const (
	ChangePending  = "pending"
	ChangeApproved = "approved"
	ChangeRejected = "rejected"
)

const (
	ChangeTypeInitialBaseline = "initial_baseline"
	ChangeTypeDelay           = "delay"
	ChangeTypeScopeChange     = "scope_change"
	ChangeTypeCostChange      = "cost_change"
	ChangeTypeOther           = "other"
)

// Stakeholder roles on a project.
const (
	RoleLeadProjectManager = "lead_project_manager"
	RoleBaselineApprover   = "baseline_approver"
	RoleOwnerRep           = "owner_representative"
	RoleProcurementLead    = "procurement_lead"
	RoleQAClassOfficer     = "qa_classification_officer"
	RoleTeamMember         = "team_member"
)

// Notification types broadcast to project stakeholders.
const (
	NotifyBaselineSet     = "baseline_set"
	NotifyBaselineReset   = "baseline_reset"
	NotifyBaselineChange  = "baseline_change"
	NotifyDelay           = "delay_notification"
	NotifyStageBlocked    = "stage_blocked"
	NotifyChangeSubmitted = "change_request_submitted"
	NotifyChangeApproved  = "change_request_approved"
	NotifyChangeRejected  = "change_request_rejected"
)

var stageStatuses = map[string]bool{
	StageNotStarted: true, StageInProgress: true, StageBlocked: true, StageCompleted: true,
}

var changeTypes = map[string]bool{
	ChangeTypeInitialBaseline: true, ChangeTypeDelay: true, ChangeTypeScopeChange: true,
	ChangeTypeCostChange: true, ChangeTypeOther: true,
}

var roles = map[string]bool{
	RoleLeadProjectManager: true, RoleBaselineApprover: true, RoleOwnerRep: true,
	RoleProcurementLead: true, RoleQAClassOfficer: true, RoleTeamMember: true,
}

func ValidStageStatus(s string) bool { return stageStatuses[s] }
func ValidChangeType(s string) bool  { return changeTypes[s] }
func ValidRole(s string) bool        { return roles[s] }

// Roles lists every project role in a stable order.
func Roles() []string {
	return []string{
		RoleLeadProjectManager, RoleBaselineApprover, RoleOwnerRep,
		RoleProcurementLead, RoleQAClassOfficer, RoleTeamMember,
	}
}
