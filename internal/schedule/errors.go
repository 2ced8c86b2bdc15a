package schedule

import (
	"errors"
	"fmt"
)

// Validation failures surfaced by the core. The engine maps these to API
// error codes; callers branch with errors.Is.
var (
	ErrInvalidEdge         = errors.New("a stage cannot depend on itself")
	ErrDuplicateEdge       = errors.New("dependency already exists")
	ErrCycleDetected       = errors.New("dependency would create a circular chain")
	ErrInvalidProgress     = errors.New("progress_pct must be between 0 and 100")
	ErrInvalidDateOrdering = errors.New("end date must not be before start date")
	ErrIncompleteActuals   = errors.New("completed stage requires actual start and end dates")
	ErrEndWithoutStart     = errors.New("actual_end_date requires actual_start_date")

	ErrChangeRequestNotApproved = errors.New("change request is not approved")
	ErrWrongChangeType          = errors.New("initial baseline requires an initial_baseline change request")
	ErrBaselineAlreadyExists    = errors.New("project already has a baseline")
	ErrNoActiveBaseline         = errors.New("project has no active baseline")

	ErrEmptyReason           = errors.New("change request reason must not be empty")
	ErrNotPending            = errors.New("change request is not pending")
	ErrWrongApprover         = errors.New("reviewer is not the designated approver")
	ErrMissingReviewComments = errors.New("reviewer comments are mandatory")

	ErrPhaseHasActuals  = errors.New("phase has stages with recorded actuals")
	ErrOrderingMismatch = errors.New("ordered ids must cover exactly the existing phases")
	ErrDuplicateRole    = errors.New("stakeholder already holds this role on the project")
	ErrUnknownEnum      = errors.New("unknown enum value")
)

// RoleError reports a stakeholder missing every role a change required.
type RoleError struct {
	StakeholderID string
	Required      []string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("stakeholder %s holds none of the required roles %v", e.StakeholderID, e.Required)
}
