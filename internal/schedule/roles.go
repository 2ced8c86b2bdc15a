package schedule

import "slipline/internal/domain"

// RequireRole checks that the stakeholder holds at least one of the allowed
// roles among the project's assignments.
func RequireRole(assignments []domain.ProjectStakeholder, stakeholderID string, allowed ...string) error {
	held := map[string]bool{}
	for _, ps := range assignments {
		if ps.StakeholderID == stakeholderID {
			held[ps.Role] = true
		}
	}
	for _, r := range allowed {
		if held[r] {
			return nil
		}
	}
	return &RoleError{StakeholderID: stakeholderID, Required: allowed}
}

// StakeholdersByRole returns the stakeholder ids holding a role on the project.
func StakeholdersByRole(assignments []domain.ProjectStakeholder, role string) []string {
	var ids []string
	for _, ps := range assignments {
		if ps.Role == role {
			ids = append(ids, ps.StakeholderID)
		}
	}
	return ids
}
