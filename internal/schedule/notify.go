package schedule

import (
	"time"

	"slipline/internal/domain"
)

// BroadcastRef attaches the subject entities of a notification.
type BroadcastRef struct {
	ChangeRequestID *string
	BaselineID      *string
	StageID         *string
}

// Broadcast fans a notification out to every stakeholder assignment on the
// project, recording each recipient's role at the time of notification. A
// stakeholder with two roles receives two entries.
func Broadcast(projectID string, assignments []domain.ProjectStakeholder, notificationType, comments string, ref BroadcastRef, now time.Time) []domain.Notification {
	ts := now.UTC().Format(time.RFC3339)
	out := make([]domain.Notification, 0, len(assignments))
	for _, ps := range assignments {
		out = append(out, domain.Notification{
			ProjectID:       projectID,
			StakeholderID:   ps.StakeholderID,
			Type:            notificationType,
			RoleAtTime:      ps.Role,
			ChangeRequestID: ref.ChangeRequestID,
			BaselineID:      ref.BaselineID,
			StageID:         ref.StageID,
			Comments:        comments,
			NotifiedAt:      ts,
		})
	}
	return out
}
