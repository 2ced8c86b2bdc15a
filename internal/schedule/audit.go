package schedule

import (
	"time"

	"github.com/google/uuid"

	"slipline/internal/domain"
)

// RecordBaselineChange builds the immutable audit row for a baseline that
// was just struck. The sequence number continues the project's trail.
func RecordBaselineChange(projectID string, baseline domain.Baseline, cr domain.ChangeRequest, lastSequence int, now time.Time) domain.AuditTrailEntry {
	approver := cr.ApproverID
	return domain.AuditTrailEntry{
		ID:                  uuid.NewString(),
		ProjectID:           projectID,
		SequenceNumber:      lastSequence + 1,
		BaselineID:          baseline.ID,
		ChangeRequestID:     &cr.ID,
		ChangedByID:         cr.RequestedByID,
		ApprovedByID:        &approver,
		ChangeType:          cr.ChangeType,
		Reason:              cr.Reason,
		ScheduleImpactDays:  cr.ScheduleImpactDays,
		StakeholderComments: cr.StakeholderComments,
		ReviewerComments:    cr.ReviewerComments,
		OccurredAt:          now.UTC().Format(time.RFC3339),
	}
}
