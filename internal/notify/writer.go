package notify

import (
	"context"
	"database/sql"
	"time"

	"slipline/internal/repo"
	"slipline/internal/schedule"
)

// Writer appends notification log rows inside the caller's transaction, so
// a rolled-back change never notifies anyone.
type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

// Broadcast fans one event out to every stakeholder assignment on the
// project, with each recipient's current role recorded on the row.
func (w Writer) Broadcast(ctx context.Context, tx *sql.Tx, projectID, notificationType, comments string, ref schedule.BroadcastRef) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	assignments, err := w.Repo.ListAssignmentsTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	for _, n := range schedule.Broadcast(projectID, assignments, notificationType, comments, ref, now()) {
		if err := w.Repo.InsertNotification(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}
