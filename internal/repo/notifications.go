package repo

import (
	"context"
	"database/sql"

	"slipline/internal/domain"
)

const notificationCols = `id,project_id,stakeholder_id,type,role_at_time,change_request_id,baseline_id,stage_id,COALESCE(comments,''),notified_at`

func scanNotification(sc interface{ Scan(...any) error }) (domain.Notification, error) {
	var n domain.Notification
	err := sc.Scan(&n.ID, &n.ProjectID, &n.StakeholderID, &n.Type, &n.RoleAtTime,
		&n.ChangeRequestID, &n.BaselineID, &n.StageID, &n.Comments, &n.NotifiedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notification_log(project_id,stakeholder_id,type,role_at_time,change_request_id,baseline_id,stage_id,comments,notified_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ProjectID, n.StakeholderID, n.Type, n.RoleAtTime, n.ChangeRequestID, n.BaselineID, n.StageID,
		n.Comments, n.NotifiedAt)
	return err
}

func (r Repo) ListNotificationsForProject(ctx context.Context, projectID string) ([]domain.Notification, error) {
	return listNotifications(ctx, r.DB, `SELECT `+notificationCols+` FROM notification_log WHERE project_id=? ORDER BY id DESC`, projectID)
}

func (r Repo) ListNotificationsForStakeholder(ctx context.Context, stakeholderID string) ([]domain.Notification, error) {
	return listNotifications(ctx, r.DB, `SELECT `+notificationCols+` FROM notification_log WHERE stakeholder_id=? ORDER BY id DESC`, stakeholderID)
}

// NotificationsAfter returns up to limit rows with id greater than the
// cursor, oldest first. The webhook dispatcher drains the log with it.
func (r Repo) NotificationsAfter(ctx context.Context, cursor int64, limit int) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+notificationCols+` FROM notification_log WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func listNotifications(ctx context.Context, db *sql.DB, query string, arg any) ([]domain.Notification, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// GetWebhookCursor returns the last dispatched notification id for a URL,
// zero when the URL has never been dispatched to.
func (r Repo) GetWebhookCursor(ctx context.Context, url string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT last_notification_id FROM webhook_cursors WHERE url=?`, url)
	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (r Repo) SetWebhookCursor(ctx context.Context, url string, id int64) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO webhook_cursors(url,last_notification_id) VALUES (?,?)
		ON CONFLICT(url) DO UPDATE SET last_notification_id=excluded.last_notification_id`, url, id)
	return err
}
