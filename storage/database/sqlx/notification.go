package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/notification"
)

const notificationColumns = `id, user_id, application_id, title, message, type, is_read, created_at`

type notificationRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	ApplicationID null.String `db:"application_id"`
	Title         string      `db:"title"`
	Message       string      `db:"message"`
	Type          string      `db:"type"`
	IsRead        bool        `db:"is_read"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (r notificationRow) unrow() notification.Notification {
	return notification.Notification{
		ID:            r.ID,
		UserID:        r.UserID,
		ApplicationID: r.ApplicationID.String,
		Title:         r.Title,
		Message:       r.Message,
		Type:          notification.Type(r.Type),
		IsRead:        r.IsRead,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{repository{exec: exec}}
}

func (repo notificationRepository) CreateNotification(
	ctx context.Context,
	notif notification.Notification,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	q := `INSERT INTO notifications (user_id, application_id, title, message, type, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &notif.ID, q,
		notif.UserID, null.NewString(notif.ApplicationID, notif.ApplicationID != ""), notif.Title, notif.Message,
		notif.Type, notif.IsRead, notif.CreatedAt.UTC(),
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo notificationRepository) MarkNotificationRead(
	ctx context.Context,
	id string,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	if !isUUID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	q := `UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING ` + notificationColumns
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	return row.unrow(), nil
}

func (repo notificationRepository) QueryNotifications(
	ctx context.Context,
	userID string,
	limit int,
	exec ...core.DBExecutor,
) ([]notification.Notification, error) {
	if !isUUID(userID) {
		return []notification.Notification{}, nil
	}
	args := []interface{}{userID}
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id`
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.unrow())
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(userID) {
		return 0, nil
	}
	var count int
	q := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, q, userID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}
