package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(
	_ context.Context,
	notif notification.Notification,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	defer repo.db.lock(exec)()

	notif.ID = repo.db.newID()
	repo.db.data.notifications[notif.ID] = notif
	return notif, nil
}

func (repo *notificationRepository) MarkNotificationRead(_ context.Context, id string, exec ...core.DBExecutor) (notification.Notification, error) {
	defer repo.db.lock(exec)()

	notif, ok := repo.db.data.notifications[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	notif.IsRead = true
	repo.db.data.notifications[id] = notif
	return notif, nil
}

func (repo *notificationRepository) QueryNotifications(
	_ context.Context,
	userID string,
	limit int,
	_ ...core.DBExecutor,
) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for id, notif := range repo.db.data.notifications {
		if notif.UserID == userID {
			ids = append(ids, id)
		}
	}
	repo.db.sortIDs(ids, func(id string) time.Time { return repo.db.data.notifications[id].CreatedAt }, true)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	notifs := make([]notification.Notification, 0, len(ids))
	for _, id := range ids {
		notifs = append(notifs, repo.db.data.notifications[id])
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, notif := range repo.db.data.notifications {
		if notif.UserID == userID && !notif.IsRead {
			count++
		}
	}
	return count, nil
}
