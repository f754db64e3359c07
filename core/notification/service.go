package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/user"
)

const DefaultLimit = 10

var ErrNotFound = core.NewNotFoundError("notification")

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification, exec ...core.DBExecutor) (Notification, error)
		// MarkNotificationRead sets is_read; it returns ErrNotFound when id is unknown.
		MarkNotificationRead(ctx context.Context, id string, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns the user's notifications, newest first. limit <= 0 means no limit.
		QueryNotifications(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]Notification, error)
		CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nn NewNotification, exec ...core.DBExecutor) (Notification, error)
		MarkRead(ctx context.Context, caller user.User, id string) (Notification, error)
		QueryForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nn NewNotification, exec ...core.DBExecutor) (Notification, error) {
	typ := nn.Type
	if typ == "" {
		typ = TypeGeneral
	}
	notif, err := svc.repo.CreateNotification(ctx, Notification{
		UserID:        nn.UserID,
		ApplicationID: nn.ApplicationID,
		Title:         nn.Title,
		Message:       nn.Message,
		Type:          typ,
		CreatedAt:     time.Now().UTC(),
	}, exec...)
	return notif, errors.Wrap(err, "creating notification")
}

// MarkRead flips the notification to read. Calling it again is a no-op.
// Any authenticated caller may mark any notification; ownership is not checked.
func (svc *service) MarkRead(ctx context.Context, caller user.User, id string) (Notification, error) {
	if !caller.IsAuthenticated() {
		return Notification{}, core.ErrUnauthenticated
	}
	return svc.repo.MarkNotificationRead(ctx, id)
}

func (svc *service) QueryForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, limit)
}

func (svc *service) CountUnread(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}
