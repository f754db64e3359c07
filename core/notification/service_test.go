package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
	"github.com/trezcool/aqram/tests"
)

func TestService(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	usr := testutil.CreateUser(t, env.UsrRepo, "Parent", "parent@test.cd", "pwd", user.RoleParent, true)
	other := testutil.CreateUser(t, env.UsrRepo, "Other", "other@test.cd", "pwd", user.RoleParent, true)

	var created []notification.Notification
	for i := 0; i < 12; i++ {
		n, err := env.NotifSvc.Create(ctx, notification.NewNotification{UserID: usr.ID, Title: "Hello", Message: "World"})
		require.NoError(t, err)
		assert.Equal(t, notification.TypeGeneral, n.Type)
		assert.False(t, n.IsRead)
		created = append(created, n)
	}
	_, err := env.NotifSvc.Create(ctx, notification.NewNotification{UserID: other.ID, Title: "Hi", Message: "There", Type: notification.TypePaymentDue})
	require.NoError(t, err)

	t.Run("query", func(t *testing.T) {
		notifs, err := env.NotifSvc.QueryForUser(ctx, usr.ID, notification.DefaultLimit)
		require.NoError(t, err)
		require.Len(t, notifs, notification.DefaultLimit)
		assert.Equal(t, created[len(created)-1].ID, notifs[0].ID, "newest first")

		all, err := env.NotifSvc.QueryForUser(ctx, usr.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, len(created))
	})

	t.Run("mark read", func(t *testing.T) {
		_, err := env.NotifSvc.MarkRead(ctx, user.User{}, created[0].ID)
		assert.Equal(t, core.ErrUnauthenticated, err)

		_, err = env.NotifSvc.MarkRead(ctx, usr, "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, notification.ErrNotFound, err)

		for i := 0; i < 2; i++ {
			n, err := env.NotifSvc.MarkRead(ctx, usr, created[0].ID)
			require.NoError(t, err)
			assert.True(t, n.IsRead)
		}

		unread, err := env.NotifSvc.CountUnread(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, len(created)-1, unread)

		unread, err = env.NotifSvc.CountUnread(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, unread)
	})
}
