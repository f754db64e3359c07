package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/contact"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/tests"
)

type notificationsResponse struct {
	Notifications []notification.Notification `json:"notifications"`
	UnreadCount   int                         `json:"unread_count"`
}

func TestNotificationAPI(t *testing.T) {
	admin, _, other, _ := seedUsers(t)
	parent := approvedParent(t, admin, "family@example.com")
	token := getToken(t, parent)

	wantUnread, err := env.NotifSvc.CountUnread(context.Background(), parent.ID)
	require.NoError(t, err)
	require.NotZero(t, wantUnread)

	runHTTPTests(t, []httpTest{
		{name: "no token", method: http.MethodGet, path: "/api/notifications", wantCode: http.StatusUnauthorized},
		{name: "mark unknown", method: http.MethodPut, path: "/api/notifications/lol/read", token: token, wantCode: http.StatusNotFound},
	})

	rec, resp := do(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data notificationsResponse
	decodeData(t, resp, &data)
	require.Len(t, data.Notifications, wantUnread)
	assert.Equal(t, wantUnread, data.UnreadCount)
	assert.Equal(t, notification.TypeApplicationApproved, data.Notifications[0].Type)

	t.Run("limit", func(t *testing.T) {
		rec, resp := do(t, http.MethodGet, "/api/notifications?limit=1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var limited notificationsResponse
		decodeData(t, resp, &limited)
		assert.Len(t, limited.Notifications, 1)
		assert.Equal(t, wantUnread, limited.UnreadCount)
	})

	t.Run("mark read", func(t *testing.T) {
		path := "/api/notifications/" + data.Notifications[0].ID + "/read"
		for i := 0; i < 2; i++ { // idempotent
			rec, resp := do(t, http.MethodPut, path, token, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Notification marked as read", resp.Message)
			var notif notification.Notification
			decodeData(t, resp, &notif)
			assert.True(t, notif.IsRead)
		}

		_, resp := do(t, http.MethodGet, "/api/notifications", token, nil)
		var after notificationsResponse
		decodeData(t, resp, &after)
		assert.Equal(t, wantUnread-1, after.UnreadCount)
	})

	t.Run("empty", func(t *testing.T) {
		_, resp := do(t, http.MethodGet, "/api/notifications", getToken(t, other), nil)
		var empty notificationsResponse
		decodeData(t, resp, &empty)
		assert.NotNil(t, empty.Notifications)
		assert.Empty(t, empty.Notifications)
		assert.Zero(t, empty.UnreadCount)
	})
}

func TestDashboardAPI(t *testing.T) {
	admin, _, _, _ := seedUsers(t)
	parent := approvedParent(t, admin, "family@example.com")
	pending := testSubmit(t, "pending@example.com")

	runHTTPTests(t, []httpTest{
		{name: "no token", method: http.MethodGet, path: "/api/dashboard", wantCode: http.StatusUnauthorized},
	})

	t.Run("parent", func(t *testing.T) {
		rec, resp := do(t, http.MethodGet, "/api/dashboard", getToken(t, parent), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Applications     []admission.Application `json:"applications"`
			OutstandingTotal string                  `json:"outstanding_total"`
			UnreadCount      int                     `json:"unread_count"`
		}
		decodeData(t, resp, &data)
		require.Len(t, data.Applications, 1)
		require.Len(t, data.Applications[0].Students, 1)
		assert.Len(t, data.Applications[0].Students[0].Fees, 4)
		assert.Equal(t, "6000", data.OutstandingTotal)
		assert.NotZero(t, data.UnreadCount)
	})

	t.Run("admin", func(t *testing.T) {
		rec, resp := do(t, http.MethodGet, "/api/dashboard", getToken(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Stats   admission.Stats         `json:"stats"`
			Pending []admission.Application `json:"pending_applications"`
		}
		decodeData(t, resp, &data)
		assert.Equal(t, admission.Stats{Total: 2, Pending: 1, Approved: 1, TotalStudents: 2}, data.Stats)
		require.Len(t, data.Pending, 1)
		assert.Equal(t, pending.ID, data.Pending[0].ID)
	})
}

func TestContactAPI(t *testing.T) {
	seedUsers(t)

	valid := contact.Message{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Phone:   "+1234567890",
		Subject: "School tour",
		Message: "Can we visit the school next week?",
	}
	runHTTPTests(t, []httpTest{
		{name: "empty", method: http.MethodPost, path: "/api/contact", body: contact.Message{}, wantCode: http.StatusBadRequest, wantFields: []string{"name", "email", "phone", "subject", "message"}},
		{name: "sent", method: http.MethodPost, path: "/api/contact", body: valid, wantCode: http.StatusOK, wantMessage: "Thank you for contacting us. We will get back to you soon."},
	})

	msg, ok := env.Mail.Last(env.Conf.ContactEmail.Address)
	require.True(t, ok)
	assert.Equal(t, "Contact Form: School tour", msg.Subject)
	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, valid.Email, msg.ReplyTo.Address)
}

func TestHome(t *testing.T) {
	rec, resp := do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to AQRAM API!", resp.Message)
}

func testSubmit(t *testing.T, email string) admission.Application {
	t.Helper()
	app, err := env.AdmissionSvc.Submit(context.Background(), testutil.NewApplication(email, 1))
	require.NoError(t, err)
	return app
}
