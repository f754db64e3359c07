package dashboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/user"
	"github.com/trezcool/aqram/tests"
)

func TestService_ForParent(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	admin := testutil.CreateUser(t, env.UsrRepo, "Admin", "admin@aqram.com", "admin123", user.RoleAdmin, true)
	app := testutil.ApproveApplication(t, env.AdmissionSvc, admin, "parent@example.com", 2)
	testutil.SubmitApplication(t, env.AdmissionSvc, "parent@example.com", 1)
	parent, err := env.UserSvc.GetByID(ctx, app.ParentID)
	require.NoError(t, err)

	fees, err := env.FeeSvc.QueryForParent(ctx, parent.ID, false)
	require.NoError(t, err)
	_, err = env.FeeSvc.Pay(ctx, parent, fee.NewPayment{FeeStructureID: fees[0].ID, PaymentMethod: "card"})
	require.NoError(t, err)

	dash, err := env.DashboardSvc.ForParent(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, dash.User.ID)
	require.NotNil(t, dash.Profile)
	require.Len(t, dash.Applications, 2)

	var feeCount int
	for _, a := range dash.Applications {
		for _, st := range a.Students {
			feeCount += len(st.Fees)
			if a.Status == admission.StatusApproved {
				assert.Len(t, st.Fees, len(fee.DefaultBundle))
			} else {
				assert.Empty(t, st.Fees)
			}
		}
	}
	assert.Equal(t, len(fees), feeCount)
	assert.True(t, fee.Total(fees, false).Sub(fees[0].Amount).Equal(dash.OutstandingTotal))

	// submitted x2, approved, payment received
	assert.Len(t, dash.Notifications, 4)
	assert.Equal(t, 4, dash.UnreadCount)

	_, err = env.DashboardSvc.ForParent(ctx, admin)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = env.DashboardSvc.ForParent(ctx, user.User{})
	assert.Equal(t, core.ErrUnauthenticated, err)
}

func TestService_ForAdmin(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	admin := testutil.CreateUser(t, env.UsrRepo, "Admin", "admin@aqram.com", "admin123", user.RoleAdmin, true)
	testutil.ApproveApplication(t, env.AdmissionSvc, admin, "one@example.com", 1)
	pending := testutil.SubmitApplication(t, env.AdmissionSvc, "two@example.com", 2)

	dash, err := env.DashboardSvc.ForAdmin(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, admission.Stats{Total: 2, Pending: 1, Approved: 1, TotalStudents: 3}, dash.Stats)
	require.Len(t, dash.Pending, 1)
	assert.Equal(t, pending.ID, dash.Pending[0].ID)

	parent, err := env.UserSvc.GetByEmail(ctx, "two@example.com")
	require.NoError(t, err)
	_, err = env.DashboardSvc.ForAdmin(ctx, parent)
	assert.Equal(t, core.ErrForbidden, err)
}
