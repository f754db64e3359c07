package user_test

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/user"
	"github.com/trezcool/aqram/tests"
)

var resetURLRegex = regexp.MustCompile(`(http\S+/password-reset\?\S+)`)

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	testutil.CreateUser(t, env.UsrRepo, "Taken", "taken@test.cd", "pwd", user.RoleParent, true)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{
			name:      "password mismatch",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.cd", Phone: "+1987654321", Password: "s3cret!!", PasswordConfirm: "other"},
			wantField: "password_confirm",
		},
		{
			name:      "numeric password",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.cd", Phone: "+1987654321", Password: "12345678", PasswordConfirm: "12345678"},
			wantField: "password",
		},
		{
			name:      "password like email",
			nu:        user.NewUser{Name: "Jane", Email: "janedoe@test.cd", Phone: "+1987654321", Password: "janedoe@test", PasswordConfirm: "janedoe@test"},
			wantField: "password",
		},
		{
			name:      "bad phone",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.cd", Phone: "call me maybe", Password: "s3cret!!", PasswordConfirm: "s3cret!!"},
			wantField: "phone",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(env.Validate, env.UserSvc)
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validator.ValidationErrors, got %T", err)
			assert.Contains(t, core.TranslateErrors(vErrs, env.Translator), tt.wantField)
		})
	}

	t.Run("email taken", func(t *testing.T) {
		nu := user.NewUser{Name: "Jane", Email: " TAKEN@test.cd", Phone: "+1987654321", Password: "s3cret!!", PasswordConfirm: "s3cret!!"}
		err := nu.Validate(env.Validate, env.UserSvc)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %T", err)
		assert.Equal(t, user.ErrEmailExists, vErr.Err)
	})

	t.Run("register", func(t *testing.T) {
		nu := user.NewUser{Name: "Jane", Email: "Jane@Test.cd", Phone: "+1987654321", Password: "s3cret!!", PasswordConfirm: "s3cret!!"}
		require.NoError(t, nu.Validate(env.Validate, env.UserSvc))
		usr, err := env.UserSvc.Register(ctx, nu)
		require.NoError(t, err)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "jane@test.cd", usr.Email)
		assert.Equal(t, user.RoleParent, usr.Role)
		assert.True(t, usr.IsActive)
		assert.False(t, usr.MustChangePassword)
		assert.NoError(t, usr.CheckPassword("s3cret!!"))
	})
}

func TestService_CreateAdmin(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	parent := testutil.CreateUser(t, env.UsrRepo, "Parent", "parent@test.cd", "pwd", user.RoleParent, false)

	admin, err := env.UserSvc.CreateAdmin(ctx, user.NewAdmin{Name: "Admin", Email: "ADMIN@test.cd", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.Equal(t, "admin@test.cd", admin.Email)

	promoted, err := env.UserSvc.CreateAdmin(ctx, user.NewAdmin{Name: "Boss", Email: parent.Email, Password: "boss1234", Role: user.RoleSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, promoted.ID)
	assert.Equal(t, user.RoleSuperAdmin, promoted.Role)
	assert.True(t, promoted.IsActive)
	assert.True(t, promoted.IsAdmin())
}

func TestService_ChangePassword(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UsrRepo, "Parent", "parent@test.cd", "temp1234", user.RoleParent, true)

	_, err := env.UserSvc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "wrong", Password: "n3wpass!", PasswordConfirm: "n3wpass!"})
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "current_password", vErr.Fields[0].Field)

	usr, err = env.UserSvc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "temp1234", Password: "n3wpass!", PasswordConfirm: "n3wpass!"})
	require.NoError(t, err)
	assert.False(t, usr.MustChangePassword)

	stored, err := env.UserSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckPassword("n3wpass!"))
}

func TestService_PasswordReset(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UsrRepo, "Parent", "parent@test.cd", "temp1234", user.RoleParent, true)
	inactive := testutil.CreateUser(t, env.UsrRepo, "Gone", "gone@test.cd", "temp1234", user.RoleParent, false)

	assert.Equal(t, user.ErrNotFound, env.UserSvc.RequestPasswordReset(ctx, "nobody@test.cd"))
	assert.Equal(t, user.ErrNotFound, env.UserSvc.RequestPasswordReset(ctx, inactive.Email))

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, usr.Email))
	msg, ok := env.Mail.Last(usr.Email)
	require.True(t, ok)
	assert.Equal(t, "Password Reset", msg.Subject)

	m := resetURLRegex.FindStringSubmatch(msg.TextContent)
	require.Len(t, m, 2, msg.TextContent)
	resetURL, err := url.Parse(m[1])
	require.NoError(t, err)
	uid, token := resetURL.Query().Get("uid"), resetURL.Query().Get("token")

	t.Run("bad token", func(t *testing.T) {
		err := env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "nope", Password: "n3wpass!", PasswordConfirm: "n3wpass!"})
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok, "want *core.ValidationError, got %T", err)
	})

	t.Run("reset", func(t *testing.T) {
		err := env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "n3wpass!", PasswordConfirm: "n3wpass!"})
		require.NoError(t, err)
		stored, err := env.UserSvc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, stored.CheckPassword("n3wpass!"))
	})

	t.Run("token is single use", func(t *testing.T) {
		err := env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "an0ther!", PasswordConfirm: "an0ther!"})
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok, "want *core.ValidationError, got %T", err)
	})
}

func TestService_GetOrCreateParent(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	np := testutil.NewApplication("parent@test.cd", 1).Parent
	created, isNew, err := env.UserSvc.GetOrCreateParent(ctx, np, nil)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, created.MustChangePassword)

	origAddress := np.Address
	np.Address = "42 New Road, Elsewhere"
	np.Signature = "Someone Else"
	again, isNew, err := env.UserSvc.GetOrCreateParent(ctx, np, nil)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)

	// an existing parent's profile is never overwritten by a later submission
	prof, err := env.UserSvc.GetParentProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, origAddress, prof.Address)
	assert.NotEqual(t, "Someone Else", prof.Signature)

	t.Run("staff email", func(t *testing.T) {
		admin := testutil.CreateUser(t, env.UsrRepo, "Admin", "admin@test.cd", "admin123", user.RoleAdmin, true)
		np := testutil.NewApplication(admin.Email, 1).Parent
		_, _, err := env.UserSvc.GetOrCreateParent(ctx, np, nil)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %T", err)
		require.Len(t, vErr.Fields, 1)
		assert.Equal(t, "parent.email", vErr.Fields[0].Field)

		_, err = env.UserSvc.GetParentProfile(ctx, admin.ID)
		assert.Error(t, err)
	})

	usr, pwd, err := env.UserSvc.IssueTemporaryPassword(ctx, again, nil)
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z0-9]{8}$`, pwd)
	assert.NoError(t, usr.CheckPassword(pwd))
	assert.True(t, usr.MustChangePassword)
}
