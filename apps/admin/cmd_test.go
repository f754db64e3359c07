package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/user"
	"github.com/trezcool/aqram/storage/database"
	"github.com/trezcool/aqram/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv()

	// start CLI
	return &commandLine{
		usrSvc: env.UserSvc,
		appSvc: env.AdmissionSvc,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	var gotArgs []string
	gooseRunFunc = func(_ *sqlx.DB, command string, args ...string) error {
		if command == "lol" {
			return fmt.Errorf("%q: no such command", command)
		}
		gotCommand, gotArgs = command, args
		return nil
	}
	defer func() { gooseRunFunc = database.Migrate }()

	tests := []struct {
		cliTest
		wantCommand string
		wantArgs    []string
	}{
		{cliTest: cliTest{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "goose error", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"}},
		{cliTest: cliTest{name: "up", args: []string{"migrate", "up"}}, wantCommand: "up"},
		{cliTest: cliTest{name: "up-to", args: []string{"migrate", "up-to", "3"}}, wantCommand: "up-to", wantArgs: []string{"3"}},
		{cliTest: cliTest{name: "down", args: []string{"migrate", "down"}}, wantCommand: "down"},
		{cliTest: cliTest{name: "status", args: []string{"migrate", "status"}}, wantCommand: "status"},
		{cliTest: cliTest{name: "create", args: []string{"migrate", "create", "reminders", "sql"}}, wantCommand: "create", wantArgs: []string{"reminders", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			gotCommand, gotArgs = "", nil
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				assert.EqualError(t, err, tt.wantErrStr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantCommand, gotCommand)
				assert.Equal(t, len(tt.wantArgs), len(gotArgs))
				for i := range tt.wantArgs {
					assert.Equal(t, tt.wantArgs[i], gotArgs[i])
				}
			}
		})
	}
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli, env := setup(t)

	parent := testutil.CreateUser(t, env.UsrRepo, "Parent", "parent@test.cd", "mdr", user.RoleParent, true)

	type extra struct {
		pwd      string
		wantRole user.Role
	}
	tests := []cliTest{
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"createadmin", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"createadmin", "-email", "lol@test.cd", "-name", "Lol"}, wantErr: errHelp},
		{
			name:  "new admin",
			args:  []string{"createadmin", "-email", "Admin@Test.cd", "-name", "Admin"},
			extra: extra{pwd: "admin123", wantRole: user.RoleAdmin},
		},
		{
			name:  "new super admin",
			args:  []string{"createadmin", "-email", "boss@test.cd", "-name", "Boss", "-super"},
			extra: extra{pwd: "boss123", wantRole: user.RoleSuperAdmin},
		},
		{
			name:  "promote existing",
			args:  []string{"createadmin", "-email", parent.Email, "-name", "Promoted"},
			extra: extra{pwd: "promoted1", wantRole: user.RoleAdmin},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)

			ex := tt.extra.(extra)
			usr, err := env.UserSvc.GetByEmail(context.Background(), args[3])
			require.NoError(t, err)
			assert.Equal(t, ex.wantRole, usr.Role)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(ex.pwd))
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.UsrRepo, "User", "awe@test.cd", "mdr", user.RoleParent, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "lmao"}},
		{name: "reset with mixed case email", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: extra{pwd: "lmfao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := env.UserSvc.GetByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				assert.NoError(t, refreshedUsr.CheckPassword(tt.extra.(extra).pwd))
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	// twice: the second run must not duplicate anything
	require.NoError(t, cli.run([]string{"admin", "seed"}))
	require.NoError(t, cli.run([]string{"admin", "seed"}))

	admin, err := env.UserSvc.GetByEmail(ctx, seedAdminEmail)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.NoError(t, admin.CheckPassword("admin123"))

	parent, err := env.UserSvc.GetByEmail(ctx, seedParentEmail)
	require.NoError(t, err)
	assert.NoError(t, parent.CheckPassword("parent123"))
	assert.False(t, parent.MustChangePassword)

	pending, err := env.UserSvc.GetByEmail(ctx, seedPendingEmail)
	require.NoError(t, err)
	assert.NoError(t, pending.CheckPassword("temp123"))

	stats, err := env.AdmissionSvc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, admission.Stats{Total: 2, Pending: 1, Approved: 1, TotalStudents: 3}, stats)

	fees, err := env.FeeSvc.QueryForParent(ctx, parent.ID, false)
	require.NoError(t, err)
	assert.Len(t, fees, 2*len(fee.DefaultBundle))

	apps, err := env.AdmissionSvc.QueryByParent(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	for _, st := range apps[0].Students {
		if assert.NotNil(t, st.Enrollment) {
			assert.Equal(t, st.ClassSeekingAdmission, st.Enrollment.Grade)
		}
	}
}
