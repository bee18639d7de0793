package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core/user"
	"github.com/edufarm/edufarm/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &commandLine{
		db:       db,
		usrSvc:   env.UserSvc,
		validate: env.Validate,
		out:      io.Discard,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantField  string // failed validation field
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantField != "":
		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs), "want validation errors, got %v", err)
		assert.Equal(t, tt.wantField, verrs[0].Field())
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "badges", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("in-memory engine", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoDB, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: "Sup3r$ecret!"}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "12345678"}, wantField: "password"},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "Sup3r$ecret!"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@test.cd"}, extra: extra{pwd: "N3w-Passw0rd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			var pwd string
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(t, pwd)

			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshed, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "failed to update new password")
				assert.NoError(t, refreshed.CheckPassword(pwd))
				assert.Equal(t, usr.Email, refreshed.Email)
				usr = refreshed
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	mockPassword(t, "Sup3r$ecret!")

	tests := []cliTest{
		{name: "no identity", args: []string{"adduser"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "--username", "boss", "--role", "king"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "--username", "boss", "--email", "boss@test.cd"}},
		{name: "create teacher", args: []string{"adduser", "--name", "Mr T", "--email", "mrt@test.cd", "--role", "teacher"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	boss, err := env.UserSvc.GetByUsernameOrEmail(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, "boss", boss.Name)
	assert.True(t, boss.IsAdmin())

	mrt, err := env.UserSvc.GetByUsernameOrEmail(ctx, "mrt@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "Mr T", mrt.Name)
	assert.True(t, mrt.IsTeacher())

	t.Run("reactivates existing users", func(t *testing.T) {
		active := false
		_, err := env.UserSvc.Update(ctx, mrt.ID, user.UpdateUser{Name: mrt.Name, Email: mrt.Email, IsActive: &active})
		require.NoError(t, err)

		require.NoError(t, cli.run([]string{"admin", "adduser", "--email", "mrt@test.cd", "--role", "admin"}))
		got, err := env.UserSvc.GetByID(ctx, mrt.ID)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
		assert.Equal(t, user.AdminRoles, got.Roles)
		assert.Equal(t, "Mr T", got.Name)
	})
}
