package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
	emailsvc "github.com/trezcool/virtualtutor/services/email"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
	inmemdb "github.com/trezcool/virtualtutor/storage/database/inmem"
)

type testCLI struct {
	*commandLine
	tutorSvc *tutor.Service
}

func setup(t *testing.T) *testCLI {
	t.Helper()
	conf := core.NewConfig()
	db := inmemdb.Open()

	return &testCLI{
		commandLine: &commandLine{
			conf:       conf,
			adminSvc:   admin.NewService(inmemdb.NewAdminRepository(db)),
			studentSvc: student.NewService(inmemdb.NewStudentRepository(db), emailsvc.NewConsoleServiceMock(conf, logsvc.NewNop())),
		},
		tutorSvc: tutor.NewService(inmemdb.NewTutorRepository(db)),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

// mockPassword makes the password prompt return pwd.
func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if pwd == "" {
			return nil, nil
		}
		return []byte(pwd), nil
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate without subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"createadmin", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotDir string
	gooseRunFunc = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		gotDir = dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "avatar_voice", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Equal(t, "migrations", gotDir)
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli := setup(t)
	_, err := cli.adminSvc.Create(context.Background(), "taken@test.cd", "s3cure-Passw0rd")
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no password", args: []string{"createadmin", "-email", "new@test.cd"}, wantErr: errHelp},
		{name: "existing admin", args: []string{"createadmin", "-email", "Taken@test.cd"}, extra: "upd4ted-Passw0rd"},
		{name: "created", args: []string{"createadmin", "-email", "New@Test.cd"}, extra: "s3cure-Passw0rd"},
		{name: "initial admin", args: []string{"createadmin"}},
		{name: "initial admin again", args: []string{"createadmin"}},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	ctx := context.Background()
	adm, err := cli.adminSvc.Authenticate(ctx, "new@test.cd", "s3cure-Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, "new@test.cd", adm.Email)

	_, err = cli.adminSvc.Authenticate(ctx, "taken@test.cd", "upd4ted-Passw0rd")
	assert.NoError(t, err)

	_, err = cli.adminSvc.Authenticate(ctx, cli.conf.Admin.InitEmail, cli.conf.Admin.InitPassword)
	assert.NoError(t, err)
}

func Test_commandLine_createAdmin_noInitialAdmin(t *testing.T) {
	cli := setup(t)
	cli.conf.Admin.InitEmail = ""

	err := cli.run([]string{"admin", "createadmin"})
	require.Error(t, err)
	assert.Equal(t, "no initial admin configured", err.Error())
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	adm, err := cli.adminSvc.Create(ctx, "awe@test.cd", "old-Passw0rd")
	require.NoError(t, err)
	tut, err := cli.tutorSvc.Create(ctx, adm.ID, tutor.NewTutor{Name: "Marie"})
	require.NoError(t, err)
	_, err = cli.studentSvc.Create(ctx, tut, student.NewStudent{Email: "stu@test.cd", Name: "Stu", Password: "old-Passw0rd"})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "admin not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "lol", wantErr: admin.ErrNotFound},
		{name: "student not found", args: []string{"resetpassword", "-student", "-email", "awe@test.cd"}, extra: "lol", wantErr: student.ErrNotFound},
		{name: "reset admin", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: "new-Passw0rd"},
		{name: "reset student", args: []string{"resetpassword", "-student", "-email", "stu@test.cd"}, extra: "new-Passw0rd"},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	_, err = cli.adminSvc.Authenticate(ctx, "awe@test.cd", "new-Passw0rd")
	assert.NoError(t, err)
	_, err = cli.studentSvc.Authenticate(ctx, "stu@test.cd", "new-Passw0rd")
	assert.NoError(t, err)
}
