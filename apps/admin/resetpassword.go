package main

import (
	"context"
)

func (cli *commandLine) resetAdminPassword(email, pwd string) error {
	return cli.adminSvc.ResetPassword(context.Background(), email, pwd)
}

func (cli *commandLine) resetStudentPassword(email, pwd string) error {
	return cli.studentSvc.ResetPassword(context.Background(), email, pwd)
}
