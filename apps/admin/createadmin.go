package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/admin"
)

// createAdmin creates the admin, or resets the password of an existing one.
func (cli *commandLine) createAdmin(email, pwd string) error {
	ctx := context.Background()
	adm, err := cli.adminSvc.Create(ctx, email, pwd)
	if errors.Cause(err) == admin.ErrEmailExists {
		if err = cli.adminSvc.ResetPassword(ctx, email, pwd); err != nil {
			return err
		}
		fmt.Printf("admin %q already exists, password updated\n", email)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("admin %q created (id %d)\n", adm.Email, adm.ID)
	return nil
}

// createInitialAdmin registers the configured initial admin if missing.
func (cli *commandLine) createInitialAdmin() error {
	email, pwd := cli.conf.Admin.InitEmail, cli.conf.Admin.InitPassword
	if email == "" || pwd == "" {
		return errors.New("no initial admin configured")
	}
	adm, created, err := cli.adminSvc.EnsureExists(context.Background(), email, pwd)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("initial admin %q created (id %d)\n", adm.Email, adm.ID)
	} else {
		fmt.Printf("initial admin %q already exists\n", adm.Email)
	}
	return nil
}
