package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core/user"
)

// addUser creates a user.User, or reactivates the existing one with `pwd` & `roles`.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	lookup := uname
	if lookup == "" {
		lookup = email
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, lookup)
	switch errors.Cause(err) {
	case nil:
		active := true
		uu := user.UpdateUser{Name: name, IsActive: &active, Roles: roles, Password: pwd, PasswordConfirm: pwd}
		if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
			return err
		}
		_, err = cli.usrSvc.Update(ctx, usr.ID, uu)
		return err
	case user.ErrNotFound:
		if name == "" {
			name = lookup
		}
		nu := user.NewUser{Name: name, Username: uname, Email: email, Password: pwd, PasswordConfirm: pwd, Roles: roles}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	default:
		return err
	}
}
