package main

import (
	"context"

	"github.com/trezcool/aqram/core/user"
)

// createAdmin updates or creates a staff account
func (cli *commandLine) createAdmin(name, email, pwd string, role user.Role) error {
	_, err := cli.usrSvc.CreateAdmin(context.Background(), user.NewAdmin{
		Name:     name,
		Email:    email,
		Password: pwd,
		Role:     role,
	})
	return err
}
