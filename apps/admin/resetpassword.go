package main

import (
	"context"

	"github.com/trezcool/aqram/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	_, err := cli.usrSvc.SetPassword(context.Background(), core.CleanString(email, true /* lower */), pwd)
	return err
}
