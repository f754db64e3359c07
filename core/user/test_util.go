package user

import (
	"context"

	"github.com/trezcool/aqram/core"
)

// serviceMock sends emails synchronously so that tests can inspect them.
type serviceMock struct {
	service
}

func NewServiceMock(db core.Transactor, repo Repository, mailSvc core.EmailService, conf *core.Config) ServiceInterface {
	return &serviceMock{
		service: service{
			db:      db,
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
			tokens:  newResetTokens(conf),
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
