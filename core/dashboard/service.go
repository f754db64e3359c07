package dashboard

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
)

type (
	// Parent is everything a parent sees after logging in.
	Parent struct {
		User             user.User                   `json:"user"`
		Profile          *user.ParentProfile         `json:"profile"`
		Applications     []admission.Application     `json:"applications"`
		OutstandingTotal decimal.Decimal             `json:"outstanding_total"`
		Notifications    []notification.Notification `json:"notifications"`
		UnreadCount      int                         `json:"unread_count"`
	}

	Admin struct {
		Stats   admission.Stats         `json:"stats"`
		Pending []admission.Application `json:"pending_applications"`
	}

	ServiceInterface interface {
		ForParent(ctx context.Context, parent user.User) (Parent, error)
		ForAdmin(ctx context.Context, admin user.User) (Admin, error)
	}

	service struct {
		usrSvc   user.ServiceInterface
		appSvc   admission.ServiceInterface
		feeSvc   fee.ServiceInterface
		notifSvc notification.ServiceInterface
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	usrSvc user.ServiceInterface,
	appSvc admission.ServiceInterface,
	feeSvc fee.ServiceInterface,
	notifSvc notification.ServiceInterface,
) *service {
	return &service{
		usrSvc:   usrSvc,
		appSvc:   appSvc,
		feeSvc:   feeSvc,
		notifSvc: notifSvc,
	}
}

// ForParent gathers the parent's applications with each student's fees and payments attached.
func (svc *service) ForParent(ctx context.Context, parent user.User) (Parent, error) {
	if !parent.IsAuthenticated() {
		return Parent{}, core.ErrUnauthenticated
	}
	if !parent.IsParent() {
		return Parent{}, core.ErrForbidden
	}

	dash := Parent{User: parent}
	prof, err := svc.usrSvc.GetParentProfile(ctx, parent.ID)
	switch {
	case err == nil:
		dash.Profile = &prof
	case !core.IsNotFound(err):
		return Parent{}, errors.Wrap(err, "getting parent profile")
	}

	if dash.Applications, err = svc.appSvc.QueryByParent(ctx, parent.ID); err != nil {
		return Parent{}, errors.Wrap(err, "querying applications")
	}
	fees, err := svc.feeSvc.QueryForParent(ctx, parent.ID, false)
	if err != nil {
		return Parent{}, errors.Wrap(err, "querying fees")
	}
	byStudent := make(map[string][]fee.FeeStructure)
	for _, fs := range fees {
		byStudent[fs.StudentID] = append(byStudent[fs.StudentID], fs)
	}
	for i := range dash.Applications {
		app := &dash.Applications[i]
		for j := range app.Students {
			app.Students[j].Fees = byStudent[app.Students[j].ID]
		}
	}
	dash.OutstandingTotal = fee.Total(fees, true)

	if dash.Notifications, err = svc.notifSvc.QueryForUser(ctx, parent.ID, notification.DefaultLimit); err != nil {
		return Parent{}, errors.Wrap(err, "querying notifications")
	}
	if dash.UnreadCount, err = svc.notifSvc.CountUnread(ctx, parent.ID); err != nil {
		return Parent{}, errors.Wrap(err, "counting unread notifications")
	}
	return dash, nil
}

func (svc *service) ForAdmin(ctx context.Context, admin user.User) (Admin, error) {
	stats, err := svc.appSvc.Stats(ctx, admin)
	if err != nil {
		return Admin{}, err
	}
	pending, err := svc.appSvc.Query(ctx, admin, &admission.QueryFilter{Status: admission.StatusPending}, nil)
	if err != nil {
		return Admin{}, err
	}
	return Admin{Stats: stats, Pending: pending}, nil
}
