package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core/contact"
	"github.com/trezcool/aqram/core/dashboard"
	"github.com/trezcool/aqram/core/user"
)

type dashboardAPI struct {
	svc    dashboard.ServiceInterface
	usrSvc user.ServiceInterface
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *authenticator, deps *Deps) {
	api := dashboardAPI{svc: deps.DashboardSvc, usrSvc: deps.UserSvc}
	g.GET("/dashboard", api.retrieve, jwt)
}

// retrieve serves the parent or the admin dashboard depending on the caller.
func (api *dashboardAPI) retrieve(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data interface{}
	if caller.IsAdmin() {
		data, err = api.svc.ForAdmin(ctx.Request().Context(), caller)
	} else {
		data, err = api.svc.ForParent(ctx.Request().Context(), caller)
	}
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ok(ctx, http.StatusOK, "", data)
}

type contactAPI struct {
	svc contact.ServiceInterface
}

func registerContactAPI(g *echo.Group, deps *Deps) {
	api := contactAPI{svc: deps.ContactSvc}
	g.POST("/contact", api.send)
}

func (api *contactAPI) send(ctx echo.Context) error {
	var data contact.Message
	if err := ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}
	if err := api.svc.Send(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "sending contact message")
	}
	return ok(ctx, http.StatusOK, "Thank you for contacting us. We will get back to you soon.", nil)
}
