package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
)

type notificationAPI struct {
	svc    notification.ServiceInterface
	usrSvc user.ServiceInterface
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *authenticator, deps *Deps) {
	api := notificationAPI{svc: deps.NotifSvc, usrSvc: deps.UserSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.PUT("/:id/read", api.markRead)
}

// Handlers

func (api *notificationAPI) query(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	limit := notification.DefaultLimit
	if l, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}

	notifs, err := api.svc.QueryForUser(ctx.Request().Context(), caller.ID, limit)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	unread, err := api.svc.CountUnread(ctx.Request().Context(), caller.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ok(ctx, http.StatusOK, "", echo.Map{"notifications": notifs, "unread_count": unread})
}

func (api *notificationAPI) markRead(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	notif, err := api.svc.MarkRead(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ok(ctx, http.StatusOK, "Notification marked as read", notif)
}
