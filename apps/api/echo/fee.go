package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/user"
)

type feeAPI struct {
	svc    fee.ServiceInterface
	usrSvc user.ServiceInterface
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *authenticator, deps *Deps) {
	api := feeAPI{svc: deps.FeeSvc, usrSvc: deps.UserSvc}

	g.GET("/fees", api.queryFees, jwt, parentMiddleware())
	g.POST("/payments", api.pay, jwt)
	g.GET("/payments", api.history, jwt, parentMiddleware())
}

// Handlers

// queryFees lists the caller's fees. ?outstanding=true keeps unpaid ones only.
func (api *feeAPI) queryFees(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	outstanding, _ := strconv.ParseBool(ctx.QueryParam("outstanding"))

	fees, err := api.svc.QueryForParent(ctx.Request().Context(), caller.ID, outstanding)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []fee.FeeStructure{}
	}
	return ok(ctx, http.StatusOK, "", echo.Map{
		"fees":              fees,
		"outstanding_total": fee.Total(fees, true),
	})
}

func (api *feeAPI) pay(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	var data fee.NewPayment
	if err = ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}

	payment, err := api.svc.Pay(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "processing payment")
	}
	return ok(ctx, http.StatusCreated, "Payment processed successfully", payment)
}

func (api *feeAPI) history(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	payments, err := api.svc.History(ctx.Request().Context(), caller.ID)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []fee.Payment{}
	}
	return ok(ctx, http.StatusOK, "", payments)
}
