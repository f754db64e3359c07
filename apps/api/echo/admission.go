package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/user"
)

type admissionAPI struct {
	svc    admission.ServiceInterface
	usrSvc user.ServiceInterface
}

func registerAdmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *authenticator, deps *Deps) {
	api := admissionAPI{svc: deps.AdmissionSvc, usrSvc: deps.UserSvc}

	ag := g.Group("/applications")

	// un-authed: the admission form creates the parent account
	ag.POST("", api.submit)

	ag.GET("", api.query, jwt, adminMiddleware())
	ag.GET("/stats", api.stats, jwt, adminMiddleware())
	ag.GET("/:id", api.retrieve, jwt)
	ag.PUT("/:id/review", api.review, jwt, adminMiddleware())
}

// Handlers

func (api *admissionAPI) submit(ctx echo.Context) error {
	var data admission.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}

	app, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ok(ctx, http.StatusCreated, "Application submitted successfully", echo.Map{
		"application_number": app.Number,
		"application":        app,
	})
}

func (api *admissionAPI) query(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	filter := &admission.QueryFilter{Status: admission.Status(strings.ToUpper(strings.TrimSpace(ctx.QueryParam("status"))))}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, err := api.svc.Query(ctx.Request().Context(), caller, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []admission.Application{}
	}
	return ok(ctx, http.StatusOK, "", apps)
}

func (api *admissionAPI) stats(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "getting application stats")
	}
	return ok(ctx, http.StatusOK, "", stats)
}

func (api *admissionAPI) retrieve(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	app, err := api.svc.GetByID(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ok(ctx, http.StatusOK, "", app)
}

func (api *admissionAPI) review(ctx echo.Context) error {
	caller, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	var data admission.ReviewApplication
	if err = ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}

	app, err := api.svc.Review(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing application")
	}
	msg := "Application approved successfully"
	if app.Status == admission.StatusRejected {
		msg = "Application rejected"
	}
	return ok(ctx, http.StatusOK, msg, app)
}
