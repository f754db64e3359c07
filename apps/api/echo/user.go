package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/user"
)

type userAPI struct {
	svc      user.ServiceInterface
	auth     *authenticator
	validate *validator.Validate
	logger   core.Logger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := userAPI{
		svc:      deps.UserSvc,
		auth:     auth,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", api.login)
	ug.POST("/register", api.register)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PUT("/me/password", api.changePassword)
}

// Handlers

func (api *userAPI) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.auth.authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	return api.respondWithToken(ctx, http.StatusOK, "Login successful", usr)
}

func (api *userAPI) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return api.respondWithToken(ctx, http.StatusCreated, "Registration successful", usr)
}

func (api *userAPI) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ok(ctx, http.StatusOK, "If the email address supplied is associated with an active account on this system, "+
		"an email will arrive in your inbox shortly with instructions to reset your password.", nil)
}

func (api *userAPI) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ok(ctx, http.StatusOK, "Password has been reset with the new password.", nil)
}

func (api *userAPI) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.svc)
	if err != nil {
		return err
	}
	return ok(ctx, http.StatusOK, "", echo.Map{"token": token})
}

func (api *userAPI) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	data := echo.Map{"user": usr}
	if usr.IsParent() {
		prof, err := api.svc.GetParentProfile(ctx.Request().Context(), usr.ID)
		switch {
		case err == nil:
			data["profile"] = prof
		case !core.IsNotFound(err):
			return errors.Wrap(err, "getting parent profile")
		}
	}
	return ok(ctx, http.StatusOK, "", data)
}

// changePassword also clears the temporary credential flag, so a new token is issued.
func (api *userAPI) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errInvalidPayload
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.ChangePassword(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return api.respondWithToken(ctx, http.StatusOK, "Password changed successfully", usr)
}

func (api *userAPI) respondWithToken(ctx echo.Context, code int, message string, usr user.User) error {
	token, err := api.auth.generateToken(api.auth.userClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ok(ctx, code, message, LoginResponse{Token: token, User: usr})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
