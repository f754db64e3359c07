package echoapi

import (
	"github.com/labstack/echo/v4"
)

// adminMiddleware lets ADMIN and SUPER_ADMIN tokens through.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHTTPForbidden
		}
	}
}

func parentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsAdmin {
				return next(ctx)
			}
			return errHTTPForbidden
		}
	}
}
