package echoapi

import "github.com/labstack/echo/v4"

type (
	response struct {
		Success bool        `json:"success"`
		Message string      `json:"message,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}

	errorResponse struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors,omitempty"`
	}
)

func ok(ctx echo.Context, code int, message string, data interface{}) error {
	return ctx.JSON(code, response{Success: true, Message: message, Data: data})
}
