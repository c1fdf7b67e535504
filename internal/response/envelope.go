// Package response defines the JSON envelope shared by every API response:
// {success, data?, message?, error?}.
package response

import (
	"github.com/labstack/echo/v4"
)

// Envelope is the wire shape of every API response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK writes a successful envelope carrying data and an optional message.
func OK(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// Fail writes a failed envelope with a client-safe error message.
func Fail(c echo.Context, status int, errMsg string) error {
	return c.JSON(status, Envelope{
		Success: false,
		Error:   errMsg,
	})
}
