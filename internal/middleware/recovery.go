package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/wellnest/internal/response"
)

// Recovery turns a panic anywhere below it into a logged stack trace and a
// 500 envelope. The panic value is never sent to the client.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				req := c.Request()
				slog.Error("panic recovered",
					slog.String("panic", fmt.Sprint(r)),
					slog.String("method", req.Method),
					slog.String("route", c.Path()),
					slog.String("stack", string(debug.Stack())),
				)
				if !c.Response().Committed {
					err = response.Fail(c, http.StatusInternalServerError, "Internal server error")
				}
			}()
			return next(c)
		}
	}
}
