package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/keyxmakerx/wellnest/internal/response"
)

// RateLimit allows roughly maxRequests per window for each client IP, with
// the full allowance available as a burst. Excess requests get a 429
// envelope and a Retry-After hint. Used on login and register.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	if maxRequests < 1 {
		maxRequests = 1
	}
	refill := window / time.Duration(maxRequests)
	retryAfter := strconv.Itoa(int(math.Ceil(refill.Seconds())))

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(refill),
		Burst:     maxRequests,
		ExpiresIn: 2 * window,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return response.Fail(c, http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			return response.Fail(c, http.StatusTooManyRequests, "Too many requests, please try again later")
		},
	})
}
