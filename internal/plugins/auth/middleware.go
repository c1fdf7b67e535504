package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/wellnest/internal/apperror"
)

// unauthenticatedMessage is the one message for every gate rejection.
// Missing, malformed, expired and forged tokens are indistinguishable.
const unauthenticatedMessage = "authentication required"

// Params are the named route parameters of a request, e.g. {"id": "..."}.
type Params map[string]string

// IdentityHandler is a handler that runs only for authenticated requests.
type IdentityHandler func(c echo.Context, id Identity) error

// ParamsHandler is an IdentityHandler that also receives route parameters.
type ParamsHandler func(c echo.Context, id Identity, params Params) error

// authenticate is the single choke point every protected route goes
// through. Handlers receive the identity as an argument, never from the
// context.
func authenticate(c echo.Context, tokens TokenVerifier) (*Identity, bool) {
	id := tokens.Verify(ExtractFromRequest(c.Request()))
	if id == nil {
		return nil, false
	}
	return id, true
}

// WithAuth wraps a handler so it only runs for authenticated requests and
// receives the resolved identity as an argument.
func WithAuth(tokens TokenVerifier, h IdentityHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := authenticate(c, tokens)
		if !ok {
			return apperror.NewUnauthorized(unauthenticatedMessage)
		}
		return h(c, *id)
	}
}

// WithAuthParams is WithAuth for routes with path parameters.
func WithAuthParams(tokens TokenVerifier, h ParamsHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := authenticate(c, tokens)
		if !ok {
			return apperror.NewUnauthorized(unauthenticatedMessage)
		}

		names := c.ParamNames()
		values := c.ParamValues()
		params := make(Params, len(names))
		for i, name := range names {
			if i < len(values) {
				params[name] = values[i]
			}
		}
		return h(c, *id, params)
	}
}
