package identity

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

const contextKey = "vesta.identity"

// Middleware resolves the Authorization bearer token into an identity
// Context and stores it on the echo context for handlers to pick up.
func Middleware(resolver *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return next(c)
			}

			ident, err := resolver.Resolve(raw)
			if err != nil {
				return next(c)
			}

			c.Set(contextKey, ident)
			return next(c)
		}
	}
}

// FromEcho returns the resolved identity for a request, or a Forbidden error
// when the caller presented no valid session.
func FromEcho(c echo.Context) (Context, error) {
	ident, ok := c.Get(contextKey).(Context)
	if !ok {
		return Context{}, errorbank.Forbidden("authentication required")
	}
	return ident, nil
}
