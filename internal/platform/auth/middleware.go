package auth

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// IdentityContextKey is the echo context key holding the *Identity of an
// authenticated request, for templates.
const IdentityContextKey = "identity"

// SessionMiddleware resolves the session cookie on every request. A valid
// session attaches its Identity to the request context; anything else leaves
// the request anonymous and the protected operations reject it.
func SessionMiddleware(sessions *SessionManager, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsPublicPath(c.Path()) {
				return next(c)
			}

			id, err := sessions.Resolve(c.Request())
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					logger.Debug().Err(err).Str("path", c.Request().URL.Path).Msg("session rejected")
				}
				return next(c)
			}

			c.Set(IdentityContextKey, id)
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}
