package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

// ErrorPage is the data of the 404, 500 and generic error pages.
type ErrorPage struct {
	Code    int
	Message string
}

// HTTPErrorHandler renders errors as pages: 404 and 500 get their own
// templates, everything else the generic error page. 5xx causes are logged,
// never shown.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		}

		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}

		var renderErr error
		switch {
		case code == http.StatusNotFound:
			renderErr = c.Render(code, "404", Page{Title: "Not Found", Data: notFoundData(he)})
		case code >= http.StatusInternalServerError:
			renderErr = c.Render(code, "500", Page{Title: "Error"})
		default:
			renderErr = c.Render(code, "error", Page{Title: "Error", Data: ErrorPage{Code: code, Message: message}})
		}
		if renderErr != nil {
			logger.Error().Err(renderErr).Msg("render error page")
			_ = c.String(code, http.StatusText(code))
		}
	}
}

// notFoundData keeps a handler-supplied 404 message, dropping echo's default.
func notFoundData(he *echo.HTTPError) interface{} {
	if he == nil || he == echo.ErrNotFound {
		return nil
	}
	if m, ok := he.Message.(string); ok && m != http.StatusText(http.StatusNotFound) {
		return ErrorPage{Code: http.StatusNotFound, Message: m}
	}
	return nil
}

// RedirectToLogin sends an anonymous user to the login page with a notice.
// GET requests come back to where they were after login.
func RedirectToLogin(c echo.Context) error {
	AddFlash(c, FlashInfo, apperr.ErrLoginRequired.Message)
	target := "/login"
	if c.Request().Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
	}
	return c.Redirect(http.StatusFound, target)
}

// SafeNext returns next when it is a local absolute path, otherwise
// fallback. Protocol-relative and absolute URLs are rejected.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

// Fail maps an application error onto the response every handler gives it:
// login redirect, 404, or 500 with the cause kept for the log.
func Fail(c echo.Context, err error) error {
	switch {
	case apperr.IsAuth(err):
		return RedirectToLogin(c)
	case errors.Is(err, apperr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
