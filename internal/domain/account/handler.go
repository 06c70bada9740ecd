package account

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/auth"
	"github.com/strokecare/strokecare/internal/platform/web"
)

const homePath = "/dashboard"

type Handler struct {
	svc      *Service
	sessions *auth.SessionManager
	logger   zerolog.Logger
}

func NewHandler(svc *Service, sessions *auth.SessionManager, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RegisterRoutes mounts the landing page and the auth forms. limit guards the
// credential submissions and may be nil.
func (h *Handler) RegisterRoutes(e *echo.Echo, limit echo.MiddlewareFunc) {
	var guarded []echo.MiddlewareFunc
	if limit != nil {
		guarded = append(guarded, limit)
	}

	e.GET("/", h.Index)
	e.GET("/register", h.RegisterForm)
	e.POST("/register", h.Register, guarded...)
	e.GET("/login", h.LoginForm)
	e.POST("/login", h.Login, guarded...)
	e.GET("/logout", h.Logout)
}

type registerPage struct {
	Username string
	Email    string
	Errors   map[string]string
}

type loginPage struct {
	Identifier string
	Next       string
	Error      string
}

func loggedIn(c echo.Context) bool {
	return auth.IdentityFromContext(c.Request().Context()) != nil
}

func (h *Handler) Index(c echo.Context) error {
	if loggedIn(c) {
		return c.Redirect(http.StatusFound, homePath)
	}
	return c.Render(http.StatusOK, "index", web.Page{Title: "Home"})
}

func (h *Handler) RegisterForm(c echo.Context) error {
	if loggedIn(c) {
		return c.Redirect(http.StatusFound, homePath)
	}
	return c.Render(http.StatusOK, "register", web.Page{Title: "Register", Data: registerPage{}})
}

func (h *Handler) Register(c echo.Context) error {
	if loggedIn(c) {
		return c.Redirect(http.StatusFound, homePath)
	}

	var form RegisterForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	_, err := h.svc.Register(c.Request().Context(), form)
	if err == nil {
		web.AddFlash(c, web.FlashSuccess, "Registration successful! Please log in.")
		return c.Redirect(http.StatusFound, "/login")
	}

	page := registerPage{Username: form.Username, Email: form.Email}
	if verr, ok := apperr.AsValidation(err); ok {
		page.Errors = verr.Fields
		return c.Render(http.StatusUnprocessableEntity, "register", web.Page{Title: "Register", Data: page})
	}

	h.logger.Error().Err(err).Msg("registration failed")
	web.AddFlash(c, web.FlashDanger, "An error occurred during registration. Please try again.")
	return c.Render(http.StatusInternalServerError, "register", web.Page{Title: "Register", Data: page})
}

func (h *Handler) LoginForm(c echo.Context) error {
	if loggedIn(c) {
		return c.Redirect(http.StatusFound, homePath)
	}
	page := loginPage{Next: web.SafeNext(c.QueryParam("next"), "")}
	return c.Render(http.StatusOK, "login", web.Page{Title: "Login", Data: page})
}

func (h *Handler) Login(c echo.Context) error {
	if loggedIn(c) {
		return c.Redirect(http.StatusFound, homePath)
	}

	var form LoginForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	next := web.SafeNext(c.QueryParam("next"), "")

	u, err := h.svc.Authenticate(c.Request().Context(), form.Username, form.Password)
	if err != nil {
		if apperr.IsAuth(err) {
			page := loginPage{Identifier: form.Username, Next: next, Error: apperr.ErrInvalidCredentials.Message}
			return c.Render(http.StatusUnauthorized, "login", web.Page{Title: "Login", Data: page})
		}
		return web.Fail(c, err)
	}

	if _, err := h.sessions.Issue(c, u.ID, u.Username); err != nil {
		return web.Fail(c, err)
	}
	return c.Redirect(http.StatusFound, web.SafeNext(next, homePath))
}

// Logout ends the session, if any, and always clears the cookie.
func (h *Handler) Logout(c echo.Context) error {
	if id := auth.IdentityFromContext(c.Request().Context()); id != nil {
		h.logger.Info().Int64("user_id", id.UserID).Str("username", id.Username).Msg("User logged out")
	}
	if err := h.sessions.End(c); err != nil {
		h.logger.Warn().Err(err).Msg("session revocation failed")
	}
	web.AddFlash(c, web.FlashInfo, "You have been logged out successfully.")
	return c.Redirect(http.StatusFound, "/")
}
