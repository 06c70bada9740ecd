package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "session"

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrSessionRevoked = errors.New("session revoked")
)

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"name"`
}

type SessionConfig struct {
	SigningKey []byte
	Lifetime   time.Duration
	Secure     bool
}

// SessionManager issues, resolves and ends cookie sessions backed by signed
// HS256 tokens.
type SessionManager struct {
	cfg         SessionConfig
	revocations RevocationStore
	now         func() time.Time
}

func NewSessionManager(cfg SessionConfig, revocations RevocationStore) *SessionManager {
	return &SessionManager{cfg: cfg, revocations: revocations, now: time.Now}
}

// Issue signs a new session token for the user and sets it as the session
// cookie. Any previous session cookie is replaced.
func (m *SessionManager) Issue(c echo.Context, userID int64, username string) (*Identity, error) {
	now := m.now()
	exp := now.Add(m.cfg.Lifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: username,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	c.SetCookie(m.cookie(token, exp))
	return &Identity{UserID: userID, Username: username, TokenID: claims.ID, ExpiresAt: exp}, nil
}

// Resolve validates the session cookie of r and returns its identity.
func (m *SessionManager) Resolve(r *http.Request) (*Identity, error) {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil || ck.Value == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(ck.Value, claims, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.SigningKey, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" {
		return nil, fmt.Errorf("invalid session subject %q", claims.Subject)
	}

	revoked, err := m.revocations.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return &Identity{
		UserID:    userID,
		Username:  claims.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// End revokes the session of the current request, if it has a valid one,
// and always expires the cookie.
func (m *SessionManager) End(c echo.Context) error {
	var err error
	if id, resolveErr := m.Resolve(c.Request()); resolveErr == nil {
		err = m.revocations.Revoke(c.Request().Context(), id.TokenID, id.ExpiresAt)
	}
	ck := m.cookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	c.SetCookie(ck)
	return err
}

func (m *SessionManager) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
