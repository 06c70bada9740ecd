package account

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/auth"
	"github.com/strokecare/strokecare/internal/platform/telemetry"
	"github.com/strokecare/strokecare/internal/platform/validation"
)

type Service struct {
	users    UserRepository
	validate *validation.Validator
	metrics  *telemetry.Provider
	logger   zerolog.Logger
}

// NewService returns the account service. metrics may be nil.
func NewService(users UserRepository, metrics *telemetry.Provider, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		validate: validation.New(),
		metrics:  metrics,
		logger:   logger.With().Str("component", "account").Logger(),
	}
}

// Register validates the form and stores a new user with a bcrypt hash of
// the password. Taken usernames or emails are reported as field errors.
func (s *Service) Register(ctx context.Context, form RegisterForm) (*User, error) {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))

	if err := s.validate.Struct(form, registerMessages); err != nil {
		s.metrics.AuthAttempt("register", "invalid")
		return nil, err
	}

	taken := apperr.NewValidationError()
	if err := s.checkFree(ctx, taken, "username", msgUsernameTaken, s.users.GetByUsername, form.Username); err != nil {
		return nil, s.registerFailed(err)
	}
	if err := s.checkFree(ctx, taken, "email", msgEmailTaken, s.users.GetByEmail, form.Email); err != nil {
		return nil, s.registerFailed(err)
	}
	if err := taken.Err(); err != nil {
		s.metrics.AuthAttempt("register", "invalid")
		return nil, err
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		return nil, s.registerFailed(err)
	}

	u := &User{Username: form.Username, Email: form.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		// Lost a race with a concurrent registration.
		if verr := duplicateValidation(err); verr != nil {
			s.metrics.AuthAttempt("register", "invalid")
			return nil, verr
		}
		return nil, s.registerFailed(err)
	}

	s.metrics.AuthAttempt("register", "success")
	s.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("New user registered")
	return u, nil
}

func (s *Service) checkFree(ctx context.Context, taken *apperr.ValidationError, field, msg string,
	lookup func(context.Context, string) (*User, error), value string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		taken.Add(field, msg)
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) registerFailed(err error) error {
	s.metrics.AuthAttempt("register", "error")
	return apperr.Store("register user", err)
}

// Authenticate checks a username (or email, when identifier contains "@")
// and password. Every failure other than a store outage is
// apperr.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.metrics.AuthAttempt("login", "invalid")
		return nil, apperr.ErrInvalidCredentials
	}

	var u *User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.metrics.AuthAttempt("login", "error")
		return nil, apperr.Store("authenticate", err)
	}

	if u == nil {
		auth.BurnPasswordCheck(password)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		s.metrics.AuthAttempt("login", "invalid")
		s.logger.Warn().Str("username", identifier).Msg("Failed login attempt")
		return nil, apperr.ErrInvalidCredentials
	}

	s.metrics.AuthAttempt("login", "success")
	s.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("User logged in")
	return u, nil
}

// Ping probes the account store.
func (s *Service) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}
