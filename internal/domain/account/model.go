package account

import (
	"errors"
	"time"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/validation"
)

// User is a registered account. PasswordHash is a bcrypt hash, never the
// plaintext.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterForm is the registration form as submitted.
type RegisterForm struct {
	Username        string `form:"username" json:"username" validate:"required,min=3,max=20,username"`
	Email           string `form:"email" json:"email" validate:"required,email,max=120"`
	Password        string `form:"password" json:"password" validate:"required,min=6,bcrypt"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" validate:"required,eqfield=Password"`
}

var registerMessages = validation.Messages{
	"username.required":         "This field is required.",
	"username.username":         "Username can only contain letters, numbers, and underscores.",
	"username":                  "Username must be between 3 and 20 characters",
	"email.required":            "This field is required.",
	"email":                     "Invalid email address",
	"password.required":         "This field is required.",
	"password.bcrypt":           "Password must be at most 72 bytes long",
	"password":                  "Password must be at least 6 characters",
	"confirm_password.required": "This field is required.",
	"confirm_password":          "Passwords must match",
}

const (
	msgUsernameTaken = "Username already exists. Please choose a different one."
	msgEmailTaken    = "Email already registered. Please use a different one."
)

// LoginForm is the login form as submitted. Username may also be an email
// address.
type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// DuplicateError reports which unique column rejected an insert.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Field
}

func (e *DuplicateError) Unwrap() error {
	return apperr.ErrDuplicate
}

// duplicateValidation turns a unique-constraint failure into the form error
// the user would have seen had the pre-check caught it.
func duplicateValidation(err error) error {
	var de *DuplicateError
	if !errors.As(err, &de) {
		return nil
	}
	if de.Field == "email" {
		return apperr.Invalid("email", msgEmailTaken)
	}
	return apperr.Invalid("username", msgUsernameTaken)
}
