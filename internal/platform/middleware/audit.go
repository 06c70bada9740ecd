package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/auth"
)

// AuditEntry records who touched which patient records, when, from where and
// how.
type AuditEntry struct {
	UserID     int64
	Username   string
	PatientID  string
	Action     string // list, read, create, update, delete, search, import
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that logs every access to patient data as a
// structured "patient_access" event. Anonymous requests are logged too, with
// user_id 0, since they are rejected attempts. Optional recorders receive the
// same entry.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			action := auditAction(c.Request().Method, c.Path())
			if action == "" {
				return next(c)
			}

			err := next(c)

			req := c.Request()
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       req.URL.Path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Action:     action,
				PatientID:  c.Param("id"),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}
			if id := auth.IdentityFromContext(req.Context()); id != nil {
				entry.UserID = id.UserID
				entry.Username = id.Username
			}

			for _, r := range recorders {
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Int64("user_id", entry.UserID).
				Str("username", entry.Username).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_access")

			return err
		}
	}
}

// auditAction maps a route to the audit action it performs. Routes that do
// not touch patient data map to "".
func auditAction(method, route string) string {
	switch {
	case route == "/patients":
		return "list"
	case route == "/patients/new":
		if method == http.MethodPost {
			return "create"
		}
		return ""
	case route == "/patients/:id":
		return "read"
	case route == "/patients/:id/edit":
		if method == http.MethodPost {
			return "update"
		}
		return "read"
	case route == "/patients/:id/delete":
		return "delete"
	case route == "/search":
		if method == http.MethodPost {
			return "search"
		}
		return ""
	case route == "/load_dataset":
		return "import"
	case strings.HasPrefix(route, "/patients/"):
		return "read"
	}
	return ""
}
