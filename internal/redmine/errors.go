package redmine

import (
	"fmt"
	"net/http"
	"strings"
)

// ConfigurationError reports missing or unreadable connection settings.
// It is returned before any network activity.
type ConfigurationError struct {
	Missing []string // setting names that were empty
	Err     error    // underlying load failure, if any
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("redmine URL or API key is not configured: %v", e.Err)
	case len(e.Missing) > 0:
		return "redmine URL or API key is not configured (missing " + strings.Join(e.Missing, ", ") + ")"
	default:
		return "redmine URL or API key is not configured"
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the tracker.
type APIError struct {
	StatusCode int
	Reason     string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Reason)
	if hint := statusHint(e.StatusCode); hint != "" {
		msg += " - " + hint
	}
	return msg
}

func statusHint(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "API key is invalid or expired"
	case http.StatusForbidden:
		return "you do not have permission to edit this issue"
	case http.StatusNotFound:
		return "issue or resource not found"
	case http.StatusUnprocessableEntity:
		return "submitted data is invalid"
	}
	return ""
}

// UnsupportedOptionKindError is returned for an enumeration kind the tracker
// client does not know how to fetch.
type UnsupportedOptionKindError struct {
	Kind string
}

func (e *UnsupportedOptionKindError) Error() string {
	return fmt.Sprintf("unknown option type: %s", e.Kind)
}
