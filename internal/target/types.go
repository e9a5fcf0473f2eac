package target

import (
	"errors"
	"fmt"
)

// SessionUser mirrors the user object the application embeds in session
// payloads and session-status responses.
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// SessionStatus is the body of the session-status endpoint. An empty object
// (no user) means the caller holds no valid session.
type SessionStatus struct {
	User    *SessionUser `json:"user,omitempty"`
	Expires string       `json:"expires,omitempty"`
}

func (s *SessionStatus) Authenticated() bool {
	return s != nil && s.User != nil && s.User.ID != ""
}

// SessionPayload is the JSON document carried base64-encoded inside the
// session cookie value.
type SessionPayload struct {
	User           SessionUser `json:"user"`
	Expires        string      `json:"expires"`
	AccessToken    string      `json:"accessToken"`
	InstallationID int64       `json:"installationId,omitempty"`
}

// APIError is returned for responses outside the 2xx range whose body was
// readable. The body is kept verbatim for diagnostics.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("target status %d: %s", e.StatusCode, string(e.Body))
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
