// Package storagestate reads and writes the storage-state snapshot (cookies
// plus per-origin browser storage) that test runners reuse across sessions to
// avoid repeating login flows.
package storagestate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"authwatch/internal/target"
)

type State struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// Cookie uses the storage-state wire shape: expires is a unix timestamp in
// seconds, -1 for session cookies.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

type Origin struct {
	Origin       string  `json:"origin"`
	LocalStorage []Entry `json:"localStorage"`
}

type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func Load(path string) (*State, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read storage state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode storage state: %w", err)
	}
	return &state, nil
}

// Save writes the snapshot atomically so a crashed run never leaves a
// half-written file for the next run to consume.
func Save(path string, state *State) error {
	if state == nil {
		state = &State{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage state directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write storage state temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace storage state: %w", err)
	}
	return nil
}

// FindCookie returns the first cookie with the given name.
func (s *State) FindCookie(name string) (Cookie, bool) {
	if s == nil {
		return Cookie{}, false
	}
	for _, cookie := range s.Cookies {
		if cookie.Name == name {
			return cookie, true
		}
	}
	return Cookie{}, false
}

// LocalStorageEntries flattens all origins into a single entry list.
func (s *State) LocalStorageEntries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0)
	for _, origin := range s.Origins {
		out = append(out, origin.LocalStorage...)
	}
	return out
}

// SetCookie replaces the cookie with the same name or appends it.
func (s *State) SetCookie(cookie Cookie) {
	for i, existing := range s.Cookies {
		if existing.Name == cookie.Name {
			s.Cookies[i] = cookie
			return
		}
	}
	s.Cookies = append(s.Cookies, cookie)
}

// ToSessionCookie converts the wire shape to the client's rich cookie.
func (c Cookie) ToSessionCookie() target.SessionCookie {
	expires := time.Time{}
	if c.Expires > 0 {
		expires = time.Unix(int64(c.Expires), 0)
	}
	return target.SessionCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  expires,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// FromSessionCookie converts the client's cookie back to the wire shape.
func FromSessionCookie(cookie target.SessionCookie) Cookie {
	expires := float64(-1)
	if !cookie.Expires.IsZero() {
		expires = float64(cookie.Expires.Unix())
	}
	sameSite := cookie.SameSite
	if strings.TrimSpace(sameSite) == "" {
		sameSite = "Lax"
	}
	return Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Domain:   cookie.Domain,
		Path:     cookie.Path,
		Expires:  expires,
		HTTPOnly: cookie.HTTPOnly,
		Secure:   cookie.Secure,
		SameSite: sameSite,
	}
}
