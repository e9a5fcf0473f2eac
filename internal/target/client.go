package target

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL       string
	SessionPath   string
	ProtectedPath string
	CookieName    string
	UserAgent     string
	Timeout       time.Duration
}

type RequestOptions struct {
	OmitCookie   bool
	Query        url.Values
	ExtraHeaders map[string]string
}

type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

func (r *RawResponse) Header(name string) string {
	if r == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Client talks to the application under verification. It tracks the session
// cookie with its full attribute set so verifiers can inspect expiry and
// security flags, which a plain cookie jar would discard.
type Client struct {
	baseURL       string
	sessionPath   string
	protectedPath string
	cookieName    string
	userAgent     string
	client        *http.Client

	mu      sync.Mutex
	session *SessionCookie
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	sessionPath := cfg.SessionPath
	if sessionPath == "" {
		sessionPath = "/api/auth/session"
	}
	protectedPath := cfg.ProtectedPath
	if protectedPath == "" {
		protectedPath = "/api/summary"
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		sessionPath:   sessionPath,
		protectedPath: protectedPath,
		cookieName:    cookieName,
		userAgent:     cfg.UserAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string     { return c.baseURL }
func (c *Client) CookieName() string  { return c.cookieName }
func (c *Client) SessionPath() string { return c.sessionPath }

// SetSessionCookie installs the session cookie sent on subsequent requests.
func (c *Client) SetSessionCookie(cookie SessionCookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := cookie
	c.session = &copied
}

func (c *Client) ClearSessionCookie() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// SessionCookie returns a copy of the tracked session cookie, if any.
func (c *Client) SessionCookie() (SessionCookie, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return SessionCookie{}, false
	}
	return *c.session, true
}

// SessionStatus calls the session-status endpoint and decodes its body.
func (c *Client) SessionStatus(ctx context.Context) (*SessionStatus, *RawResponse, error) {
	raw, err := c.RawRequest(ctx, http.MethodGet, c.sessionPath, RequestOptions{})
	if err != nil {
		return nil, raw, err
	}
	var status SessionStatus
	if err := json.Unmarshal(raw.Body, &status); err != nil {
		return nil, raw, fmt.Errorf("decode session status: %w", err)
	}
	return &status, raw, nil
}

// ProtectedProbe calls the authenticated-only route. The status code carries
// the signal; non-2xx responses return both the raw response and an APIError.
func (c *Client) ProtectedProbe(ctx context.Context, query url.Values) (*RawResponse, error) {
	return c.RawRequest(ctx, http.MethodGet, c.protectedPath, RequestOptions{Query: query})
}

func (c *Client) RawRequest(ctx context.Context, method, path string, opts RequestOptions) (*RawResponse, error) {
	fullURL := c.baseURL + path
	if len(opts.Query) > 0 {
		fullURL += "?" + opts.Query.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		request.Header.Set("User-Agent", c.userAgent)
	}
	if !opts.OmitCookie {
		if cookie, ok := c.SessionCookie(); ok && !cookie.Expired(time.Now()) {
			request.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
		}
	}
	for k, v := range opts.ExtraHeaders {
		if v == "" {
			request.Header.Del(k)
			continue
		}
		request.Header.Set(k, v)
	}

	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer response.Body.Close()

	c.absorbSetCookies(response)

	bodyBytes, readErr := io.ReadAll(response.Body)
	raw := &RawResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Header.Clone(),
		Body:       bodyBytes,
		Duration:   time.Since(start),
	}
	if readErr != nil {
		return raw, fmt.Errorf("read response body: %w", readErr)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return raw, &APIError{
			StatusCode: response.StatusCode,
			Body:       bodyBytes,
		}
	}
	return raw, nil
}

// absorbSetCookies updates the tracked session cookie when the target rotates
// or clears it via Set-Cookie.
func (c *Client) absorbSetCookies(response *http.Response) {
	for _, cookie := range response.Cookies() {
		if cookie.Name != c.cookieName {
			continue
		}
		if cookie.MaxAge < 0 || (cookie.Value == "" && !cookie.Expires.IsZero() && cookie.Expires.Before(time.Now())) {
			c.ClearSessionCookie()
			continue
		}
		c.SetSessionCookie(fromHTTPCookie(cookie))
	}
}
