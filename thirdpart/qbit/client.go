// Package qbit is a client for the qBittorrent WebUI API (spec.md §4.6
// Torrent-Client Adapter).
package qbit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sunerpy/akari/internal/apperr"
	"github.com/sunerpy/akari/internal/mikan"
)

// sessionTTL is how long a WebUI SID cookie is assumed valid before a
// pre-emptive re-login, mirroring qBittorrent's default WebUI session
// timeout.
const sessionTTL = time.Hour

// Client talks to one qBittorrent WebUI instance. Session state
// (cookie jar, expiry) is guarded by mu so concurrent callers don't race
// the re-auth path; every other operation is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	limiter    *rate.Limiter

	mu            sync.Mutex
	authenticated bool
	sessionExpiry time.Time
}

// New creates a Client. It does not perform the initial login — the
// first request triggers it lazily, same as every subsequent re-auth.
func New(baseURL, username, password string, rateLimit time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if rateLimit <= 0 {
		rateLimit = 200 * time.Millisecond
	}
	return &Client{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(rateLimit), 1),
	}, nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authenticated && time.Now().Before(c.sessionExpiry) {
		return nil
	}
	return c.login(ctx)
}

// login is called with mu held.
func (c *Client) login(ctx context.Context) error {
	data := url.Values{}
	data.Set("username", c.username)
	data.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", bytes.NewBufferString(data.Encode()))
	if err != nil {
		return apperr.Validation("building login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.UpstreamUnavailable("qbittorrent login failed", err, 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.UpstreamUnavailable("reading qbittorrent login response", err, 0)
	}
	if resp.StatusCode != http.StatusOK || string(body) != "Ok." {
		return apperr.UpstreamRejected("qbittorrent login rejected", fmt.Errorf("status %d body %q", resp.StatusCode, body))
	}

	c.authenticated = true
	c.sessionExpiry = time.Now().Add(sessionTTL)
	return nil
}

// forceReauth drops session state so the next ensureSession call logs in
// again, used after a 403 tells us the WebUI invalidated our cookie
// (spec §4.6 "forced re-auth").
func (c *Client) forceReauth() {
	c.mu.Lock()
	c.authenticated = false
	c.mu.Unlock()
}

// do executes req, retrying exactly once after a forced re-auth if the
// server answers 403 (expired/rejected session cookie). body is read into
// memory up front (if non-nil) so the retry can replay the exact same
// request — the first doOnce call otherwise drains it, and a retried
// POST would go out with an empty body, silently dropping urls/hashes.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Cancelled("qbittorrent rate limiter wait cancelled", err)
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return nil, apperr.Validation("reading qbittorrent request body", err)
		}
	}
	newBody := func() io.Reader {
		if bodyBytes == nil {
			return nil
		}
		return bytes.NewReader(bodyBytes)
	}

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	resp, err := c.doOnce(ctx, method, path, newBody(), contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	resp.Body.Close()

	c.forceReauth()
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	return c.doOnce(ctx, method, path, newBody(), contentType)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperr.Validation("building qbittorrent request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Cancelled("qbittorrent request cancelled", ctx.Err())
		}
		return nil, apperr.UpstreamUnavailable("qbittorrent request failed", err, 0)
	}
	return resp, nil
}

func classifyStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 500 {
		return apperr.UpstreamUnavailable("qbittorrent server error", fmt.Errorf("status %d: %s", resp.StatusCode, body), 0)
	}
	return apperr.UpstreamRejected("qbittorrent request rejected", fmt.Errorf("status %d: %s", resp.StatusCode, body))
}

// normalizeHash is the one hash-casing boundary every method funnels
// through, per spec §4.6/§4.7's "hash case bug avoidance" note.
func normalizeHash(hash string) string {
	return mikan.NormalizeHash(hash)
}
