// Package backend talks to the hosted auth/data service over its REST API.
// The client holds the current session in memory and implements the
// capability surfaces consumed by the flow packages. Persistence, email
// delivery and password hashing are the service's internals; nothing here
// goes beyond HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// Client is the end-user service client, authenticated with the public API
// key plus (once signed in) the session's bearer token.
type Client struct {
	baseURL  string
	anonKey  string
	deviceID string

	httpClient *http.Client
	// Outbound throttle: the hosted service rate-limits auth endpoints, so
	// the client stays under that ceiling instead of collecting 429s.
	limiter *rate.Limiter

	mu      sync.Mutex
	session *domain.Session
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDeviceID attaches a per-install device identifier to sign-in and
// sign-up requests so the service can scope sessions to the install.
func WithDeviceID(id string) ClientOption {
	return func(c *Client) { c.deviceID = id }
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL, anonKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authResponse is the service's session envelope. A response without an
// access token means the operation succeeded but did not authenticate.
type authResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SignIn exchanges credentials for a session via the password grant.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password, "device_id": c.deviceID}
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, "", &out); err != nil {
		return nil, err
	}
	sess := c.sessionFrom(&out)
	c.setSession(sess)
	return sess, nil
}

// SignUp registers a new account. The service mails the first verification
// code itself; the returned session is nil until the email is confirmed.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password, "device_id": c.deviceID}
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", body, "", &out); err != nil {
		return nil, err
	}
	sess := c.sessionFrom(&out)
	if sess != nil {
		c.setSession(sess)
	}
	return sess, nil
}

// VerifyOneTimeCode exchanges a 6-digit emailed code for a confirmed
// session. A nil session with a nil error means the email was confirmed
// but the caller must sign in again.
func (c *Client) VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	body := map[string]string{"type": "email", "email": email, "token": code}
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", body, "", &out); err != nil {
		return nil, err
	}
	sess := c.sessionFrom(&out)
	if sess != nil {
		c.setSession(sess)
	}
	return sess, nil
}

// ResendVerificationEmail asks the service to mail a fresh code.
func (c *Client) ResendVerificationEmail(ctx context.Context, email string) error {
	body := map[string]string{"type": "signup", "email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/resend", body, "", nil)
}

// SignOut revokes the current session. The cached session is only dropped
// on success so a failed sign-out leaves the user where they were.
func (c *Client) SignOut(ctx context.Context) error {
	bearer := c.bearer()
	if bearer == "" {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, bearer, nil); err != nil {
		return err
	}
	c.setSession(nil)
	return nil
}

// GetSession returns the current session, refreshing it first when the
// access token has expired and a refresh token is on hand. No session and
// no error means signed out.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, nil
	}
	if time.Now().Before(sess.ExpiresAt) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		return nil, nil
	}
	return c.RefreshSession(ctx)
}

// RefreshSession rotates the session via the refresh-token grant.
func (c *Client) RefreshSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	refresh := ""
	if c.session != nil {
		refresh = c.session.RefreshToken
	}
	c.mu.Unlock()
	if refresh == "" {
		return nil, fmt.Errorf("no refresh token: %w", domain.ErrNotAuthenticated)
	}
	body := map[string]string{"refresh_token": refresh}
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", body, "", &out); err != nil {
		return nil, err
	}
	sess := c.sessionFrom(&out)
	c.setSession(sess)
	return sess, nil
}

// GetCurrentUser fetches the identity behind the current session straight
// from the service, so confirmation state is never served from a stale
// local copy. Nil without error means signed out.
func (c *Client) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	bearer := c.bearer()
	if bearer == "" {
		return nil, nil
	}
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, bearer, &u); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.session != nil {
		c.session.User = &u
	}
	c.mu.Unlock()
	return &u, nil
}

// DeleteProfileRecord removes the user's profile row. Records hanging off
// the profile are removed by the backend's cascade.
func (c *Client) DeleteProfileRecord(ctx context.Context, userID string) error {
	bearer := c.bearer()
	if bearer == "" {
		return fmt.Errorf("no session: %w", domain.ErrNotAuthenticated)
	}
	return c.do(ctx, http.MethodDelete, "/rest/v1/profiles/"+userID, nil, bearer, nil)
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) setSession(s *domain.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// sessionFrom builds a Session from a service envelope. Expiry is read from
// the access token's JWT payload without checking the signature; only the
// service holds the verification key.
func (c *Client) sessionFrom(out *authResponse) *domain.Session {
	if out == nil || out.AccessToken == "" {
		return nil
	}
	sess := &domain.Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		User:         out.User,
		ExpiresAt:    time.Now().Add(time.Minute),
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(out.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, bearer string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return serviceError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, domain.ErrUnavailable)
	}
	return nil
}

// serviceError maps an error response to a domain sentinel, keeping the
// service's message for the user-facing banner.
func serviceError(resp *http.Response) error {
	var envelope errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &envelope)
	msg := envelope.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: %w", msg, domain.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %w", msg, domain.ErrBadRequest)
	}
}
