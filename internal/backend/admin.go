package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campus-connect/appcore/internal/domain"
)

// Admin performs the operations that need the elevated service-role key,
// which is distinct from the end-user's own session. Keep this key out of
// anything that ships to untrusted environments.
type Admin struct {
	baseURL    string
	roleKey    string
	httpClient *http.Client
}

// AdminOption customizes admin client construction.
type AdminOption func(*Admin)

// WithAdminHTTPClient replaces the underlying HTTP client (useful for tests).
func WithAdminHTTPClient(hc *http.Client) AdminOption {
	return func(a *Admin) {
		if hc != nil {
			a.httpClient = hc
		}
	}
}

// NewAdmin builds an elevated client for the service at baseURL.
func NewAdmin(baseURL, roleKey string, opts ...AdminOption) *Admin {
	a := &Admin{
		baseURL:    strings.TrimRight(baseURL, "/"),
		roleKey:    roleKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DeleteAuthIdentity removes the authentication identity behind userID.
func (a *Admin) DeleteAuthIdentity(ctx context.Context, userID string) error {
	if a.roleKey == "" {
		return fmt.Errorf("service role key not configured: %w", domain.ErrUnauthorized)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", a.roleKey)
	req.Header.Set("Authorization", "Bearer "+a.roleKey)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete auth identity: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return serviceError(resp)
	}
	return nil
}

// Eraser pairs the end-user profile deletion with the elevated identity
// deletion so the settings flow sees one capability.
type Eraser struct {
	client *Client
	admin  *Admin
}

// NewEraser builds the combined destructive capability.
func NewEraser(client *Client, admin *Admin) *Eraser {
	return &Eraser{client: client, admin: admin}
}

// DeleteProfileRecord removes the profile row via the end-user client.
func (e *Eraser) DeleteProfileRecord(ctx context.Context, userID string) error {
	return e.client.DeleteProfileRecord(ctx, userID)
}

// DeleteAuthIdentity removes the auth identity via the admin client.
func (e *Eraser) DeleteAuthIdentity(ctx context.Context, userID string) error {
	return e.admin.DeleteAuthIdentity(ctx, userID)
}
