// Package account holds the one-shot commands reachable from the settings
// surface: sign-out and account deletion. Each command carries its own busy
// flag so the invoking control can be disabled while a call is in flight.
package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
)

// Provider is the end-user slice of the session provider.
type Provider interface {
	GetCurrentUser(ctx context.Context) (*domain.User, error)
	SignOut(ctx context.Context) error
}

// Eraser performs the destructive backend calls. Deleting the auth identity
// needs an elevated key, so it lives behind its own capability rather than
// the end-user provider. Cascading removal of records that hang off the
// profile is a backend guarantee, not something this layer orchestrates.
type Eraser interface {
	DeleteProfileRecord(ctx context.Context, userID string) error
	DeleteAuthIdentity(ctx context.Context, userID string) error
}

// Actions exposes the settings commands.
type Actions struct {
	mu         sync.Mutex
	provider   Provider
	eraser     Eraser
	signingOut bool
	deleting   bool
}

// New builds the settings actions.
func New(provider Provider, eraser Eraser) *Actions {
	return &Actions{provider: provider, eraser: eraser}
}

// SignOut ends the current session. On success the caller navigates to
// sign-in; on failure it surfaces the error and stays put.
func (a *Actions) SignOut(ctx context.Context) (nav.Destination, error) {
	a.mu.Lock()
	if a.signingOut {
		a.mu.Unlock()
		return "", nil
	}
	a.signingOut = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.signingOut = false
		a.mu.Unlock()
	}()

	if err := a.provider.SignOut(ctx); err != nil {
		return "", fmt.Errorf("sign out: %w", err)
	}
	return nav.SignIn, nil
}

// SigningOut reports whether a sign-out call is in flight.
func (a *Actions) SigningOut() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signingOut
}

// Deleting reports whether an account deletion is in flight.
func (a *Actions) Deleting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deleting
}

// Deletion is the pending second step of account removal. Nothing
// destructive happens until Confirm is called; discarding the value (or
// calling Cancel) abandons the request.
type Deletion struct {
	actions   *Actions
	confirmed bool
}

// BeginDelete opens the confirmation step for account removal.
func (a *Actions) BeginDelete() *Deletion {
	return &Deletion{actions: a}
}

// Cancel abandons the pending deletion.
func (d *Deletion) Cancel() { d.actions = nil }

// Confirm runs the destructive sequence: resolve the current user, delete
// the profile record, delete the auth identity, sign out. The first failure
// aborts the remaining steps and leaves the account in whatever partial
// state the backend reached; there is no compensating rollback.
func (d *Deletion) Confirm(ctx context.Context) (nav.Destination, error) {
	if d.actions == nil || d.confirmed {
		return "", nil
	}
	d.confirmed = true
	a := d.actions

	a.mu.Lock()
	if a.deleting {
		a.mu.Unlock()
		return "", nil
	}
	a.deleting = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.deleting = false
		a.mu.Unlock()
	}()

	user, err := a.provider.GetCurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve current user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("no signed-in user: %w", domain.ErrNotAuthenticated)
	}
	if err := a.eraser.DeleteProfileRecord(ctx, user.ID); err != nil {
		return "", fmt.Errorf("delete profile: %w", err)
	}
	if err := a.eraser.DeleteAuthIdentity(ctx, user.ID); err != nil {
		// Known gap: the profile is gone but the auth identity survived.
		return "", fmt.Errorf("delete auth identity: %w", err)
	}
	if err := a.provider.SignOut(ctx); err != nil {
		return "", fmt.Errorf("sign out after deletion: %w", err)
	}
	return nav.SignIn, nil
}
