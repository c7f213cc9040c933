// Package signin holds the sign-in and sign-up form flows. Both validate
// locally before touching the network and restrict addresses to the campus
// email domain.
package signin

import (
	"context"
	"fmt"
	"sync"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
	"github.com/campus-connect/appcore/internal/pkg/validate"
)

// Provider is the slice of the session provider the flow needs.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
}

// Flow carries the form state for the sign-in and sign-up screens.
type Flow struct {
	mu          sync.Mutex
	provider    Provider
	emailDomain string
	submitting  bool
	lastErr     error
	closed      bool
}

// New builds a flow restricted to the given campus email domain. An empty
// domain accepts any address.
func New(provider Provider, emailDomain string) *Flow {
	return &Flow{provider: provider, emailDomain: emailDomain}
}

type signUpRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

// SignIn validates the form and exchanges credentials for a session.
// A session with a confirmed email navigates to the main area; an
// unconfirmed one is sent to the verify screen for its address.
func (f *Flow) SignIn(ctx context.Context, email, password string) (nav.Destination, error) {
	if err := f.validateSignIn(email, password); err != nil {
		return "", err
	}
	if !f.begin() {
		return "", nil
	}
	sess, err := f.provider.SignIn(ctx, email, password)
	if f.finish(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if sess.Confirmed() {
		return nav.Main, nil
	}
	return nav.VerifyFor(email), nil
}

// SignUp validates the form and registers a new account. The service sends
// the first verification email as part of sign-up, so the flow navigates
// straight to the verify screen.
func (f *Flow) SignUp(ctx context.Context, email, password string) (nav.Destination, error) {
	req := signUpRequest{Email: email, Password: password}
	if err := validate.Struct(req); err != nil {
		return "", f.fail(fmt.Errorf("%s: %w", err.Error(), domain.ErrValidation))
	}
	if err := validate.CampusEmail(email, f.emailDomain); err != nil {
		return "", f.fail(fmt.Errorf("%s: %w", err.Error(), domain.ErrValidation))
	}
	if !f.begin() {
		return "", nil
	}
	_, err := f.provider.SignUp(ctx, email, password)
	if f.finish(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return nav.VerifyFor(email), nil
}

func (f *Flow) validateSignIn(email, password string) error {
	if err := validate.CampusEmail(email, f.emailDomain); err != nil {
		return f.fail(fmt.Errorf("%s: %w", err.Error(), domain.ErrValidation))
	}
	if password == "" {
		return f.fail(fmt.Errorf("password is required: %w", domain.ErrValidation))
	}
	return nil
}

// begin flips the busy flag; false means a submission is already in flight
// and the caller should treat the action as a no-op.
func (f *Flow) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.submitting {
		return false
	}
	f.submitting = true
	f.lastErr = nil
	return true
}

// finish reverts the busy flag and records the outcome. It returns true
// when the flow was closed while the call was in flight, in which case the
// caller must discard the result.
func (f *Flow) finish(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return true
	}
	f.submitting = false
	f.lastErr = err
	return false
}

func (f *Flow) fail(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.lastErr = err
	}
	return err
}

// Submitting reports whether a call is in flight; the view disables the
// form controls while true.
func (f *Flow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// LastError returns the inline banner error, if any.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close marks the screen unmounted; late call completions are discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
