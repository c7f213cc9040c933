// Package verification implements the email one-time-code flow: six digit
// cells, a submit transition, and a resend action throttled by a local
// cooldown. The machine owns all flow state; network effects go through the
// injected Provider and focus/navigation effects are returned to the view
// as plain values.
package verification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
)

// CodeLength is the number of digit cells in a one-time code.
const CodeLength = 6

// DefaultCooldown throttles the resend action after a successful send.
const DefaultCooldown = 60 * time.Second

// Provider is the slice of the session provider the machine needs.
type Provider interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error)
	ResendVerificationEmail(ctx context.Context, email string) error
}

// State is the machine's current phase.
type State int

const (
	// AwaitingCode accepts digit entry and submit/resend actions.
	AwaitingCode State = iota
	// Submitting means a verify call is in flight; all actions are no-ops.
	Submitting
	// Resending means a resend call is in flight; all actions are no-ops.
	Resending
	// Verified is terminal; the view should already be navigating away.
	Verified
)

func (s State) String() string {
	switch s {
	case AwaitingCode:
		return "awaiting-code"
	case Submitting:
		return "submitting"
	case Resending:
		return "resending"
	case Verified:
		return "verified"
	}
	return "unknown"
}

// Machine drives verification for a single target email. It is created when
// the verify screen mounts and discarded (via Close) when it unmounts.
type Machine struct {
	mu       sync.Mutex
	provider Provider
	email    string

	state         State
	digits        [CodeLength]string
	cooldownUntil time.Time
	cooldown      time.Duration
	lastErr       error
	activated     bool
	closed        bool

	now func() time.Time
}

// Option customizes machine construction.
type Option func(*Machine)

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCooldown overrides the resend cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.cooldown = d
		}
	}
}

// New builds a machine for the given target email.
func New(provider Provider, email string, opts ...Option) *Machine {
	m := &Machine{
		provider: provider,
		email:    email,
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate is the screen's entry action, run once per activation. If the
// current session already has this email confirmed it short-circuits to
// Verified and signals main-area navigation. Otherwise it issues the
// initial resend so a code is in flight before the user touches anything,
// unless a cooldown from a previous activation is still running.
func (m *Machine) Activate(ctx context.Context) (nav.Destination, error) {
	m.mu.Lock()
	if m.closed || m.activated || m.state != AwaitingCode {
		m.mu.Unlock()
		return "", nil
	}
	m.activated = true
	m.mu.Unlock()

	// A failed session read is non-fatal; the user simply verifies as usual.
	if sess, err := m.provider.GetSession(ctx); err == nil && sess.Confirmed() &&
		sess.User != nil && strings.EqualFold(sess.User.Email, m.email) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return "", nil
		}
		m.state = Verified
		return nav.Main, nil
	}

	if m.CooldownSeconds() > 0 {
		return "", nil
	}
	return "", m.Resend(ctx)
}

// EnterDigit records a raw text fragment for the cell at index. Input is
// filtered to decimal digits and capped at one character per cell. The
// returned focus index and flag tell the view where to move the cursor;
// they carry no flow-state meaning.
func (m *Machine) EnterDigit(index int, text string) (focus int, move bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || index < 0 || index >= CodeLength || m.state == Verified {
		return 0, false
	}
	digit := lastDigit(text)
	m.digits[index] = digit
	if digit != "" && index < CodeLength-1 {
		return index + 1, true
	}
	return 0, false
}

// Backspace handles a delete keypress on the cell at index. A backspace on
// an empty cell moves focus left; on a filled cell it clears the digit in
// place.
func (m *Machine) Backspace(index int) (focus int, move bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || index < 0 || index >= CodeLength || m.state == Verified {
		return 0, false
	}
	if m.digits[index] == "" {
		if index > 0 {
			return index - 1, true
		}
		return 0, false
	}
	m.digits[index] = ""
	return 0, false
}

// Submit exchanges the entered code for a verified session. With fewer than
// six digits it fails validation without touching the network. A verify
// success that returns a session navigates to the main area; a success
// without one means the email is confirmed but the user must sign in again.
func (m *Machine) Submit(ctx context.Context) (nav.Destination, error) {
	m.mu.Lock()
	if m.closed || m.state != AwaitingCode {
		m.mu.Unlock()
		return "", nil
	}
	code := strings.Join(m.digits[:], "")
	if len(code) != CodeLength {
		err := fmt.Errorf("incomplete code: %w", domain.ErrValidation)
		m.lastErr = err
		m.mu.Unlock()
		return "", err
	}
	m.state = Submitting
	m.lastErr = nil
	m.mu.Unlock()

	sess, err := m.provider.VerifyOneTimeCode(ctx, m.email, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", nil
	}
	if err != nil {
		m.state = AwaitingCode
		m.lastErr = err
		return "", err
	}
	m.state = Verified
	if sess != nil {
		return nav.Main, nil
	}
	return nav.SignIn, nil
}

// Resend asks the service to email a fresh code. It is a no-op while the
// cooldown is running or any call is in flight; submit and resend are
// mutually exclusive in both directions. A successful send starts the
// cooldown; a failed one leaves it at zero so the user can retry at once.
func (m *Machine) Resend(ctx context.Context) error {
	m.mu.Lock()
	if m.closed || m.state != AwaitingCode || m.remainingLocked() > 0 {
		m.mu.Unlock()
		return nil
	}
	m.state = Resending
	m.mu.Unlock()

	err := m.provider.ResendVerificationEmail(ctx, m.email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.state = AwaitingCode
	if err != nil {
		m.lastErr = err
		return err
	}
	m.lastErr = nil
	m.cooldownUntil = m.now().Add(m.cooldown)
	return nil
}

// CooldownSeconds returns the whole seconds left before resend is allowed
// again. A 1 Hz tick in the view re-reads it; there is no internal timer.
func (m *Machine) CooldownSeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remainingLocked()
}

func (m *Machine) remainingLocked() int {
	left := m.cooldownUntil.Sub(m.now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// State returns the machine's current phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Digits returns a copy of the six digit cells.
func (m *Machine) Digits() [CodeLength]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.digits
}

// LastError returns the most recent non-fatal failure, shown inline.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Email returns the verification target address.
func (m *Machine) Email() string { return m.email }

// Close marks the screen unmounted. In-flight call completions after Close
// never mutate state.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// lastDigit keeps the final decimal digit of a raw input fragment, so a
// paste of "12" into one cell behaves like typing "2" over it.
func lastDigit(text string) string {
	out := ""
	for _, r := range text {
		if r >= '0' && r <= '9' {
			out = string(r)
		}
	}
	return out
}
