package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockProvider struct{ mock.Mock }

func (m *mockProvider) GetSession(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	args := m.Called(ctx, email, code)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ResendVerificationEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// funcProvider is a closure-based double for tests that need to act while a
// call is in flight (re-entrancy, unmount).
type funcProvider struct {
	getSession func(ctx context.Context) (*domain.Session, error)
	verify     func(ctx context.Context, email, code string) (*domain.Session, error)
	resend     func(ctx context.Context, email string) error
}

func (f *funcProvider) GetSession(ctx context.Context) (*domain.Session, error) {
	if f.getSession == nil {
		return nil, nil
	}
	return f.getSession(ctx)
}

func (f *funcProvider) VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	return f.verify(ctx, email, code)
}

func (f *funcProvider) ResendVerificationEmail(ctx context.Context, email string) error {
	return f.resend(ctx, email)
}

// --- helpers ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const testEmail = "a@mail.utdt.edu"

func enterCode(m *Machine, code string) {
	for i, r := range code {
		m.EnterDigit(i, string(r))
	}
}

func confirmedSession(email string) *domain.Session {
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Session{
		AccessToken: "token",
		User:        &domain.User{ID: "u1", Email: email, EmailConfirmedAt: &t},
	}
}

// --- digit entry ---

func TestEnterDigit_FiltersNonDigits(t *testing.T) {
	m := New(&mockProvider{}, testEmail)

	_, moved := m.EnterDigit(0, "x")
	assert.False(t, moved)
	assert.Equal(t, "", m.Digits()[0])

	focus, moved := m.EnterDigit(0, "5")
	assert.True(t, moved)
	assert.Equal(t, 1, focus)
	assert.Equal(t, "5", m.Digits()[0])
}

func TestEnterDigit_OneCharacterPerCell(t *testing.T) {
	m := New(&mockProvider{}, testEmail)
	m.EnterDigit(2, "12")
	assert.Equal(t, "2", m.Digits()[2])
}

func TestEnterDigit_NoAdvanceOnLastCell(t *testing.T) {
	m := New(&mockProvider{}, testEmail)
	_, moved := m.EnterDigit(5, "9")
	assert.False(t, moved)
	assert.Equal(t, "9", m.Digits()[5])
}

func TestEnterDigit_ThenClearIsIdempotent(t *testing.T) {
	m := New(&mockProvider{}, testEmail)
	enterCode(m, "123")
	before := m.Digits()

	m.EnterDigit(3, "7")
	m.EnterDigit(3, "")
	assert.Equal(t, before, m.Digits())
}

func TestEnterDigit_RejectsOutOfRangeIndex(t *testing.T) {
	m := New(&mockProvider{}, testEmail)
	_, moved := m.EnterDigit(-1, "5")
	assert.False(t, moved)
	_, moved = m.EnterDigit(CodeLength, "5")
	assert.False(t, moved)
}

func TestBackspace_EmptyCellMovesFocusLeft(t *testing.T) {
	m := New(&mockProvider{}, testEmail)
	focus, moved := m.Backspace(3)
	assert.True(t, moved)
	assert.Equal(t, 2, focus)

	_, moved = m.Backspace(0)
	assert.False(t, moved)
}

func TestBackspace_FilledCellClearsInPlace(t *testing.T) {
	m := New(&mockProvider{}, testEmail)
	m.EnterDigit(2, "4")
	_, moved := m.Backspace(2)
	assert.False(t, moved)
	assert.Equal(t, "", m.Digits()[2])
}

// --- submit ---

func TestSubmit_IncompleteCodeFailsWithoutNetworkCall(t *testing.T) {
	p := &mockProvider{}
	m := New(p, testEmail)
	enterCode(m, "123")

	dest, err := m.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, nav.Destination(""), dest)
	assert.Equal(t, AwaitingCode, m.State())
	p.AssertNotCalled(t, "VerifyOneTimeCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_SessionNavigatesToMain(t *testing.T) {
	p := &mockProvider{}
	p.On("VerifyOneTimeCode", mock.Anything, testEmail, "123456").
		Return(confirmedSession(testEmail), nil)

	m := New(p, testEmail)
	enterCode(m, "123456")

	dest, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Main, dest)
	assert.Equal(t, Verified, m.State())
	p.AssertExpectations(t)
}

func TestSubmit_NoSessionNavigatesToSignIn(t *testing.T) {
	p := &mockProvider{}
	p.On("VerifyOneTimeCode", mock.Anything, testEmail, "123456").Return(nil, nil)

	m := New(p, testEmail)
	enterCode(m, "123456")

	dest, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.SignIn, dest)
	assert.Equal(t, Verified, m.State())
}

func TestSubmit_FailureReturnsToAwaitingWithError(t *testing.T) {
	p := &mockProvider{}
	verifyErr := errors.New("invalid code")
	p.On("VerifyOneTimeCode", mock.Anything, testEmail, "123456").Return(nil, verifyErr)

	m := New(p, testEmail)
	enterCode(m, "123456")

	dest, err := m.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, nav.Destination(""), dest)
	assert.Equal(t, AwaitingCode, m.State())
	assert.Equal(t, verifyErr, m.LastError())

	// Retryable: a second submit hits the provider again.
	_, _ = m.Submit(context.Background())
	p.AssertNumberOfCalls(t, "VerifyOneTimeCode", 2)
}

func TestSubmit_ResendRejectedWhileSubmitInFlight(t *testing.T) {
	var m *Machine
	resendCalls := 0
	p := &funcProvider{
		verify: func(ctx context.Context, email, code string) (*domain.Session, error) {
			// Fired from "inside" the in-flight verify call.
			require.NoError(t, m.Resend(ctx))
			return confirmedSession(email), nil
		},
		resend: func(ctx context.Context, email string) error {
			resendCalls++
			return nil
		},
	}
	m = New(p, testEmail)
	enterCode(m, "123456")

	dest, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Main, dest)
	assert.Equal(t, 0, resendCalls)
}

// --- resend & cooldown ---

func TestResend_StartsSixtySecondCooldown(t *testing.T) {
	clk := newFakeClock()
	p := &mockProvider{}
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail, WithClock(clk.Now))
	require.NoError(t, m.Resend(context.Background()))
	assert.Equal(t, 60, m.CooldownSeconds())

	clk.Advance(time.Second)
	assert.Equal(t, 59, m.CooldownSeconds())

	clk.Advance(58 * time.Second)
	assert.Equal(t, 1, m.CooldownSeconds())

	clk.Advance(time.Second)
	assert.Equal(t, 0, m.CooldownSeconds())
}

func TestResend_NoopDuringCooldown(t *testing.T) {
	clk := newFakeClock()
	p := &mockProvider{}
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail, WithClock(clk.Now))
	require.NoError(t, m.Resend(context.Background()))

	clk.Advance(10 * time.Second)
	require.NoError(t, m.Resend(context.Background()))
	assert.Equal(t, 50, m.CooldownSeconds())
	p.AssertNumberOfCalls(t, "ResendVerificationEmail", 1)
}

func TestResend_AvailableAgainAfterCooldown(t *testing.T) {
	clk := newFakeClock()
	p := &mockProvider{}
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail, WithClock(clk.Now))
	require.NoError(t, m.Resend(context.Background()))
	clk.Advance(60 * time.Second)
	require.NoError(t, m.Resend(context.Background()))
	p.AssertNumberOfCalls(t, "ResendVerificationEmail", 2)
}

func TestResend_FailureLeavesCooldownAtZero(t *testing.T) {
	clk := newFakeClock()
	p := &mockProvider{}
	sendErr := errors.New("mail service down")
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(sendErr)

	m := New(p, testEmail, WithClock(clk.Now))
	err := m.Resend(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, m.CooldownSeconds())
	assert.Equal(t, sendErr, m.LastError())
	assert.Equal(t, AwaitingCode, m.State())
}

func TestResend_CustomCooldown(t *testing.T) {
	clk := newFakeClock()
	p := &mockProvider{}
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail, WithClock(clk.Now), WithCooldown(5*time.Second))
	require.NoError(t, m.Resend(context.Background()))
	assert.Equal(t, 5, m.CooldownSeconds())
}

// --- entry action ---

func TestActivate_AlreadyVerifiedShortCircuits(t *testing.T) {
	p := &mockProvider{}
	p.On("GetSession", mock.Anything).Return(confirmedSession(testEmail), nil)

	m := New(p, testEmail)
	dest, err := m.Activate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Main, dest)
	assert.Equal(t, Verified, m.State())
	p.AssertNotCalled(t, "ResendVerificationEmail", mock.Anything, mock.Anything)
}

func TestActivate_ConfirmedSessionForOtherEmailStillResends(t *testing.T) {
	p := &mockProvider{}
	p.On("GetSession", mock.Anything).Return(confirmedSession("other@mail.utdt.edu"), nil)
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail)
	dest, err := m.Activate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Destination(""), dest)
	p.AssertNumberOfCalls(t, "ResendVerificationEmail", 1)
}

func TestActivate_AutoResendsOnce(t *testing.T) {
	p := &mockProvider{}
	p.On("GetSession", mock.Anything).Return(nil, nil)
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail)
	_, err := m.Activate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, m.CooldownSeconds())

	// Re-activation (screen re-entry) must not send a duplicate code.
	_, err = m.Activate(context.Background())
	require.NoError(t, err)
	p.AssertNumberOfCalls(t, "ResendVerificationEmail", 1)
}

func TestActivate_SessionReadFailureIsNonFatal(t *testing.T) {
	p := &mockProvider{}
	p.On("GetSession", mock.Anything).Return(nil, errors.New("network down"))
	p.On("ResendVerificationEmail", mock.Anything, testEmail).Return(nil)

	m := New(p, testEmail)
	_, err := m.Activate(context.Background())
	require.NoError(t, err)
	p.AssertNumberOfCalls(t, "ResendVerificationEmail", 1)
}

// --- unmount ---

func TestClose_DiscardsLateSubmitCompletion(t *testing.T) {
	var m *Machine
	p := &funcProvider{
		verify: func(ctx context.Context, email, code string) (*domain.Session, error) {
			m.Close()
			return confirmedSession(email), nil
		},
	}
	m = New(p, testEmail)
	enterCode(m, "123456")

	dest, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Destination(""), dest)
}

func TestClose_DiscardsLateResendCompletion(t *testing.T) {
	clk := newFakeClock()
	var m *Machine
	p := &funcProvider{
		resend: func(ctx context.Context, email string) error {
			m.Close()
			return nil
		},
	}
	m = New(p, testEmail, WithClock(clk.Now))
	require.NoError(t, m.Resend(context.Background()))
	assert.Equal(t, 0, m.CooldownSeconds())
}

func TestClose_IgnoresFurtherActions(t *testing.T) {
	p := &mockProvider{}
	m := New(p, testEmail)
	m.Close()

	_, moved := m.EnterDigit(0, "1")
	assert.False(t, moved)
	dest, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Destination(""), dest)
	require.NoError(t, m.Resend(context.Background()))
	p.AssertNotCalled(t, "VerifyOneTimeCode", mock.Anything, mock.Anything, mock.Anything)
	p.AssertNotCalled(t, "ResendVerificationEmail", mock.Anything, mock.Anything)
}
