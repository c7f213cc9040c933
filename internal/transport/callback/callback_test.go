package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	args := m.Called(ctx, email, code)
	if sess, ok := args.Get(0).(*domain.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestCallback_SessionLeadsToMain(t *testing.T) {
	verifier := &mockVerifier{}
	verifier.On("VerifyOneTimeCode", mock.Anything, "a@mail.utdt.edu", "123456").
		Return(&domain.Session{AccessToken: "at"}, nil)

	var dest nav.Destination
	h := NewHandler(verifier, func(d nav.Destination) { dest = d })
	srv := httptest.NewServer(h.Router(""))
	defer srv.Close()

	resp := get(t, srv, "/callback?type=email&email=a%40mail.utdt.edu&token=123456")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, nav.Main, dest)
	verifier.AssertExpectations(t)
}

func TestCallback_ConfirmedWithoutSessionLeadsToSignIn(t *testing.T) {
	verifier := &mockVerifier{}
	verifier.On("VerifyOneTimeCode", mock.Anything, "a@mail.utdt.edu", "123456").
		Return(nil, nil)

	var dest nav.Destination
	h := NewHandler(verifier, func(d nav.Destination) { dest = d })
	srv := httptest.NewServer(h.Router(""))
	defer srv.Close()

	resp := get(t, srv, "/callback?type=email&email=a%40mail.utdt.edu&token=123456")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, nav.SignIn, dest)
}

func TestCallback_MalformedLinkNeverHitsProvider(t *testing.T) {
	verifier := &mockVerifier{}
	h := NewHandler(verifier, nil)
	srv := httptest.NewServer(h.Router(""))
	defer srv.Close()

	for _, path := range []string{
		"/callback",
		"/callback?type=email&email=not-an-email&token=123456",
		"/callback?type=email&email=a%40mail.utdt.edu",
		"/callback?type=recovery&email=a%40mail.utdt.edu&token=123456",
	} {
		resp := get(t, srv, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
	verifier.AssertNotCalled(t, "VerifyOneTimeCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallback_VerificationFailure(t *testing.T) {
	verifier := &mockVerifier{}
	verifier.On("VerifyOneTimeCode", mock.Anything, "a@mail.utdt.edu", "999999").
		Return(nil, domain.ErrUnauthorized)

	notified := false
	h := NewHandler(verifier, func(nav.Destination) { notified = true })
	srv := httptest.NewServer(h.Router(""))
	defer srv.Close()

	resp := get(t, srv, "/callback?type=email&email=a%40mail.utdt.edu&token=999999")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, notified)
}

func TestCallback_UnknownPathReportsNotFound(t *testing.T) {
	var dest nav.Destination
	h := NewHandler(&mockVerifier{}, func(d nav.Destination) { dest = d })
	srv := httptest.NewServer(h.Router(""))
	defer srv.Close()

	resp := get(t, srv, "/some/unknown/deeplink")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, nav.NotFound, dest)
}
