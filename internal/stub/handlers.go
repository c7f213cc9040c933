package stub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeTTL    = 15 * time.Minute
	refreshTTL = 30 * 24 * time.Hour
)

// authEnvelope mirrors the hosted service's session response.
type authEnvelope struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         *domain.User `json:"user,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// messageEnvelope is the generic response wrapper.
type messageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageEnvelope{Error: msg})
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	DeviceID string `json:"device_id"`
}

type verifyRequest struct {
	Type  string `json:"type" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,len=6,numeric"`
}

type resendRequest struct {
	Type  string `json:"type" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("grant_type") {
	case "password":
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		u, err := s.store.GetByEmail(req.Email)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.respondSession(w, u)
	case "refresh_token":
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refresh_token required")
			return
		}
		u, err := s.store.RotateSession(req.RefreshToken)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		s.respondSession(w, u)
	default:
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	u, err := s.store.CreateUser(req.Email, string(hash))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.sendCode(u); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// No tokens until the email is confirmed.
	writeJSON(w, http.StatusOK, authEnvelope{User: u.asDomain(), Message: "verification code sent"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.store.GetByEmail(req.Email)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.store.ConsumeVerification(u.ID, req.Token); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.store.ConfirmEmail(u.ID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.respondSession(w, u)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.store.GetByEmail(req.Email)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !s.store.ResendAllowed(u.ID, s.resendCooldown) {
		writeError(w, http.StatusTooManyRequests, "resend cooldown active")
		return
	}
	if err := s.sendCode(u); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messageEnvelope{Message: "verification code sent"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.store.RevokeSessionsByUser(claims.Subject)
	writeJSON(w, http.StatusOK, messageEnvelope{Message: "signed out"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	// Read the store, not the token: confirmation state must be fresh.
	u, err := s.store.Get(claims.Subject)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u.asDomain())
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID := chi.URLParam(r, "id")
	if claims.Subject != userID {
		writeError(w, http.StatusForbidden, "cannot delete another user's profile")
		return
	}
	if err := s.store.DeleteProfile(userID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messageEnvelope{Message: "profile deleted"})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUser(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messageEnvelope{Message: "user deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageEnvelope{Message: "ok"})
}

// sendCode issues a fresh 6-digit code and mails it.
func (s *Server) sendCode(u *User) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return err
	}
	otp := fmt.Sprintf("%06d", n.Int64())
	s.store.PutVerification(u.ID, otp, codeTTL)
	return s.mailer.SendEmail(u.Email, "Confirm your email", "Your verification code: "+otp)
}

func (s *Server) respondSession(w http.ResponseWriter, u *User) {
	bearer, err := s.tokens.Sign(u.ID, u.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refreshToken, err := newRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.store.PutSession(u.ID, refreshToken, refreshTTL)
	writeJSON(w, http.StatusOK, authEnvelope{
		AccessToken:  bearer,
		RefreshToken: refreshToken,
		User:         u.asDomain(),
	})
}

// newRefreshToken generates a cryptographically random 64-character hex token.
func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type contextKey string

const claimsKey contextKey = "claims"

// auth validates the Bearer JWT and injects claims into context.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}
		claims, err := s.tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// requireAPIKey admits requests carrying either the public or the elevated
// key in the apikey header.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if key == "" || (key != s.anonKey && key != s.roleKey) {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRoleKey admits only the elevated service-role key.
func (s *Server) requireRoleKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.roleKey == "" || r.Header.Get("apikey") != s.roleKey {
			writeError(w, http.StatusForbidden, "service role key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
