// Package stub is a local, in-memory emulator of the hosted service's REST
// surface. It exists so the client flows can be developed and exercised
// without credentials for the real service; state lives for the process
// lifetime only.
package stub

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/pkg/id"
)

// User is an auth identity held by the emulator.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
}

// asDomain converts to the wire-level user shape.
func (u *User) asDomain() *domain.User {
	return &domain.User{ID: u.ID, Email: u.Email, EmailConfirmedAt: u.EmailConfirmedAt}
}

type verification struct {
	code       string
	expiresAt  time.Time
	lastSentAt time.Time
}

type session struct {
	refreshToken string
	userID       string
	expiresAt    time.Time
	revoked      bool
}

// Store holds all emulator state behind one mutex. Email keys are
// lowercased so lookups are case-insensitive like the real service.
type Store struct {
	mu            sync.Mutex
	usersByID     map[string]*User
	idByEmail     map[string]string
	verifications map[string]*verification
	sessions      map[string]*session
	profiles      map[string]bool

	now func() time.Time
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		usersByID:     make(map[string]*User),
		idByEmail:     make(map[string]string),
		verifications: make(map[string]*verification),
		sessions:      make(map[string]*session),
		profiles:      make(map[string]bool),
		now:           time.Now,
	}
}

// CreateUser registers a new identity and its profile row.
func (s *Store) CreateUser(email, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := s.idByEmail[key]; ok {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrBadRequest)
	}
	u := &User{
		ID:           id.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.usersByID[u.ID] = u
	s.idByEmail[key] = u.ID
	s.profiles[u.ID] = true
	return u, nil
}

// GetByEmail looks an identity up by address.
func (s *Store) GetByEmail(email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.idByEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return s.usersByID[uid], nil
}

// Get looks an identity up by id.
func (s *Store) Get(userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return u, nil
}

// ConfirmEmail stamps the confirmation time on the identity.
func (s *Store) ConfirmEmail(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	t := s.now().UTC()
	u.EmailConfirmedAt = &t
	return nil
}

// PutVerification stores a fresh code for the user, replacing any previous
// one, and records the send time for the resend cooldown.
func (s *Store) PutVerification(userID, code string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.verifications[userID] = &verification{code: code, expiresAt: now.Add(ttl), lastSentAt: now}
}

// ResendAllowed reports whether the per-user cooldown window has elapsed.
// Users with no outstanding code can always be sent one.
func (s *Store) ResendAllowed(userID string, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[userID]
	if !ok {
		return true
	}
	return s.now().Sub(v.lastSentAt) >= cooldown
}

// ConsumeVerification checks the code and removes it on success.
func (s *Store) ConsumeVerification(userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[userID]
	if !ok {
		return fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	if v.code != code {
		return fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	if s.now().After(v.expiresAt) {
		return fmt.Errorf("code expired: %w", domain.ErrUnauthorized)
	}
	delete(s.verifications, userID)
	return nil
}

// PutSession records a refresh token for the user.
func (s *Store) PutSession(userID, refreshToken string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[refreshToken] = &session{
		refreshToken: refreshToken,
		userID:       userID,
		expiresAt:    s.now().Add(ttl),
	}
}

// RotateSession revokes the given refresh token and returns its user, or an
// error if the token is unknown, revoked or expired.
func (s *Store) RotateSession(refreshToken string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[refreshToken]
	if !ok || sess.revoked || s.now().After(sess.expiresAt) {
		return nil, fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}
	sess.revoked = true
	u, ok := s.usersByID[sess.userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return u, nil
}

// RevokeSessionsByUser revokes every refresh token held for the user.
func (s *Store) RevokeSessionsByUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.userID == userID {
			sess.revoked = true
		}
	}
}

// HasProfile reports whether the user's profile row still exists.
func (s *Store) HasProfile(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[userID]
}

// DeleteProfile removes the profile row. Dependent records would cascade in
// the real service; the emulator has none.
func (s *Store) DeleteProfile(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.profiles[userID] {
		return fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	delete(s.profiles, userID)
	return nil
}

// DeleteUser removes the auth identity, its sessions and any outstanding
// verification. The profile row is intentionally left alone: deleting it is
// a separate call, exactly like the real service.
func (s *Store) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	delete(s.usersByID, userID)
	delete(s.idByEmail, strings.ToLower(u.Email))
	delete(s.verifications, userID)
	for token, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}
