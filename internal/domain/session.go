package domain

import "time"

// User is the identity the hosted service reports for the signed-in account.
// EmailConfirmedAt is nil until the user completes email verification; the
// route guard treats a missing timestamp the same as an unconfirmed one.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

// Session is the service-issued proof of authentication held client-side.
// Tokens are opaque to the flow layer; only User and ExpiresAt are read.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Confirmed reports whether the session belongs to a user whose email has
// been verified. Safe on nil sessions and sessions without a user.
func (s *Session) Confirmed() bool {
	if s == nil || s.User == nil {
		return false
	}
	return s.User.EmailConfirmedAt != nil
}
