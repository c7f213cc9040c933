package stub

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields for emulator access tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenProvider signs and verifies HS256 JWTs. The real service uses an
// asymmetric scheme; a shared local secret keeps the emulator dependency
// free of key files.
type TokenProvider struct {
	secret []byte
	expiry time.Duration
}

// NewTokenProvider builds a provider with the given shared secret.
func NewTokenProvider(secret string, expiry time.Duration) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), expiry: expiry}
}

// Sign mints an access token for the user.
func (p *TokenProvider) Sign(userID, email string) (string, error) {
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify validates an access token and returns its claims.
func (p *TokenProvider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
