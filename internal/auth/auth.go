// Package auth issues and verifies the signed session tokens carried in
// cookies. Tokens are HS256 JWTs with a fixed 24 hour lifetime.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tehshkola/apiserver/types"
)

// TokenTTL is the fixed lifetime of every issued token.
const TokenTTL = 24 * time.Hour

// Claims is the uniform identity assertion embedded in every session token.
// Commission sessions use the same shape with Role set to commission and no
// user identity; the two token domains stay separate at the cookie level.
type Claims struct {
	UserID   int        `json:"uid,omitempty"`
	Name     string     `json:"name,omitempty"`
	Phone    string     `json:"phone,omitempty"`
	Verified bool       `json:"verified,omitempty"`
	Role     types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Applicant reports whether the claims identify an applicant or parent user.
func (c *Claims) Applicant() bool {
	return c.UserID > 0 && (c.Role == types.RoleApplicant || c.Role == types.RoleParent)
}

// Commission reports whether the claims grant administrative access.
func (c *Claims) Commission() bool {
	return c.Role == types.RoleCommission
}

// Tokens signs and verifies session tokens with a process-wide secret.
type Tokens struct {
	secret []byte
}

// New constructs a token service. Secret length policy is enforced by
// config loading, not here.
func New(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// Issue signs claims into a compact token, stamping issued-at and the
// fixed expiration.
func (t *Tokens) Issue(claims Claims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(TokenTTL))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(t.secret)
}

// Verify validates the signature and expiration of a token and returns its
// claims. It returns nil on any failure: tampered signature, expired,
// malformed, or wrong signing method. It never panics and never reports why.
func (t *Tokens) Verify(tokenString string) *Claims {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	return claims
}
