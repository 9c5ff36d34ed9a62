// Package session carries the authenticated identity that coordinators are
// constructed with. The token is issued and stored elsewhere; this package
// only reads it.
package session

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Identity is the signed-in user as known to the backend.
type Identity struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress"`
}

// Session pairs an identity with its bearer token. The zero value is an
// anonymous session.
type Session struct {
	Identity *Identity
	Token    string
}

// New returns an authenticated session.
func New(id Identity, token string) Session {
	return Session{Identity: &id, Token: token}
}

// Authenticated reports whether requests should carry a bearer credential.
func (s Session) Authenticated() bool { return s.Identity != nil && s.Token != "" }

// Bearer returns the token when authenticated, or "".
func (s Session) Bearer() string {
	if !s.Authenticated() {
		return ""
	}
	return s.Token
}

// FromToken builds a session from a JWT issued by the backend. The signature
// is not verified here; the backend verifies it on every request.
// An empty token yields an anonymous session.
func FromToken(token string) (Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Session{}, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, errors.Wrap(err, "parse session token")
	}

	id := Identity{
		ID:            firstClaim(claims, "id", "userId", "sub"),
		Name:          firstClaim(claims, "name"),
		Email:         firstClaim(claims, "email"),
		WalletAddress: firstClaim(claims, "walletAddress"),
	}
	if id.ID == "" {
		return Session{}, errors.New("session token has no user id claim")
	}
	return New(id, token), nil
}

func firstClaim(c jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := c[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
