package session_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"jobmate/marketplace-client/internal/session"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestFromToken(t *testing.T) {
	t.Run(`claims become the identity`, func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"id": "u1", "name": "Ada", "walletAddress": "0xabc"})
		s, err := session.FromToken("Bearer " + tok)
		require.NoError(t, err)
		require.True(t, s.Authenticated())
		require.Equal(t, "u1", s.Identity.ID)
		require.Equal(t, "Ada", s.Identity.Name)
		require.Equal(t, "0xabc", s.Identity.WalletAddress)
		require.Equal(t, tok, s.Bearer())
	})

	t.Run(`sub is accepted as id`, func(t *testing.T) {
		s, err := session.FromToken(sign(t, jwt.MapClaims{"sub": "u2"}))
		require.NoError(t, err)
		require.Equal(t, "u2", s.Identity.ID)
	})

	t.Run(`empty token is anonymous`, func(t *testing.T) {
		s, err := session.FromToken("  ")
		require.NoError(t, err)
		require.False(t, s.Authenticated())
		require.Empty(t, s.Bearer())
	})

	t.Run(`garbage is rejected`, func(t *testing.T) {
		_, err := session.FromToken("not-a-jwt")
		require.Error(t, err)
	})

	t.Run(`token without id is rejected`, func(t *testing.T) {
		_, err := session.FromToken(sign(t, jwt.MapClaims{"name": "x"}))
		require.Error(t, err)
	})
}

func TestAnonymousSessionHasNoBearer(t *testing.T) {
	var s session.Session
	require.False(t, s.Authenticated())
	require.Empty(t, s.Bearer())

	s = session.Session{Token: "orphan"}
	require.False(t, s.Authenticated(), "token without identity is not sent")
}
