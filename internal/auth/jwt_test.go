package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("super-secret", time.Hour)

	tok, err := issuer.GenerateToken(42)
	require.NoError(t, err)

	id, err := issuer.UserID(tok)
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)
}

func TestUserID_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("secret", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }

	tok, err := issuer.GenerateToken(1)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.UserID(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestUserID_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenIssuer("right-secret", time.Hour).GenerateToken(2)
	require.NoError(t, err)

	_, err = NewTokenIssuer("wrong-secret", time.Hour).UserID(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserID_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer("k", time.Hour).UserID("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
