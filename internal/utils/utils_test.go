package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var issuedAt = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func TestIssueAndParseToken(t *testing.T) {
	tok, err := IssueToken("secret", 42, "admin", 30*24*time.Hour, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(30*24*time.Hour), tok.Exp)

	claims, err := ParseToken("secret", tok.Token, issuedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.ID)
	assert.Equal(t, "admin", claims.Role)
}

func TestIssueTokenIsDeterministic(t *testing.T) {
	a, err := IssueToken("secret", 7, "user", time.Hour, issuedAt)
	require.NoError(t, err)
	b, err := IssueToken("secret", 7, "user", time.Hour, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, a.Token, b.Token)
}

func TestParseTokenRejects(t *testing.T) {
	tok, err := IssueToken("secret", 1, "user", time.Hour, issuedAt)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", tok.Token, issuedAt)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("secret", tok.Token, issuedAt.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("secret", "not-a-jwt", issuedAt)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: 1, Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour))}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken("secret", none, issuedAt)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("Abcdef1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "Abcdef1"))
	assert.False(t, VerifyPassword(hash, "abcdef1"))
}

func TestHashPasswordFallsBackOnBadCost(t *testing.T) {
	hash, err := HashPassword("secret1", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	BurnPasswordCheck("secret1")
}
