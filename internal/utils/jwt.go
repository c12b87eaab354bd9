package utils // package utils provides helpers for token signing and password hashing

import (
	"crypto/sha256" // SHA-256 hashing for the revocation list
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a bearer token is rejected: bad
// signature, wrong algorithm, malformed claims or expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of an access token: the principal id and role plus
// the registered exp/iat claims.
type Claims struct {
	ID   uint64 `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// IssueToken signs an HS256 token for the principal. The output depends only
// on the inputs, so a fixed secret and clock yield the same token.
func IssueToken(secret string, id uint64, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
	now = now.UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		ID:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies raw against secret at the given instant and returns
// its claims.
func ParseToken(secret, raw string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid || claims.ID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the hex SHA-256 of a raw token. Revoked tokens are
// stored by hash only.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
