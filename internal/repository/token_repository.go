package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo tracks access tokens revoked by logout. Only the SHA-256 hash of
// a token is stored, and a row is kept only until the token would have
// expired anyway.
type TokenRepo struct{ db *sql.DB }

// NewTokenRepo creates a TokenRepo on db.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// Revoke records tokenHash as unusable until exp and drops rows whose
// tokens have already expired.
func (r *TokenRepo) Revoke(ctx context.Context, userID uint64, tokenHash string, exp, now time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO revoked_tokens (token_hash, user_id, expires_at, revoked_at) VALUES (?,?,?,?)",
		tokenHash, userID, exp.UTC(), now.UTC()); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?", now.UTC())
	return err
}

// IsRevoked reports whether tokenHash was revoked.
func (r *TokenRepo) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM revoked_tokens WHERE token_hash=?", tokenHash).Scan(&n)
	return n > 0, err
}
