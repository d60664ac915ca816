// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/model"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL.
// Token rows are append-only; logout leaves them in place until natural
// expiry.
type TokenRepository struct {
	db DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new token row keyed by its signature hash.
func (r *TokenRepository) Create(ctx context.Context, userID int64, hash string, expires time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO poop.auth_tokens (user_id, hash, expires)
		VALUES ($1, $2, $3)
	`, userID, hash, expires)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert auth token").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// GetUserByTokenHash joins a live token row to its live owning user in
// one round trip. Expiry is evaluated database-side so every node
// agrees on the clock.
func (r *TokenRepository) GetUserByTokenHash(ctx context.Context, hash string) (*model.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.pw_salt, u.pw_hash, u.deleted, u.created, u.modified
		FROM poop.users u
		INNER JOIN poop.auth_tokens at ON u.id = at.user_id
		WHERE at.hash = $1
			AND at.deleted IS FALSE
			AND at.expires > NOW()
			AND u.deleted IS FALSE
	`, hash)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_USER_FAILED").
			With("operation", "get user by token hash").
			Wrap(err)
	}
	return user, nil
}

// Compile-time interface check.
var _ auth.TokenRepository = (*TokenRepository)(nil)
