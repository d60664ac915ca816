// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/model"
)

// userColumns is the scan order shared by every user query.
const userColumns = "id, email, name, pw_salt, pw_hash, deleted, created, modified"

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row and returns it. A duplicate email maps
// to a BAD_REQUEST coded error so the caller surfaces it as
// client-rejected input rather than a storage failure.
func (r *UserRepository) Create(ctx context.Context, email, name, saltHex, hashHex string) (*model.User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO poop.users (email, name, pw_salt, pw_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		email, name, saltHex, hashHex,
	)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("BAD_REQUEST").
				With("operation", "insert user").
				Errorf("email already registered")
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a non-deleted user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM poop.users
		WHERE email = $1 AND deleted IS FALSE
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// GetByIDs retrieves non-deleted users for the given id set. Missing
// ids are simply absent from the result.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM poop.users
		WHERE id = ANY($1) AND deleted IS FALSE
	`, ids)
	if err != nil {
		return nil, oops.Code("USER_GET_BY_IDS_FAILED").
			With("operation", "get users by ids").
			Wrap(err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_ROWS_ERROR").
			With("operation", "iterate user rows").
			Wrap(err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordSalt, &u.PasswordHash, &u.Deleted, &u.Created, &u.Modified)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return &u, nil
}

func scanUserRow(rows pgx.Rows) (*model.User, error) {
	var u model.User
	err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordSalt, &u.PasswordHash, &u.Deleted, &u.Created, &u.Modified)
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user row").
			Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
