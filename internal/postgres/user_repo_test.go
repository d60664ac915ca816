// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didpoop/didpoop/internal/auth"
)

var userCols = []string{"id", "email", "name", "pw_salt", "pw_hash", "deleted", "created", "modified"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	now := time.Now()

	t.Run("inserts and returns the row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO poop\.users`).
			WithArgs("a@example.com", "A", "aa11", "bb22").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(int64(1), "a@example.com", "A", "aa11", "bb22", false, now, now))

		repo := NewUserRepository(mock)
		user, err := repo.Create(context.Background(), "a@example.com", "A", "aa11", "bb22")
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, "a@example.com", user.Email)
		assert.Equal(t, "aa11", user.PasswordSalt)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("duplicate email maps to BAD_REQUEST", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO poop\.users`).
			WithArgs("a@example.com", "A", "aa11", "bb22").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		repo := NewUserRepository(mock)
		_, err := repo.Create(context.Background(), "a@example.com", "A", "aa11", "bb22")
		require.Error(t, err)

		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Equal(t, "BAD_REQUEST", oopsErr.Code())

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		now := time.Now()
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM poop\.users`).
			WithArgs("a@example.com").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(int64(7), "a@example.com", "A", "aa11", "bb22", false, now, now))

		repo := NewUserRepository(mock)
		user, err := repo.GetByEmail(context.Background(), "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
	})

	t.Run("miss surfaces the not-found sentinel", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM poop\.users`).
			WithArgs("missing@example.com").
			WillReturnError(pgx.ErrNoRows)

		repo := NewUserRepository(mock)
		_, err := repo.GetByEmail(context.Background(), "missing@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("storage failure is not a not-found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM poop\.users`).
			WithArgs("a@example.com").
			WillReturnError(errors.New("connection refused"))

		repo := NewUserRepository(mock)
		_, err := repo.GetByEmail(context.Background(), "a@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_GetByIDs(t *testing.T) {
	now := time.Now()
	mock := newMock(t)
	mock.ExpectQuery(`SELECT .+ FROM poop\.users`).
		WithArgs([]int64{1, 2, 9}).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(1), "a@example.com", "A", "s", "h", false, now, now).
			AddRow(int64(2), "b@example.com", "B", "s", "h", false, now, now))

	repo := NewUserRepository(mock)
	users, err := repo.GetByIDs(context.Background(), []int64{1, 2, 9})
	require.NoError(t, err)
	require.Len(t, users, 2, "ids with no live row are simply absent")
	assert.Equal(t, "A", users[0].Name)
	assert.Equal(t, "B", users[1].Name)

	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}
