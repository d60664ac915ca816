// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/model"
)

// UserRepository manages user persistence.
type UserRepository interface {
	// Create inserts a new user and returns the stored row.
	// A duplicate email surfaces as a BAD_REQUEST coded error.
	Create(ctx context.Context, email, name, saltHex, hashHex string) (*model.User, error)

	// GetByEmail retrieves a non-deleted user by email.
	// Returns ErrNotFound if no such user exists.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// GetByIDs retrieves non-deleted users for the given id set.
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
}

// TokenRepository manages session token persistence. Token rows are
// append-only: created on login/signup and never mutated or revoked.
type TokenRepository interface {
	// Create stores a new token row keyed by its signature hash.
	Create(ctx context.Context, userID int64, hash string, expires time.Time) error

	// GetUserByTokenHash joins a non-deleted, non-expired token row to
	// its non-deleted owning user. Returns ErrNotFound on any miss.
	GetUserByTokenHash(ctx context.Context, hash string) (*model.User, error)
}

// Service issues and validates sessions and manages credentials.
type Service struct {
	users      UserRepository
	tokens     TokenRepository
	signingKey []byte
	ttl        time.Duration
	cookie     CookieSettings
	now        func() time.Time
}

// NewService creates a Service. The signing key is process-wide and
// shared by every issued token signature.
func NewService(users UserRepository, tokens TokenRepository, signingKey []byte, ttl time.Duration, cookie CookieSettings) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		signingKey: signingKey,
		ttl:        ttl,
		cookie:     cookie,
		now:        time.Now,
	}
}

// dummySalt and dummyHash are verified against when a login targets an
// unknown email, so the response time does not reveal whether the
// account exists. The values can never match any real password.
var (
	dummySalt = make([]byte, SaltLen)
	dummyHash = make([]byte, argon2KeyLen)
)

// errBadCredentials collapses unknown-email and wrong-password into one
// deliberately vague error so the two cases are indistinguishable.
func errBadCredentials() error {
	return oops.Code("BAD_REQUEST").Errorf("bad request")
}

// SignUp creates a credential and user row, then issues a session.
// Returns the user and the Set-Cookie header value to attach.
func (s *Service) SignUp(ctx context.Context, email, name, password string) (*model.User, string, error) {
	if password == "" {
		return nil, "", oops.Code("BAD_REQUEST").Wrap(ErrEmptyPassword)
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, "", err
	}
	hash := DerivePasswordHash([]byte(password), salt)

	user, err := s.users.Create(ctx, email, name, hex.EncodeToString(salt), hex.EncodeToString(hash))
	if err != nil {
		return nil, "", err
	}

	cookie, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, cookie, nil
}

// Login verifies a credential and issues a session. Unknown email and
// wrong password produce the identical error kind; a dummy derivation
// runs on the miss path to keep timing flat.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			VerifyPassword([]byte(password), dummySalt, dummyHash)
			return nil, "", errBadCredentials()
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	salt, err := hex.DecodeString(user.PasswordSalt)
	if err != nil {
		return nil, "", oops.Code("DECODE_FAILED").
			With("operation", "decode stored salt").
			Wrap(err)
	}
	expected, err := hex.DecodeString(user.PasswordHash)
	if err != nil {
		return nil, "", oops.Code("DECODE_FAILED").
			With("operation", "decode stored hash").
			Wrap(err)
	}

	if !VerifyPassword([]byte(password), salt, expected) {
		return nil, "", errBadCredentials()
	}

	cookie, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, cookie, nil
}

// Logout returns the Set-Cookie header that overwrites the client's
// session value with an unusable marker. The server-side token row is
// left untouched and expires naturally.
func (s *Service) Logout() string {
	return s.cookie.FormatSetCookie(LogoutMarker())
}

// Validate resolves a presented raw token to its owning user. Any miss
// (unknown signature, expired token, deleted user) degrades to an
// anonymous (nil, nil) result, never an error the client sees.
func (s *Service) Validate(ctx context.Context, rawToken string) (*model.User, error) {
	if rawToken == "" {
		return nil, nil
	}
	hash := SignToken(rawToken, s.signingKey)
	user, err := s.tokens.GetUserByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "get user by token hash").
			Wrap(err)
	}
	return user, nil
}

// issueSession generates a raw token, persists its signature with the
// configured TTL, and renders the Set-Cookie header carrying the raw
// token.
func (s *Service) issueSession(ctx context.Context, user *model.User) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	hash := SignToken(token, s.signingKey)
	expires := s.now().Add(s.ttl)

	if err := s.tokens.Create(ctx, user.ID, hash, expires); err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist auth token").
			With("user_id", user.ID).
			Wrap(err)
	}
	return s.cookie.FormatSetCookie(token), nil
}
