// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

// Package auth provides credential and session primitives for didpoop.
package auth

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters (OWASP-recommended).
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // output length in bytes

	// SaltLen is the fixed salt length in bytes. One salt per account.
	SaltLen = 16
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// NewSalt generates a cryptographically random salt. Failure to draw
// entropy is fatal to the calling sign-up: no credential can be
// produced without it.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("AUTH_SALT_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return salt, nil
}

// DerivePasswordHash computes the argon2id digest of password under the
// given salt. The salt is supplied by the caller so that the same
// password and salt always produce the same digest.
func DerivePasswordHash(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// VerifyPassword recomputes the digest and compares it against expected
// in constant time with respect to content.
func VerifyPassword(password, salt, expected []byte) bool {
	computed := DerivePasswordHash(password, salt)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
