// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/samber/oops"
)

// Session token sizes.
const (
	// TokenBytes is the entropy of a raw session token. 32 bytes = 64
	// hex chars.
	TokenBytes = 32

	// LogoutMarkerPrefix distinguishes the throwaway value written on
	// logout from any token this server ever issued.
	LogoutMarkerPrefix = "xx"

	// logoutMarkerBytes keeps the marker the same visible length as a
	// real token: 2 prefix chars + 62 hex chars.
	logoutMarkerBytes = 31
)

// GenerateToken creates a raw opaque session token: hex-encoded random
// bytes with no decodable structure. Validity is established only by
// server-side lookup of its signature.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// SignToken computes the keyed HMAC-SHA256 signature of a raw token.
// The signature, not the raw token, is what gets stored: a database
// compromise yields no value usable for lookup without the signing key.
func SignToken(rawToken string, signingKey []byte) string {
	mac := hmac.New(sha256.New, signingKey)
	mac.Write([]byte(rawToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// LogoutMarker produces the replacement cookie value written on logout.
// It is a fresh random value unrelated to any issued token, marked with
// a fixed two-character prefix. If entropy is unavailable the marker
// degrades to zeros; it only needs to be unusable, not unguessable.
func LogoutMarker() string {
	b := make([]byte, logoutMarkerBytes)
	if _, err := rand.Read(b); err != nil {
		b = make([]byte, logoutMarkerBytes)
	}
	return LogoutMarkerPrefix + hex.EncodeToString(b)
}
