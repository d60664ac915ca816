// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

// Package model defines the didpoop domain types. All rows are
// soft-deleted: a Deleted flag marks a row inactive and every query
// filters inactive rows explicitly.
package model

import "time"

// User is a registered account. PasswordSalt and PasswordHash are
// hex-encoded; the raw password is never stored.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordSalt string
	PasswordHash string
	Deleted      bool
	Created      time.Time
	Modified     time.Time
}

// SimpleUser is the public projection of a User exposed through
// relation fields. It carries no credential material.
type SimpleUser struct {
	ID   int64
	Name string
}

// Simple returns the public projection of the user.
func (u *User) Simple() SimpleUser {
	return SimpleUser{ID: u.ID, Name: u.Name}
}

// Access kinds for creature grants.
const (
	AccessKindCreator = "creator"
	AccessKindShared  = "shared"
)

// CreatureRelation is a creature joined with one creature_access row:
// the creature as seen by one user. The same creature appears as a
// distinct relation per user holding an active grant.
type CreatureRelation struct {
	ID        int64 // creature id
	UserID    int64 // subject of the access grant
	Kind      string
	CreatorID int64 // creator of the creature
	Name      string
	Deleted   bool
	Created   time.Time
	Modified  time.Time
}

// Poop is a single logged event on a creature. Append-only.
type Poop struct {
	ID         int64
	CreatorID  int64
	CreatureID int64
	Deleted    bool
	Created    time.Time
	Modified   time.Time
}

// AuthToken is one active session. The stored Hash is an HMAC of the
// raw token; the raw token itself never touches the database. Rows are
// never mutated and become inert after expiry.
type AuthToken struct {
	ID      int64
	UserID  int64
	Hash    string
	Expires time.Time
	Deleted bool
	Created time.Time
}

// Expired reports whether the token is past its expiry at time at.
func (t *AuthToken) Expired(at time.Time) bool {
	return at.After(t.Expires)
}
