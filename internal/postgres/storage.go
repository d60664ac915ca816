// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package postgres

import (
	"context"

	"github.com/didpoop/didpoop/internal/loader"
	"github.com/didpoop/didpoop/internal/model"
)

// Storage bundles the repositories and presents the batched-fetch
// surface the relation loaders dispatch to. One Storage is built per
// process over the shared pool; the loaders built over it are per
// request.
type Storage struct {
	Users     *UserRepository
	Tokens    *TokenRepository
	Creatures *CreatureRepository
	Poops     *PoopRepository
}

// NewStorage creates the repository bundle over db.
func NewStorage(db DB) *Storage {
	return &Storage{
		Users:     NewUserRepository(db),
		Tokens:    NewTokenRepository(db),
		Creatures: NewCreatureRepository(db),
		Poops:     NewPoopRepository(db),
	}
}

// UsersByIDs implements loader.Storage.
func (s *Storage) UsersByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	return s.Users.GetByIDs(ctx, ids)
}

// CreatureRelationsByUserIDs implements loader.Storage.
func (s *Storage) CreatureRelationsByUserIDs(ctx context.Context, userIDs []int64) ([]*model.CreatureRelation, error) {
	return s.Creatures.RelationsByUserIDs(ctx, userIDs)
}

// CreatureRelationsByPairs implements loader.Storage.
func (s *Storage) CreatureRelationsByPairs(ctx context.Context, creatureIDs, userIDs []int64) ([]*model.CreatureRelation, error) {
	return s.Creatures.RelationsByPairs(ctx, creatureIDs, userIDs)
}

// PoopsByCreatureIDs implements loader.Storage.
func (s *Storage) PoopsByCreatureIDs(ctx context.Context, creatureIDs []int64) ([]*model.Poop, error) {
	return s.Poops.ByCreatureIDs(ctx, creatureIDs)
}

// CreateCreature implements graph.Storage.
func (s *Storage) CreateCreature(ctx context.Context, creatorID int64, name string) (*model.CreatureRelation, error) {
	return s.Creatures.CreateWithCreatorGrant(ctx, creatorID, name)
}

// ShareCreature implements graph.Storage.
func (s *Storage) ShareCreature(ctx context.Context, creatureID, userID, grantedBy int64) (*model.CreatureRelation, error) {
	return s.Creatures.Share(ctx, creatureID, userID, grantedBy)
}

// SoftDeleteCreature implements graph.Storage.
func (s *Storage) SoftDeleteCreature(ctx context.Context, creatureID int64) error {
	return s.Creatures.SoftDelete(ctx, creatureID)
}

// CreatePoop implements graph.Storage.
func (s *Storage) CreatePoop(ctx context.Context, creatureID, creatorID int64) (*model.Poop, error) {
	return s.Poops.Create(ctx, creatureID, creatorID)
}

// RecentPoopsForUser implements graph.Storage.
func (s *Storage) RecentPoopsForUser(ctx context.Context, userID int64, limit int) ([]*model.Poop, error) {
	return s.Poops.RecentForUser(ctx, userID, limit)
}

// UserByEmail implements graph.Storage.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.Users.GetByEmail(ctx, email)
}

// Compile-time interface check.
var _ loader.Storage = (*Storage)(nil)
