// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package loader

import (
	"context"

	"github.com/didpoop/didpoop/internal/model"
)

// Storage is the batched-fetch surface the relation loaders dispatch
// to. internal/postgres implements it against the shared pool.
type Storage interface {
	// UsersByIDs returns non-deleted users whose id is in the set.
	UsersByIDs(ctx context.Context, ids []int64) ([]*model.User, error)

	// CreatureRelationsByUserIDs returns creature-access rows joined
	// with their creature for access.user_id in the set; both rows
	// non-deleted.
	CreatureRelationsByUserIDs(ctx context.Context, userIDs []int64) ([]*model.CreatureRelation, error)

	// CreatureRelationsByPairs returns joined rows where creature_id is
	// in the first set OR user_id is in the second, both rows
	// non-deleted. The OR deliberately over-fetches; callers map back
	// by exact pair.
	CreatureRelationsByPairs(ctx context.Context, creatureIDs, userIDs []int64) ([]*model.CreatureRelation, error)

	// PoopsByCreatureIDs returns non-deleted poops for creatures in the
	// set, ordered by creation time descending.
	PoopsByCreatureIDs(ctx context.Context, creatureIDs []int64) ([]*model.Poop, error)
}

// CreatureUser is the composite key for a single access relation.
// Structural equality on the pair is what maps broad-fetch rows back to
// callers.
type CreatureUser struct {
	CreatureID int64
	UserID     int64
}

// Loaders bundles the relation loaders for one request. Built fresh by
// the request-context constructor and discarded with the request.
type Loaders struct {
	UserByID         *Loader[int64, *model.User]
	CreaturesForUser *Loader[int64, []*model.CreatureRelation]
	AccessForPair    *Loader[CreatureUser, *model.CreatureRelation]
	PoopsForCreature *Loader[int64, []*model.Poop]
}

// NewLoaders builds the per-request loader bundle over st.
func NewLoaders(st Storage, opts ...Option) *Loaders {
	return &Loaders{
		UserByID:         New(userByID(st), opts...),
		CreaturesForUser: New(creaturesForUser(st), opts...),
		AccessForPair:    New(accessForPair(st), opts...),
		PoopsForCreature: New(poopsForCreature(st), opts...),
	}
}

// NewLoadersObserved builds the bundle with a per-loader batch
// observer; observe is called once per loader with its name and returns
// the callback invoked on every dispatched batch.
func NewLoadersObserved(st Storage, observe func(name string) func(batchSize int), opts ...Option) *Loaders {
	observed := func(name string) []Option {
		return append(append([]Option(nil), opts...), WithObserver(observe(name)))
	}
	return &Loaders{
		UserByID:         New(userByID(st), observed("user_by_id")...),
		CreaturesForUser: New(creaturesForUser(st), observed("creatures_for_user")...),
		AccessForPair:    New(accessForPair(st), observed("access_for_pair")...),
		PoopsForCreature: New(poopsForCreature(st), observed("poops_for_creature")...),
	}
}

func userByID(st Storage) Fetch[int64, *model.User] {
	return func(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
		users, err := st.UsersByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make(map[int64]*model.User, len(users))
		for _, u := range users {
			out[u.ID] = u
		}
		return out, nil
	}
}

func creaturesForUser(st Storage) Fetch[int64, []*model.CreatureRelation] {
	return func(ctx context.Context, userIDs []int64) (map[int64][]*model.CreatureRelation, error) {
		rels, err := st.CreatureRelationsByUserIDs(ctx, userIDs)
		if err != nil {
			return nil, err
		}
		out := make(map[int64][]*model.CreatureRelation)
		for _, r := range rels {
			out[r.UserID] = append(out[r.UserID], r)
		}
		return out, nil
	}
}

// accessForPair fetches with an OR across the two independently-batched
// id sets, then keeps only rows whose exact (creature, user) pair was
// asked for. Rows satisfying one side of the OR but not a requested
// pair never enter the result map. Do not replace the broad fetch with
// a pair intersection: the pair sets are unzipped, so an intersection
// changes which rows come back.
func accessForPair(st Storage) Fetch[CreatureUser, *model.CreatureRelation] {
	return func(ctx context.Context, keys []CreatureUser) (map[CreatureUser]*model.CreatureRelation, error) {
		creatureIDs := make([]int64, 0, len(keys))
		userIDs := make([]int64, 0, len(keys))
		for _, k := range keys {
			creatureIDs = append(creatureIDs, k.CreatureID)
			userIDs = append(userIDs, k.UserID)
		}

		rels, err := st.CreatureRelationsByPairs(ctx, creatureIDs, userIDs)
		if err != nil {
			return nil, err
		}

		requested := make(map[CreatureUser]struct{}, len(keys))
		for _, k := range keys {
			requested[k] = struct{}{}
		}

		out := make(map[CreatureUser]*model.CreatureRelation, len(keys))
		for _, r := range rels {
			pair := CreatureUser{CreatureID: r.ID, UserID: r.UserID}
			if _, ok := requested[pair]; ok {
				out[pair] = r
			}
		}
		return out, nil
	}
}

func poopsForCreature(st Storage) Fetch[int64, []*model.Poop] {
	return func(ctx context.Context, creatureIDs []int64) (map[int64][]*model.Poop, error) {
		poops, err := st.PoopsByCreatureIDs(ctx, creatureIDs)
		if err != nil {
			return nil, err
		}
		out := make(map[int64][]*model.Poop)
		for _, p := range poops {
			// Storage returns rows ordered by creation time descending;
			// appending preserves that per creature.
			out[p.CreatureID] = append(out[p.CreatureID], p)
		}
		return out, nil
	}
}
