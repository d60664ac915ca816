// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package loader_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didpoop/didpoop/internal/loader"
	"github.com/didpoop/didpoop/internal/model"
)

// fakeStorage serves canned rows and counts batched calls per method.
type fakeStorage struct {
	users     []*model.User
	relations []*model.CreatureRelation
	poops     []*model.Poop

	userCalls  atomic.Int64
	relCalls   atomic.Int64
	pairCalls  atomic.Int64
	poopCalls  atomic.Int64
	lastUserID []int64
	mu         sync.Mutex
}

func (s *fakeStorage) UsersByIDs(_ context.Context, ids []int64) ([]*model.User, error) {
	s.userCalls.Add(1)
	s.mu.Lock()
	s.lastUserID = append([]int64(nil), ids...)
	s.mu.Unlock()
	var out []*model.User
	for _, u := range s.users {
		for _, id := range ids {
			if u.ID == id && !u.Deleted {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (s *fakeStorage) CreatureRelationsByUserIDs(_ context.Context, userIDs []int64) ([]*model.CreatureRelation, error) {
	s.relCalls.Add(1)
	var out []*model.CreatureRelation
	for _, r := range s.relations {
		for _, id := range userIDs {
			if r.UserID == id && !r.Deleted {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *fakeStorage) CreatureRelationsByPairs(_ context.Context, creatureIDs, userIDs []int64) ([]*model.CreatureRelation, error) {
	s.pairCalls.Add(1)
	// Deliberately broad: creature_id IN set1 OR user_id IN set2.
	var out []*model.CreatureRelation
	for _, r := range s.relations {
		if r.Deleted {
			continue
		}
		match := false
		for _, id := range creatureIDs {
			if r.ID == id {
				match = true
			}
		}
		for _, id := range userIDs {
			if r.UserID == id {
				match = true
			}
		}
		if match {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStorage) PoopsByCreatureIDs(_ context.Context, creatureIDs []int64) ([]*model.Poop, error) {
	s.poopCalls.Add(1)
	var out []*model.Poop
	for _, p := range s.poops {
		for _, id := range creatureIDs {
			if p.CreatureID == id && !p.Deleted {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func testStorage() *fakeStorage {
	return &fakeStorage{
		users: []*model.User{
			{ID: 1, Email: "a@example.com", Name: "A"},
			{ID: 2, Email: "b@example.com", Name: "B"},
			{ID: 3, Email: "gone@example.com", Name: "Gone", Deleted: true},
		},
		relations: []*model.CreatureRelation{
			{ID: 10, UserID: 1, CreatorID: 1, Kind: model.AccessKindCreator, Name: "Rex"},
			{ID: 10, UserID: 2, CreatorID: 1, Kind: model.AccessKindShared, Name: "Rex"},
			{ID: 11, UserID: 2, CreatorID: 2, Kind: model.AccessKindCreator, Name: "Fido"},
		},
		poops: []*model.Poop{
			{ID: 100, CreatureID: 10, CreatorID: 1},
			{ID: 101, CreatureID: 10, CreatorID: 2},
		},
	}
}

func loadersOver(st loader.Storage) *loader.Loaders {
	return loader.NewLoaders(st, loader.WithWait(5*time.Millisecond))
}

func TestLoaders_UserByID(t *testing.T) {
	st := testStorage()
	ld := loadersOver(st)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2, 1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, found, err := ld.UserByID.Load(ctx, id)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, id, u.ID)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), st.userCalls.Load())
	st.mu.Lock()
	assert.Len(t, st.lastUserID, 2, "duplicate ids collapse before the fetch")
	st.mu.Unlock()

	// Soft-deleted user resolves to not-found.
	_, found, err := ld.UserByID.Load(ctx, 3)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoaders_CreaturesForUser(t *testing.T) {
	st := testStorage()
	ld := loadersOver(st)

	rels, found, err := ld.CreaturesForUser.Load(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, rels, 2)
	assert.Equal(t, model.AccessKindShared, rels[0].Kind)
	assert.Equal(t, "Fido", rels[1].Name)
}

func TestLoaders_AccessForPair_ExactMatchAfterBroadFetch(t *testing.T) {
	st := testStorage()
	ld := loadersOver(st)
	ctx := context.Background()

	// Creature 11 exists and user 1 exists, but user 1 holds no grant
	// on creature 11. The broad OR fetch returns rows for both sides;
	// the pair must still resolve to nothing.
	var wg sync.WaitGroup
	type result struct {
		rel   *model.CreatureRelation
		found bool
	}
	var hit, miss result
	wg.Add(2)
	go func() {
		defer wg.Done()
		rel, found, err := ld.AccessForPair.Load(ctx, loader.CreatureUser{CreatureID: 10, UserID: 1})
		require.NoError(t, err)
		hit = result{rel, found}
	}()
	go func() {
		defer wg.Done()
		rel, found, err := ld.AccessForPair.Load(ctx, loader.CreatureUser{CreatureID: 11, UserID: 1})
		require.NoError(t, err)
		miss = result{rel, found}
	}()
	wg.Wait()

	require.Equal(t, int64(1), st.pairCalls.Load())

	require.True(t, hit.found)
	assert.Equal(t, model.AccessKindCreator, hit.rel.Kind)
	assert.Equal(t, int64(10), hit.rel.ID)

	assert.False(t, miss.found, "over-fetched rows must not leak into pairs that did not ask for them")
	assert.Nil(t, miss.rel)
}

func TestLoaders_PoopsForCreature(t *testing.T) {
	st := testStorage()
	ld := loadersOver(st)

	poops, found, err := ld.PoopsForCreature.Load(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, poops, 2)

	_, found, err = ld.PoopsForCreature.Load(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, found, "creature with no poops resolves to not-found, callers treat as empty")
}
