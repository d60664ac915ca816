// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package graph

import (
	"context"
	"strconv"
	"sync"

	"github.com/samber/oops"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/loader"
	"github.com/didpoop/didpoop/internal/model"
)

// recentPoopLimit caps the poops query.
const recentPoopLimit = 50

// Storage is the persistence surface the resolvers use directly, on
// top of the batched loader surface. internal/postgres implements it.
type Storage interface {
	loader.Storage

	CreateCreature(ctx context.Context, creatorID int64, name string) (*model.CreatureRelation, error)
	ShareCreature(ctx context.Context, creatureID, userID, grantedBy int64) (*model.CreatureRelation, error)
	SoftDeleteCreature(ctx context.Context, creatureID int64) error
	CreatePoop(ctx context.Context, creatureID, creatorID int64) (*model.Poop, error)
	RecentPoopsForUser(ctx context.Context, userID int64, limit int) ([]*model.Poop, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Resolver implements every operation and field of the schema.
type Resolver struct {
	auth  *auth.Service
	store Storage
}

// NewResolver builds the resolver set.
func NewResolver(authSvc *auth.Service, store Storage) *Resolver {
	return &Resolver{auth: authSvc, store: store}
}

func (r *Resolver) resolveQueryField(ctx context.Context, rc *RequestContext, f *ast.Field, vars map[string]any) (any, error) {
	args := f.ArgumentMap(vars)

	switch f.Name {
	case "user":
		if err := runGuards(ctx, rc, args, RequireIdentity()); err != nil {
			return nil, err
		}
		return r.resolveUser(ctx, rc, rc.User, f.SelectionSet)

	case "poops":
		if err := runGuards(ctx, rc, args, RequireIdentity()); err != nil {
			return nil, err
		}
		poops, err := r.store.RecentPoopsForUser(ctx, rc.User.ID, recentPoopLimit)
		if err != nil {
			return nil, err
		}
		return r.resolvePoops(ctx, rc, poops, f.SelectionSet)

	default:
		return nil, oops.Code("BAD_REQUEST").Errorf("unknown query field %q", f.Name)
	}
}

func (r *Resolver) resolveMutationField(ctx context.Context, rc *RequestContext, f *ast.Field, vars map[string]any) (any, error) {
	args := f.ArgumentMap(vars)

	switch f.Name {
	case "signUp":
		user, cookie, err := r.auth.SignUp(ctx, argString(args, "email"), argString(args, "name"), argString(args, "pw"))
		if err != nil {
			return nil, err
		}
		rc.AddCookie(cookie)
		return r.resolveUser(ctx, rc, user, f.SelectionSet)

	case "login":
		user, cookie, err := r.auth.Login(ctx, argString(args, "email"), argString(args, "pw"))
		if err != nil {
			return nil, err
		}
		rc.AddCookie(cookie)
		return r.resolveUser(ctx, rc, user, f.SelectionSet)

	case "logout":
		rc.AddCookie(r.auth.Logout())
		return true, nil

	case "createCreature":
		if err := runGuards(ctx, rc, args, RequireIdentity()); err != nil {
			return nil, err
		}
		rel, err := r.store.CreateCreature(ctx, rc.User.ID, argString(args, "name"))
		if err != nil {
			return nil, err
		}
		return r.resolveRelation(ctx, rc, rel, f.SelectionSet)

	case "createPoop":
		if err := runGuards(ctx, rc, args, RequireIdentity(), RequireCreatureAccess()); err != nil {
			return nil, err
		}
		creatureID, err := argID(args, "creatureId")
		if err != nil {
			return nil, err
		}
		poop, err := r.store.CreatePoop(ctx, creatureID, rc.User.ID)
		if err != nil {
			return nil, err
		}
		return r.resolvePoop(ctx, rc, poop, f.SelectionSet)

	case "shareCreature":
		if err := runGuards(ctx, rc, args, RequireIdentity(), RequireCreatureAccess(model.AccessKindCreator)); err != nil {
			return nil, err
		}
		creatureID, err := argID(args, "creatureId")
		if err != nil {
			return nil, err
		}
		target, err := r.store.UserByEmail(ctx, argString(args, "email"))
		if err != nil {
			return nil, err
		}
		rel, err := r.store.ShareCreature(ctx, creatureID, target.ID, rc.User.ID)
		if err != nil {
			return nil, err
		}
		return r.resolveRelation(ctx, rc, rel, f.SelectionSet)

	case "deleteCreature":
		if err := runGuards(ctx, rc, args, RequireIdentity(), RequireCreatureAccess(model.AccessKindCreator)); err != nil {
			return nil, err
		}
		creatureID, err := argID(args, "creatureId")
		if err != nil {
			return nil, err
		}
		if err := r.store.SoftDeleteCreature(ctx, creatureID); err != nil {
			return nil, err
		}
		return true, nil

	default:
		return nil, oops.Code("BAD_REQUEST").Errorf("unknown mutation field %q", f.Name)
	}
}

func (r *Resolver) resolveUser(ctx context.Context, rc *RequestContext, u *model.User, sel ast.SelectionSet) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range collectFields(sel) {
		switch f.Name {
		case "id":
			out[f.Alias] = strconv.FormatInt(u.ID, 10)
		case "email":
			out[f.Alias] = u.Email
		case "name":
			out[f.Alias] = u.Name
		case "created":
			out[f.Alias] = u.Created
		case "modified":
			out[f.Alias] = u.Modified
		case "creatures":
			rels, _, err := rc.Loaders.CreaturesForUser.Load(ctx, u.ID)
			if err != nil {
				return nil, err
			}
			v, err := r.resolveRelations(ctx, rc, rels, f.SelectionSet)
			if err != nil {
				return nil, err
			}
			out[f.Alias] = v
		}
	}
	return out, nil
}

func resolveSimpleUser(su model.SimpleUser, sel ast.SelectionSet) map[string]any {
	out := make(map[string]any)
	for _, f := range collectFields(sel) {
		switch f.Name {
		case "id":
			out[f.Alias] = strconv.FormatInt(su.ID, 10)
		case "name":
			out[f.Alias] = su.Name
		}
	}
	return out
}

func (r *Resolver) resolveRelation(ctx context.Context, rc *RequestContext, rel *model.CreatureRelation, sel ast.SelectionSet) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range collectFields(sel) {
		switch f.Name {
		case "id":
			out[f.Alias] = strconv.FormatInt(rel.ID, 10)
		case "name":
			out[f.Alias] = rel.Name
		case "relation":
			out[f.Alias] = rel.Kind
		case "created":
			out[f.Alias] = rel.Created
		case "modified":
			out[f.Alias] = rel.Modified
		case "creator":
			creator, ok, err := rc.Loaders.UserByID.Load(ctx, rel.CreatorID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, oops.Code("INTERNAL").
					Errorf("missing expected creator %d of creature %d", rel.CreatorID, rel.ID)
			}
			out[f.Alias] = resolveSimpleUser(creator.Simple(), f.SelectionSet)
		case "poops":
			poops, _, err := rc.Loaders.PoopsForCreature.Load(ctx, rel.ID)
			if err != nil {
				return nil, err
			}
			v, err := r.resolvePoops(ctx, rc, poops, f.SelectionSet)
			if err != nil {
				return nil, err
			}
			out[f.Alias] = v
		}
	}
	return out, nil
}

func (r *Resolver) resolvePoop(ctx context.Context, rc *RequestContext, p *model.Poop, sel ast.SelectionSet) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range collectFields(sel) {
		switch f.Name {
		case "id":
			out[f.Alias] = strconv.FormatInt(p.ID, 10)
		case "created":
			out[f.Alias] = p.Created
		case "modified":
			out[f.Alias] = p.Modified
		case "creator":
			creator, ok, err := rc.Loaders.UserByID.Load(ctx, p.CreatorID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, oops.Code("INTERNAL").
					Errorf("missing expected creator %d of poop %d", p.CreatorID, p.ID)
			}
			out[f.Alias] = resolveSimpleUser(creator.Simple(), f.SelectionSet)
		case "creature":
			// The relation is looked up for the poop's creator, exactly the
			// pair the access loader coalesces on.
			rel, ok, err := rc.Loaders.AccessForPair.Load(ctx, loader.CreatureUser{
				CreatureID: p.CreatureID,
				UserID:     p.CreatorID,
			})
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, oops.Code("INTERNAL").
					Errorf("missing expected creature %d -> user %d relation", p.CreatureID, p.CreatorID)
			}
			v, err := r.resolveRelation(ctx, rc, rel, f.SelectionSet)
			if err != nil {
				return nil, err
			}
			out[f.Alias] = v
		}
	}
	return out, nil
}

func (r *Resolver) resolveRelations(ctx context.Context, rc *RequestContext, rels []*model.CreatureRelation, sel ast.SelectionSet) ([]any, error) {
	return resolveList(ctx, rels, func(ctx context.Context, rel *model.CreatureRelation) (map[string]any, error) {
		return r.resolveRelation(ctx, rc, rel, sel)
	})
}

func (r *Resolver) resolvePoops(ctx context.Context, rc *RequestContext, poops []*model.Poop, sel ast.SelectionSet) ([]any, error) {
	return resolveList(ctx, poops, func(ctx context.Context, p *model.Poop) (map[string]any, error) {
		return r.resolvePoop(ctx, rc, p, sel)
	})
}

// resolveList resolves list items concurrently so their loader calls
// land in shared batch windows. The first error wins; results keep the
// input order.
func resolveList[T any](ctx context.Context, items []T, fn func(context.Context, T) (map[string]any, error)) ([]any, error) {
	out := make([]any, len(items))
	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := fn(ctx, item)
			if err != nil {
				errs[i] = err
				return
			}
			out[i] = v
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// collectFields flattens a selection set into its fields, descending
// into fragments.
func collectFields(sel ast.SelectionSet) []*ast.Field {
	var out []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			out = append(out, s)
		case *ast.InlineFragment:
			out = append(out, collectFields(s.SelectionSet)...)
		case *ast.FragmentSpread:
			if s.Definition != nil {
				out = append(out, collectFields(s.Definition.SelectionSet)...)
			}
		}
	}
	return out
}
