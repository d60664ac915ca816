// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package graph

import (
	"context"
	"slices"
	"strconv"

	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/loader"
)

// Guard is a predicate run before an operation body. Guards receive the
// request state and the operation's arguments and short-circuit the
// operation by returning a coded error.
type Guard func(ctx context.Context, rc *RequestContext, args map[string]any) error

// runGuards evaluates guards in order, stopping at the first failure.
func runGuards(ctx context.Context, rc *RequestContext, args map[string]any, guards ...Guard) error {
	for _, g := range guards {
		if err := g(ctx, rc, args); err != nil {
			return err
		}
	}
	return nil
}

// RequireIdentity rejects anonymous callers.
func RequireIdentity() Guard {
	return func(_ context.Context, rc *RequestContext, _ map[string]any) error {
		if rc.User == nil {
			return oops.Code("UNAUTHORIZED").Errorf("unauthorized")
		}
		return nil
	}
}

// RequireCreatureAccess rejects callers without an active access grant
// on the creature named by the creatureId argument. When kinds are
// given, the grant must additionally be one of them. Run after
// RequireIdentity.
func RequireCreatureAccess(kinds ...string) Guard {
	return func(ctx context.Context, rc *RequestContext, args map[string]any) error {
		creatureID, err := argID(args, "creatureId")
		if err != nil {
			return err
		}

		rel, ok, err := rc.Loaders.AccessForPair.Load(ctx, loader.CreatureUser{
			CreatureID: creatureID,
			UserID:     rc.User.ID,
		})
		if err != nil {
			return oops.Code("ACCESS_CHECK_FAILED").With("creature_id", creatureID).Wrap(err)
		}
		if !ok {
			return oops.Code("FORBIDDEN").Errorf("forbidden")
		}
		if len(kinds) > 0 && !slices.Contains(kinds, rel.Kind) {
			return oops.Code("FORBIDDEN").Errorf("forbidden")
		}
		return nil
	}
}

// argID parses an ID argument into an int64.
func argID(args map[string]any, name string) (int64, error) {
	raw, _ := args[name].(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, oops.Code("BAD_REQUEST").With("argument", name).Errorf("invalid id %q", raw)
	}
	return id, nil
}
