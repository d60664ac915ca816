// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/model"
)

// relationColumns selects a creature joined with one access row, in
// CreatureRelation scan order.
const relationColumns = "c.id, ca.user_id, ca.kind, c.creator_id, c.name, c.deleted, c.created, c.modified"

// CreatureRepository manages creatures and their access grants.
type CreatureRepository struct {
	db DB
}

// NewCreatureRepository creates a new CreatureRepository.
func NewCreatureRepository(db DB) *CreatureRepository {
	return &CreatureRepository{db: db}
}

// CreateWithCreatorGrant creates a creature and its creator access
// grant in one transaction on a single connection: insert creature,
// insert grant, re-read the joined relation, commit. A failure at any
// step rolls the whole thing back, so no partial creature/access pair
// is ever visible to another request.
func (r *CreatureRepository) CreateWithCreatorGrant(ctx context.Context, creatorID int64, name string) (*model.CreatureRelation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var creatureID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO poop.creatures (creator_id, name)
		VALUES ($1, $2)
		RETURNING id
	`, creatorID, name).Scan(&creatureID)
	if err != nil {
		return nil, oops.Code("CREATURE_CREATE_FAILED").
			With("operation", "insert creature").
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO poop.creature_access (creature_id, user_id, creator_id, kind)
		VALUES ($1, $2, $3, $4)
	`, creatureID, creatorID, creatorID, model.AccessKindCreator)
	if err != nil {
		return nil, oops.Code("CREATURE_CREATE_FAILED").
			With("operation", "insert creator access grant").
			With("creature_id", creatureID).
			Wrap(err)
	}

	row := tx.QueryRow(ctx, `
		SELECT `+relationColumns+` FROM poop.creatures c
		INNER JOIN poop.creature_access ca ON ca.creature_id = c.id
		WHERE c.id = $1
			AND c.deleted IS FALSE
			AND ca.deleted IS FALSE
	`, creatureID)

	rel, err := scanRelation(row)
	if err != nil {
		return nil, oops.Code("CREATURE_CREATE_FAILED").
			With("operation", "read back created relation").
			With("creature_id", creatureID).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return rel, nil
}

// Share grants a user access to a creature with the 'shared' kind and
// returns the new relation. A duplicate active grant maps to
// BAD_REQUEST via the partial unique index on (creature_id, user_id).
func (r *CreatureRepository) Share(ctx context.Context, creatureID, userID, grantedBy int64) (*model.CreatureRelation, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO poop.creature_access (creature_id, user_id, creator_id, kind)
		VALUES ($1, $2, $3, $4)
	`, creatureID, userID, grantedBy, model.AccessKindShared)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("BAD_REQUEST").
				With("operation", "insert shared access grant").
				Errorf("user already has access to this creature")
		}
		return nil, oops.Code("CREATURE_SHARE_FAILED").
			With("operation", "insert shared access grant").
			With("creature_id", creatureID).
			With("user_id", userID).
			Wrap(err)
	}

	return r.RelationForPair(ctx, creatureID, userID)
}

// SoftDelete marks a creature inactive. Access grants stay in place but
// every relation query filters on the creature's flag, so the creature
// disappears from results for every user who had access.
func (r *CreatureRepository) SoftDelete(ctx context.Context, creatureID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE poop.creatures SET deleted = TRUE, modified = NOW()
		WHERE id = $1 AND deleted IS FALSE
	`, creatureID)
	if err != nil {
		return oops.Code("CREATURE_DELETE_FAILED").
			With("operation", "soft delete creature").
			With("creature_id", creatureID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("NOT_FOUND").
			With("creature_id", creatureID).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RelationForPair retrieves the single active relation for one exact
// (creature, user) pair.
func (r *CreatureRepository) RelationForPair(ctx context.Context, creatureID, userID int64) (*model.CreatureRelation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+relationColumns+` FROM poop.creatures c
		INNER JOIN poop.creature_access ca ON ca.creature_id = c.id
		WHERE c.id = $1
			AND ca.user_id = $2
			AND c.deleted IS FALSE
			AND ca.deleted IS FALSE
	`, creatureID, userID)

	rel, err := scanRelation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RELATION_GET_FAILED").
			With("operation", "get relation for pair").
			With("creature_id", creatureID).
			With("user_id", userID).
			Wrap(err)
	}
	return rel, nil
}

// RelationsByUserIDs is the batched fetch behind the creatures-for-user
// loader.
func (r *CreatureRepository) RelationsByUserIDs(ctx context.Context, userIDs []int64) ([]*model.CreatureRelation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+relationColumns+` FROM poop.creatures c
		INNER JOIN poop.creature_access ca ON ca.creature_id = c.id
		WHERE ca.user_id = ANY($1)
			AND ca.deleted IS FALSE
			AND c.deleted IS FALSE
	`, userIDs)
	if err != nil {
		return nil, oops.Code("RELATIONS_BY_USERS_FAILED").
			With("operation", "get relations by user ids").
			Wrap(err)
	}
	return collectRelations(rows)
}

// RelationsByPairs is the batched fetch behind the composite
// (creature, user) loader. The OR across the two id sets over-fetches
// rows matching only one side; the loader maps results back by exact
// pair equality, which is what restores correctness. Keep the broad
// fetch.
func (r *CreatureRepository) RelationsByPairs(ctx context.Context, creatureIDs, userIDs []int64) ([]*model.CreatureRelation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+relationColumns+` FROM poop.creatures c
		INNER JOIN poop.creature_access ca ON ca.creature_id = c.id
		WHERE (c.id = ANY($1) OR ca.user_id = ANY($2))
			AND ca.deleted IS FALSE
			AND c.deleted IS FALSE
	`, creatureIDs, userIDs)
	if err != nil {
		return nil, oops.Code("RELATIONS_BY_PAIRS_FAILED").
			With("operation", "get relations by pairs").
			Wrap(err)
	}
	return collectRelations(rows)
}

func scanRelation(row pgx.Row) (*model.CreatureRelation, error) {
	var rel model.CreatureRelation
	err := row.Scan(&rel.ID, &rel.UserID, &rel.Kind, &rel.CreatorID, &rel.Name, &rel.Deleted, &rel.Created, &rel.Modified)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return &rel, nil
}

func collectRelations(rows pgx.Rows) ([]*model.CreatureRelation, error) {
	defer rows.Close()

	var rels []*model.CreatureRelation
	for rows.Next() {
		var rel model.CreatureRelation
		err := rows.Scan(&rel.ID, &rel.UserID, &rel.Kind, &rel.CreatorID, &rel.Name, &rel.Deleted, &rel.Created, &rel.Modified)
		if err != nil {
			return nil, oops.Code("RELATION_SCAN_FAILED").
				With("operation", "scan relation row").
				Wrap(err)
		}
		rels = append(rels, &rel)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RELATION_ROWS_ERROR").
			With("operation", "iterate relation rows").
			Wrap(err)
	}
	return rels, nil
}
