// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/model"
)

const poopColumns = "id, creator_id, creature_id, deleted, created, modified"

// PoopRepository manages poop rows. Writes are append-only.
type PoopRepository struct {
	db DB
}

// NewPoopRepository creates a new PoopRepository.
func NewPoopRepository(db DB) *PoopRepository {
	return &PoopRepository{db: db}
}

// Create appends a poop for a creature.
func (r *PoopRepository) Create(ctx context.Context, creatureID, creatorID int64) (*model.Poop, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO poop.poops (creature_id, creator_id)
		VALUES ($1, $2)
		RETURNING `+poopColumns,
		creatureID, creatorID,
	)

	var p model.Poop
	err := row.Scan(&p.ID, &p.CreatorID, &p.CreatureID, &p.Deleted, &p.Created, &p.Modified)
	if err != nil {
		return nil, oops.Code("POOP_CREATE_FAILED").
			With("operation", "insert poop").
			With("creature_id", creatureID).
			Wrap(err)
	}
	return &p, nil
}

// ByCreatureIDs is the batched fetch behind the poops-for-creature
// loader. Display order: newest first.
func (r *PoopRepository) ByCreatureIDs(ctx context.Context, creatureIDs []int64) ([]*model.Poop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+poopColumns+` FROM poop.poops
		WHERE creature_id = ANY($1) AND deleted IS FALSE
		ORDER BY created DESC
	`, creatureIDs)
	if err != nil {
		return nil, oops.Code("POOPS_BY_CREATURES_FAILED").
			With("operation", "get poops by creature ids").
			Wrap(err)
	}
	return collectPoops(rows)
}

// RecentForUser returns the newest poops across every creature the
// user holds an active grant on.
func (r *PoopRepository) RecentForUser(ctx context.Context, userID int64, limit int) ([]*model.Poop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.creator_id, p.creature_id, p.deleted, p.created, p.modified
		FROM poop.poops p
		INNER JOIN poop.creature_access ca ON ca.creature_id = p.creature_id
		INNER JOIN poop.creatures c ON c.id = p.creature_id
		WHERE ca.user_id = $1
			AND p.deleted IS FALSE
			AND ca.deleted IS FALSE
			AND c.deleted IS FALSE
		ORDER BY p.created DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, oops.Code("POOPS_RECENT_FAILED").
			With("operation", "get recent poops for user").
			With("user_id", userID).
			Wrap(err)
	}
	return collectPoops(rows)
}

func collectPoops(rows pgx.Rows) ([]*model.Poop, error) {
	defer rows.Close()

	var poops []*model.Poop
	for rows.Next() {
		var p model.Poop
		err := rows.Scan(&p.ID, &p.CreatorID, &p.CreatureID, &p.Deleted, &p.Created, &p.Modified)
		if err != nil {
			return nil, oops.Code("POOP_SCAN_FAILED").
				With("operation", "scan poop row").
				Wrap(err)
		}
		poops = append(poops, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("POOP_ROWS_ERROR").
			With("operation", "iterate poop rows").
			Wrap(err)
	}
	return poops, nil
}
