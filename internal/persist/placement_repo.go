package persist

import (
	"context"
	"fmt"

	"github.com/gritengine/gritd/internal/data"
)

// PlacementRepo stores the world's object placements in object_placements,
// keeping their order in seq.
type PlacementRepo struct {
	store *Store
}

func NewPlacementRepo(store *Store) *PlacementRepo {
	return &PlacementRepo{store: store}
}

// LoadAll returns every placement in saved order.
func (r *PlacementRepo) LoadAll(ctx context.Context) ([]data.Placement, error) {
	rows, err := r.store.Pool().Query(ctx,
		`SELECT name, class, pos_x, pos_y, pos_z, radius, far, fields
		 FROM object_placements ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("load placements: %w", err)
	}
	defer rows.Close()

	var result []data.Placement
	for rows.Next() {
		var p data.Placement
		if err := rows.Scan(
			&p.Name, &p.Class, &p.Pos[0], &p.Pos[1], &p.Pos[2],
			&p.Radius, &p.Far, &p.Fields,
		); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ReplaceAll swaps the stored placements for ps in a single transaction.
func (r *PlacementRepo) ReplaceAll(ctx context.Context, ps []data.Placement) error {
	tx, err := r.store.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("placements begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM object_placements`); err != nil {
		return fmt.Errorf("placements clear: %w", err)
	}
	for i, p := range ps {
		var fields any
		if len(p.Fields) > 0 {
			fields = p.Fields
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO object_placements (seq, name, class, pos_x, pos_y, pos_z, radius, far, fields)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			i, p.Name, p.Class, p.Pos[0], p.Pos[1], p.Pos[2], p.Radius, p.Far, fields,
		); err != nil {
			return fmt.Errorf("placement %q insert: %w", p.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of stored placements.
func (r *PlacementRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.store.Pool().QueryRow(ctx, `SELECT count(*) FROM object_placements`).Scan(&n)
	return n, err
}
