package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/sheetimport/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type mappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository wires a saved-mapping repository backed by pgxpool.
func NewMappingRepository(pool *pgxpool.Pool) MappingRepository {
	return &mappingRepository{pool: pool}
}

func (r *mappingRepository) Save(ctx context.Context, name string, mapping domain.ColumnMapping) error {
	if r.pool == nil {
		return errors.New("mapping repository not initialized")
	}

	encoded, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_mappings (name, mapping, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET mapping = EXCLUDED.mapping, updated_at = now()`,
		name,
		encoded,
	)
	if err != nil {
		return fmt.Errorf("save mapping %s: %w", name, err)
	}
	return nil
}

func (r *mappingRepository) Load(ctx context.Context, name string) (domain.ColumnMapping, error) {
	if r.pool == nil {
		return nil, errors.New("mapping repository not initialized")
	}

	var encoded []byte
	err := r.pool.QueryRow(ctx, `SELECT mapping FROM import_mappings WHERE name = $1`, name).Scan(&encoded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMappingNotFound
		}
		return nil, fmt.Errorf("load mapping %s: %w", name, err)
	}

	var mapping domain.ColumnMapping
	if err := json.Unmarshal(encoded, &mapping); err != nil {
		return nil, fmt.Errorf("decode mapping %s: %w", name, err)
	}
	return mapping, nil
}

func (r *mappingRepository) List(ctx context.Context) ([]string, error) {
	if r.pool == nil {
		return nil, errors.New("mapping repository not initialized")
	}

	rows, err := r.pool.Query(ctx, `SELECT name FROM import_mappings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan mapping name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return names, nil
}
