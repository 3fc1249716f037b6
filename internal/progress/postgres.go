package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/sheetimport/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists job state to the import_jobs table so progress
// survives process restarts. Updates are idempotent upserts by job id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a durable store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, job domain.ImportJob) error {
	var active bool
	err := s.pool.QueryRow(
		ctx,
		`SELECT EXISTS (
			SELECT 1 FROM import_jobs
			WHERE NOT completed AND (id = $1 OR source_name = $2)
		)`,
		job.ID,
		job.SourceName,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("check active import jobs: %w", err)
	}
	if active {
		return domain.ErrConflict
	}

	_, err = s.pool.Exec(
		ctx,
		`INSERT INTO import_jobs (id, target, source_name, total_rows, progress, step, completed, result, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, 'pending', FALSE, NULL, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
			target = EXCLUDED.target,
			source_name = EXCLUDED.source_name,
			total_rows = EXCLUDED.total_rows,
			progress = 0,
			step = 'pending',
			completed = FALSE,
			result = NULL,
			created_at = now(),
			updated_at = now()`,
		job.ID,
		job.Target,
		job.SourceName,
		job.TotalRows,
	)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, jobID string, progressPct int, step string, completed bool, result *domain.ImportResult) error {
	var resultJSON any
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode import result: %w", err)
		}
		resultJSON = encoded
	}

	tag, err := s.pool.Exec(
		ctx,
		`UPDATE import_jobs SET
			progress = GREATEST(progress, $2),
			step = $3,
			completed = $4,
			result = COALESCE($5, result),
			updated_at = now()
		 WHERE id = $1`,
		jobID,
		progressPct,
		step,
		completed,
		resultJSON,
	)
	if err != nil {
		return fmt.Errorf("update import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (domain.ImportJob, error) {
	var (
		job        domain.ImportJob
		resultJSON []byte
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	err := s.pool.QueryRow(
		ctx,
		`SELECT id, target, source_name, total_rows, progress, step, completed, result, created_at, updated_at
		 FROM import_jobs WHERE id = $1`,
		jobID,
	).Scan(
		&job.ID,
		&job.Target,
		&job.SourceName,
		&job.TotalRows,
		&job.Progress,
		&job.Step,
		&job.Completed,
		&resultJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.ImportJob{}, domain.ErrJobNotFound
	}

	if len(resultJSON) > 0 {
		var result domain.ImportResult
		if unmarshalErr := json.Unmarshal(resultJSON, &result); unmarshalErr == nil {
			job.Result = &result
		}
	}
	if createdAt.Valid {
		job.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}
	return job, nil
}

func (s *PostgresStore) Release(ctx context.Context, jobID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM import_jobs WHERE id = $1 AND NOT completed`, jobID); err != nil {
		return fmt.Errorf("release import job: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
