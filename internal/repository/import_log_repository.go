package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/sheetimport/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importLogRepository struct {
	pool *pgxpool.Pool
}

// NewImportLogRepository wires a row-error log backed by pgxpool.
func NewImportLogRepository(pool *pgxpool.Pool) ImportLogRepository {
	return &importLogRepository{pool: pool}
}

func (r *importLogRepository) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	if r.pool == nil {
		return errors.New("import log repository not initialized")
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO import_errors (job_id, source_name, row_number, message)
		 VALUES ($1, $2, $3, $4)`,
		entry.JobID,
		entry.SourceName,
		rowNumber,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("record import error: %w", err)
	}
	return nil
}

func (r *importLogRepository) List(ctx context.Context, jobID string, limit, offset int) ([]domain.ImportLogEntry, error) {
	if r.pool == nil {
		return nil, errors.New("import log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT job_id, source_name, row_number, message, created_at
		 FROM import_errors
		 WHERE job_id = $1
		 ORDER BY created_at ASC, row_number ASC
		 LIMIT $2 OFFSET $3`,
		jobID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list import errors: %w", err)
	}
	defer rows.Close()

	entries := []domain.ImportLogEntry{}
	for rows.Next() {
		var (
			entry     domain.ImportLogEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(&entry.JobID, &entry.SourceName, &rowNumber, &entry.Message, &createdAt); scanErr != nil {
			return nil, fmt.Errorf("scan import error: %w", scanErr)
		}
		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import errors: %w", err)
	}
	return entries, nil
}
