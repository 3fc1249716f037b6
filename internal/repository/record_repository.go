package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/sheetimport/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type recordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository wires a record repository backed by pgxpool.
func NewRecordRepository(pool *pgxpool.Pool) RecordRepository {
	return &recordRepository{pool: pool}
}

func (r *recordRepository) BulkInsert(ctx context.Context, records []domain.Record) error {
	if r.pool == nil {
		return errors.New("record repository not initialized")
	}
	if len(records) == 0 {
		return nil
	}

	// One multi-row INSERT so the whole batch succeeds or fails as a
	// unit; the executor falls back to per-row inserts on failure.
	var sb strings.Builder
	sb.WriteString(`INSERT INTO import_records (target, source_name, session_id, fields) VALUES `)
	args := make([]any, 0, len(records)*4)
	for i, record := range records {
		fields, err := json.Marshal(record.Fields)
		if err != nil {
			return fmt.Errorf("encode record fields: %w", err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, record.Target, record.SourceName, record.SessionID, fields)
	}

	if _, err := r.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk insert %d records: %w", len(records), err)
	}
	return nil
}

func (r *recordRepository) InsertOne(ctx context.Context, record domain.Record) error {
	if r.pool == nil {
		return errors.New("record repository not initialized")
	}

	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("encode record fields: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_records (target, source_name, session_id, fields)
		 VALUES ($1, $2, $3, $4)`,
		record.Target,
		record.SourceName,
		record.SessionID,
		fields,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (r *recordRepository) DeleteBySource(ctx context.Context, target, sourceName string) (int64, error) {
	if r.pool == nil {
		return 0, errors.New("record repository not initialized")
	}

	tag, err := r.pool.Exec(
		ctx,
		`DELETE FROM import_records WHERE target = $1 AND source_name = $2`,
		target,
		sourceName,
	)
	if err != nil {
		return 0, fmt.Errorf("delete records for source %s: %w", sourceName, err)
	}
	return tag.RowsAffected(), nil
}

func (r *recordRepository) CountBySource(ctx context.Context, target, sourceName string) (int64, error) {
	if r.pool == nil {
		return 0, errors.New("record repository not initialized")
	}

	var count int64
	err := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM import_records WHERE target = $1 AND source_name = $2`,
		target,
		sourceName,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records for source %s: %w", sourceName, err)
	}
	return count, nil
}
