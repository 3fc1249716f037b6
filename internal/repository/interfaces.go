// Package repository persists import records, saved mappings and the
// durable row-error log in Postgres.
package repository

import (
	"context"

	"github.com/rpattn/sheetimport/internal/domain"
)

// RecordRepository writes destination records. Bulk writes are a single
// statement covering the whole batch; per-row writes back the fallback
// path when a bulk write fails.
type RecordRepository interface {
	BulkInsert(ctx context.Context, records []domain.Record) error
	InsertOne(ctx context.Context, record domain.Record) error
	// DeleteBySource removes every record tagged with the source
	// identity so a re-import replaces rather than duplicates. Absence
	// of prior rows is not an error.
	DeleteBySource(ctx context.Context, target, sourceName string) (int64, error)
	CountBySource(ctx context.Context, target, sourceName string) (int64, error)
}

// MappingRepository saves and loads named column mappings.
type MappingRepository interface {
	Save(ctx context.Context, name string, mapping domain.ColumnMapping) error
	Load(ctx context.Context, name string) (domain.ColumnMapping, error)
	List(ctx context.Context) ([]string, error)
}

// ImportLogRepository records row level failures durably.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, jobID string, limit, offset int) ([]domain.ImportLogEntry, error)
}
