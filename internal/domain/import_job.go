package domain

import (
	"fmt"
	"time"
)

// SourceDocument is the parsed, immutable representation of an uploaded
// spreadsheet: a header row plus raw data rows. Cells are string,
// float64 or nil; missing trailing cells are nil.
type SourceDocument struct {
	Headers []string
	Rows    [][]any
}

// RowError records a failure isolated to a single data row (1-based).
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// ImportResult summarizes a completed run. Created once at job
// completion and never mutated afterwards.
type ImportResult struct {
	Success     bool          `json:"success"`
	TotalRows   int           `json:"total_rows"`
	WrittenRows int           `json:"written_rows"`
	Errors      []RowError    `json:"errors"`
	ErrorCount  int           `json:"error_count"`
	SessionID   string        `json:"session_id"`
	Elapsed     time.Duration `json:"elapsed"`
}

// ImportJob tracks one import run for polling callers. Mutated only by
// the executor that owns it.
type ImportJob struct {
	ID         string        `json:"id"`
	Target     string        `json:"target"`
	SourceName string        `json:"source_name"`
	TotalRows  int           `json:"total_rows"`
	Progress   int           `json:"progress"`
	Step       string        `json:"step"`
	Completed  bool          `json:"completed"`
	Result     *ImportResult `json:"result,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Record is one destination row produced from a source row: coerced
// direct fields plus computed/derived fields, tagged with the source
// identity used for dedup on re-import.
type Record struct {
	Target     string         `json:"target"`
	SourceName string         `json:"source_name"`
	SessionID  string         `json:"session_id"`
	Fields     map[string]any `json:"fields"`
}

// ImportLogEntry captures a row level failure for the durable error log.
type ImportLogEntry struct {
	JobID      string    `json:"job_id"`
	SourceName string    `json:"source_name"`
	RowNumber  *int      `json:"row_number,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
