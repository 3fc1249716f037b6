package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput marks an upload whose container could not be read.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEmptyInput marks an upload with a header row but no data rows.
	ErrEmptyInput = errors.New("no data rows in input")
	// ErrConflict marks a submission for a job or source key that is
	// already owned by a running import.
	ErrConflict = errors.New("import already running for this key")
	// ErrJobNotFound marks a status lookup for an unknown or expired job id.
	ErrJobNotFound = errors.New("import job not found")
	// ErrMappingNotFound marks a lookup for an unknown saved mapping name.
	ErrMappingNotFound = errors.New("saved mapping not found")
)

// MappingError rejects a ColumnMapping before any row is touched.
type MappingError struct {
	MissingRequired  []string `json:"missing_required,omitempty"`
	DuplicateTargets []string `json:"duplicate_targets,omitempty"`
	UnknownTargets   []string `json:"unknown_targets,omitempty"`
}

func (e *MappingError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.MissingRequired) > 0 {
		parts = append(parts, fmt.Sprintf("missing required fields: %s", strings.Join(e.MissingRequired, ", ")))
	}
	if len(e.DuplicateTargets) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate mapping targets: %s", strings.Join(e.DuplicateTargets, ", ")))
	}
	if len(e.UnknownTargets) > 0 {
		parts = append(parts, fmt.Sprintf("unknown mapping targets: %s", strings.Join(e.UnknownTargets, ", ")))
	}
	if len(parts) == 0 {
		return "invalid mapping"
	}
	return "invalid mapping: " + strings.Join(parts, "; ")
}

// HasIssues reports whether any validation issue was recorded.
func (e *MappingError) HasIssues() bool {
	return len(e.MissingRequired) > 0 || len(e.DuplicateTargets) > 0 || len(e.UnknownTargets) > 0
}
