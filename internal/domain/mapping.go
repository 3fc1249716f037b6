package domain

// Computed mapping targets. A header mapped to one of these sentinels is
// never read from the source column directly.
const (
	MappingTargetSkip     = "skip"
	MappingTargetFromFile = "from-filename"
	MappingTargetFromNow  = "from-current-time"
	MappingTargetDerived  = "derived"
)

// ColumnMapping maps a source header to a destination field key or a
// computed-value sentinel.
type ColumnMapping map[string]string

// IsComputedTarget reports whether the mapping target is a sentinel
// rather than a catalog field key.
func IsComputedTarget(target string) bool {
	switch target {
	case MappingTargetFromFile, MappingTargetFromNow, MappingTargetDerived:
		return true
	}
	return false
}

// ResolvedMapping partitions a validated ColumnMapping for the executor.
type ResolvedMapping struct {
	// Direct binds a source header to a non-computed catalog field key.
	Direct map[string]string `json:"direct"`
	// Computed binds a source header to a computed-value sentinel.
	Computed map[string]string `json:"computed"`
	// Skipped lists headers the mapping explicitly ignores.
	Skipped []string `json:"skipped"`
}

// MappingSuggestion holds ranked candidate field keys for one header.
type MappingSuggestion struct {
	Header     string   `json:"header"`
	Candidates []string `json:"candidates"`
}
