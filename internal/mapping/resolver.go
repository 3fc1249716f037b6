// Package mapping suggests, validates and resolves column mappings
// between source headers and the destination field catalog.
package mapping

import (
	"sort"
	"strings"

	"github.com/rpattn/sheetimport/internal/domain"
)

const maxSuggestions = 3

// Candidate match strengths, strongest first.
const (
	matchExactKey = 3
	matchKey      = 2
	matchLabel    = 1
)

// Resolver holds the suggestion exclusion pairs. Exclusions are
// deployment configuration: fields whose keys collide as substrings
// (for example a field and its totals counterpart) suppress each other
// from substring-based suggestion.
type Resolver struct {
	exclusions map[string]map[string]bool
}

// NewResolver builds a resolver from symmetric exclusion pairs.
func NewResolver(exclusionPairs [][2]string) *Resolver {
	exclusions := make(map[string]map[string]bool)
	add := func(a, b string) {
		a = strings.ToLower(strings.TrimSpace(a))
		b = strings.ToLower(strings.TrimSpace(b))
		if a == "" || b == "" {
			return
		}
		if exclusions[a] == nil {
			exclusions[a] = make(map[string]bool)
		}
		exclusions[a][b] = true
	}
	for _, pair := range exclusionPairs {
		add(pair[0], pair[1])
		add(pair[1], pair[0])
	}
	return &Resolver{exclusions: exclusions}
}

// Suggest proposes up to 3 candidate field keys per header, ranked by
// exact key match, then substring containment against the key, then
// substring containment against the label. Catalog order breaks ties.
func (r *Resolver) Suggest(headers []string, catalog domain.FieldCatalog) []domain.MappingSuggestion {
	suggestions := make([]domain.MappingSuggestion, 0, len(headers))

	for _, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))

		type scored struct {
			key   string
			score int
			order int
		}
		var candidates []scored

		for idx, field := range catalog {
			if field.Computed {
				continue
			}
			score := matchStrength(normalized, field)
			if score == 0 {
				continue
			}
			if score < matchExactKey && r.excluded(normalized, field.Key) {
				continue
			}
			candidates = append(candidates, scored{key: field.Key, score: score, order: idx})
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].order < candidates[j].order
		})

		keys := make([]string, 0, maxSuggestions)
		for _, candidate := range candidates {
			keys = append(keys, candidate.key)
			if len(keys) == maxSuggestions {
				break
			}
		}
		suggestions = append(suggestions, domain.MappingSuggestion{Header: header, Candidates: keys})
	}

	return suggestions
}

func matchStrength(header string, field domain.FieldSpec) int {
	key := strings.ToLower(field.Key)
	label := strings.ToLower(field.Label)

	switch {
	case header == key:
		return matchExactKey
	case header != "" && (strings.Contains(header, key) || strings.Contains(key, header)):
		return matchKey
	case header != "" && label != "" && (strings.Contains(header, label) || strings.Contains(label, header)):
		return matchLabel
	}
	return 0
}

func (r *Resolver) excluded(header, fieldKey string) bool {
	peers := r.exclusions[strings.ToLower(fieldKey)]
	if peers == nil {
		return false
	}
	for peer := range peers {
		if header == peer {
			return true
		}
	}
	return false
}

// Validate rejects a mapping that misses a required field or points two
// headers at the same non-computed field key.
func Validate(m domain.ColumnMapping, catalog domain.FieldCatalog) error {
	mappingErr := &domain.MappingError{}

	targets := make(map[string]int)
	for _, target := range m {
		if target == domain.MappingTargetSkip || domain.IsComputedTarget(target) {
			continue
		}
		targets[target]++
	}

	for target, count := range targets {
		if count > 1 {
			mappingErr.DuplicateTargets = append(mappingErr.DuplicateTargets, target)
		}
	}
	sort.Strings(mappingErr.DuplicateTargets)

	for _, key := range catalog.RequiredKeys() {
		if targets[key] == 0 {
			mappingErr.MissingRequired = append(mappingErr.MissingRequired, key)
		}
	}

	if mappingErr.HasIssues() {
		return mappingErr
	}
	return nil
}

// Resolve partitions a mapping into direct bindings, computed bindings
// and skipped columns. Unknown field keys are a mapping error.
func Resolve(m domain.ColumnMapping, catalog domain.FieldCatalog) (domain.ResolvedMapping, error) {
	resolved := domain.ResolvedMapping{
		Direct:   make(map[string]string),
		Computed: make(map[string]string),
		Skipped:  make([]string, 0),
	}

	mappingErr := &domain.MappingError{}
	for header, target := range m {
		switch {
		case target == domain.MappingTargetSkip:
			resolved.Skipped = append(resolved.Skipped, header)
		case domain.IsComputedTarget(target):
			resolved.Computed[header] = target
		default:
			if _, ok := catalog.ByKey(target); !ok {
				mappingErr.UnknownTargets = append(mappingErr.UnknownTargets, target)
				continue
			}
			resolved.Direct[header] = target
		}
	}
	sort.Strings(resolved.Skipped)
	sort.Strings(mappingErr.UnknownTargets)

	if mappingErr.HasIssues() {
		return domain.ResolvedMapping{}, mappingErr
	}
	return resolved, nil
}
