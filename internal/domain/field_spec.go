package domain

import "strings"

// FieldType enumerates the semantic types a destination field can take.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeDecimal  FieldType = "decimal"
	FieldTypeDate     FieldType = "date"
	FieldTypeDateTime FieldType = "datetime"
)

// FieldSpec describes one destination field in the import catalog.
type FieldSpec struct {
	Key      string    `json:"key" mapstructure:"key"`
	Label    string    `json:"label" mapstructure:"label"`
	Required bool      `json:"required" mapstructure:"required"`
	Type     FieldType `json:"type" mapstructure:"type"`
	Computed bool      `json:"computed" mapstructure:"computed"`
}

// FieldCatalog is the ordered set of destination fields a mapping can target.
type FieldCatalog []FieldSpec

// ByKey looks a field up by its unique key.
func (c FieldCatalog) ByKey(key string) (FieldSpec, bool) {
	for _, field := range c {
		if field.Key == key {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// RequiredKeys returns the keys of all required, non-computed fields in catalog order.
func (c FieldCatalog) RequiredKeys() []string {
	keys := make([]string, 0)
	for _, field := range c {
		if field.Required && !field.Computed {
			keys = append(keys, field.Key)
		}
	}
	return keys
}

// Normalize trims keys and labels so catalog entries loaded from
// configuration compare cleanly against mapping targets.
func (c FieldCatalog) Normalize() FieldCatalog {
	normalized := make(FieldCatalog, 0, len(c))
	for _, field := range c {
		field.Key = strings.TrimSpace(field.Key)
		field.Label = strings.TrimSpace(field.Label)
		if field.Key == "" {
			continue
		}
		if field.Type == "" {
			field.Type = FieldTypeString
		}
		normalized = append(normalized, field)
	}
	return normalized
}
