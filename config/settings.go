// Package config provides configuration structures for the search service.
// It defines index schemas and the process configuration loaded from the environment.
package config

import (
	"regexp"
	"strings"
	"time"

	"github.com/gcbaptista/go-search-service/model"
)

const (
	// MaxIndexNameLength is the longest accepted index name.
	MaxIndexNameLength = 64
	// MaxDocumentsPerRequest bounds the number of documents accepted by a single indexing call.
	MaxDocumentsPerRequest = 1000
	// MaxBulkOperations bounds the number of operations in a single bulk request.
	MaxBulkOperations = 1000
	// MaxResultLimit is the silent cap applied to the requested result limit.
	MaxResultLimit = 1000
	// DefaultResultLimit is used when a search request does not set a limit.
	DefaultResultLimit = 10
)

var indexNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// FieldDefinition declares a single field of an index schema.
//
// Stored fields are returned in results, indexed fields are searchable and fast fields
// can be used for sorting and aggregations.
type FieldDefinition struct {
	Name    string          `json:"name"`
	Type    model.FieldType `json:"field_type"`
	Stored  bool            `json:"stored"`
	Indexed bool            `json:"indexed"`
	Fast    bool            `json:"fast"`
}

// IndexDefinition is the schema of an index. It is immutable after creation.
type IndexDefinition struct {
	Name      string            `json:"name"`
	Fields    []FieldDefinition `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

// Field looks up a field definition by name.
func (def *IndexDefinition) Field(name string) (FieldDefinition, bool) {
	for _, f := range def.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// DefaultSearchFields returns the indexed text, keyword and json fields, in schema order.
// They are searched when a query does not scope a term to a field.
func (def *IndexDefinition) DefaultSearchFields() []string {
	var fields []string
	for _, f := range def.Fields {
		if f.Indexed && f.Type.IsTextual() {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// ValidateIndexName checks the index name constraints and returns a description of
// the first violation, or an empty string.
func ValidateIndexName(name string) string {
	switch {
	case name == "":
		return "index name cannot be empty"
	case len(name) > MaxIndexNameLength:
		return "index name cannot be longer than 64 characters"
	case strings.Contains(name, "..") || strings.ContainsAny(name, `/\`):
		return "index name cannot contain path separators"
	case !indexNameRegex.MatchString(name):
		return "index name must start with a letter and contain only letters, digits, underscores and hyphens"
	}
	return ""
}

// Validate checks the whole definition and returns every violation found.
func (def *IndexDefinition) Validate() []string {
	var conflicts []string

	if msg := ValidateIndexName(def.Name); msg != "" {
		conflicts = append(conflicts, msg)
	}
	if len(def.Fields) == 0 {
		conflicts = append(conflicts, "index must declare at least one field")
	}

	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		conflicts = append(conflicts, f.validate()...)
		if seen[f.Name] {
			conflicts = append(conflicts, "Duplicate field '"+f.Name+"' found in fields")
		}
		seen[f.Name] = true
	}

	return conflicts
}

func (f FieldDefinition) validate() []string {
	var errors []string

	name := f.Name
	switch {
	case strings.TrimSpace(name) == "":
		errors = append(errors, "Field name cannot be empty or whitespace-only")
		return errors
	case strings.HasPrefix(name, "_"):
		errors = append(errors, "Field '"+name+"' cannot start with an underscore")
	case strings.ContainsAny(name, ": \t\n()\"[]"):
		errors = append(errors, "Field '"+name+"' contains characters reserved by the query syntax")
	}

	if !f.Type.IsValid() {
		errors = append(errors, "Invalid field_type '"+string(f.Type)+"' for field '"+name+"' (must be text, keyword, integer, float, date or json)")
		return errors
	}
	if f.Fast && !(f.Type.IsNumeric() || f.Type == model.FieldTypeKeyword) {
		errors = append(errors, "Field '"+name+"' of type '"+string(f.Type)+"' cannot be fast")
	}
	if !f.Stored && !f.Indexed && !f.Fast {
		errors = append(errors, "Field '"+name+"' must be stored, indexed or fast")
	}

	return errors
}

// Sortable reports whether the field can be used to sort results.
func (f FieldDefinition) Sortable() bool {
	return f.Fast && f.Type.IsNumeric()
}

// FieldStats describes every field of the definition, in schema order.
func (def *IndexDefinition) FieldStats() []model.FieldStats {
	stats := make([]model.FieldStats, len(def.Fields))
	for i, f := range def.Fields {
		stats[i] = model.FieldStats{Name: f.Name, Type: f.Type, Indexed: f.Indexed, Stored: f.Stored, Fast: f.Fast}
	}
	return stats
}

// Clone returns a deep copy of the definition.
func (def IndexDefinition) Clone() IndexDefinition {
	out := def
	out.Fields = append([]FieldDefinition(nil), def.Fields...)
	return out
}

// StoredFields returns the subset of fields whose definition is stored.
func (def *IndexDefinition) StoredFields(fields map[string]model.Value) map[string]model.Value {
	out := make(map[string]model.Value, len(fields))
	for _, f := range def.Fields {
		if !f.Stored {
			continue
		}
		if v, ok := fields[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
