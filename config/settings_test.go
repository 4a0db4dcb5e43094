package config

import (
	"strings"
	"testing"

	"github.com/gcbaptista/go-search-service/model"
)

func TestValidateIndexName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"books", true},
		{"my-index_2", true},
		{"A", true},
		{strings.Repeat("a", 64), true},
		{"", false},
		{"1books", false},
		{"_books", false},
		{"-books", false},
		{"my index", false},
		{"my.index", false},
		{"../etc", false},
		{"a/b", false},
		{`a\b`, false},
		{strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ValidateIndexName(tt.name)
			if tt.valid && msg != "" {
				t.Errorf("expected %q to be valid, got %q", tt.name, msg)
			}
			if !tt.valid && msg == "" {
				t.Errorf("expected %q to be invalid", tt.name)
			}
		})
	}
}

func TestIndexDefinitionValidate(t *testing.T) {
	valid := IndexDefinition{
		Name: "books",
		Fields: []FieldDefinition{
			{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
			{Name: "genre", Type: model.FieldTypeKeyword, Stored: true, Indexed: true, Fast: true},
			{Name: "year", Type: model.FieldTypeInteger, Stored: true, Fast: true},
			{Name: "published", Type: model.FieldTypeDate, Stored: true, Indexed: true, Fast: true},
			{Name: "meta", Type: model.FieldTypeJSON, Stored: true},
		},
	}
	if conflicts := valid.Validate(); len(conflicts) != 0 {
		t.Fatalf("expected valid definition, got %v", conflicts)
	}

	tests := []struct {
		name   string
		mutate func(def *IndexDefinition)
		want   string
	}{
		{"duplicate field", func(def *IndexDefinition) {
			def.Fields = append(def.Fields, FieldDefinition{Name: "title", Type: model.FieldTypeText, Indexed: true})
		}, "Duplicate field 'title'"},
		{"unknown type", func(def *IndexDefinition) {
			def.Fields[0].Type = "blob"
		}, "Invalid field_type 'blob'"},
		{"fast text", func(def *IndexDefinition) {
			def.Fields[0].Fast = true
		}, "cannot be fast"},
		{"reserved prefix", func(def *IndexDefinition) {
			def.Fields[0].Name = "_exists_"
		}, "cannot start with an underscore"},
		{"reserved character", func(def *IndexDefinition) {
			def.Fields[0].Name = "ti:tle"
		}, "reserved by the query syntax"},
		{"no fields", func(def *IndexDefinition) {
			def.Fields = nil
		}, "at least one field"},
		{"bad name", func(def *IndexDefinition) {
			def.Name = "9lives"
		}, "must start with a letter"},
		{"unused field", func(def *IndexDefinition) {
			def.Fields[4].Stored = false
		}, "must be stored, indexed or fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := valid.Clone()
			tt.mutate(&def)
			conflicts := def.Validate()
			found := false
			for _, c := range conflicts {
				if strings.Contains(c, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a conflict containing %q, got %v", tt.want, conflicts)
			}
		})
	}
}

func TestDefaultSearchFields(t *testing.T) {
	def := IndexDefinition{
		Name: "books",
		Fields: []FieldDefinition{
			{Name: "title", Type: model.FieldTypeText, Indexed: true},
			{Name: "year", Type: model.FieldTypeInteger, Indexed: true, Fast: true},
			{Name: "body", Type: model.FieldTypeText, Stored: true},
			{Name: "genre", Type: model.FieldTypeKeyword, Indexed: true},
		},
	}

	got := def.DefaultSearchFields()
	if len(got) != 2 || got[0] != "title" || got[1] != "genre" {
		t.Errorf("expected [title genre], got %v", got)
	}

	f, ok := def.Field("year")
	if !ok || !f.Sortable() {
		t.Errorf("expected year to be sortable")
	}
	if _, ok := def.Field("missing"); ok {
		t.Errorf("expected missing field lookup to fail")
	}
}
