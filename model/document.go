package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType is the declared type of a field in an index schema.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeKeyword FieldType = "keyword"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeDate    FieldType = "date"
	FieldTypeJSON    FieldType = "json"
)

// IsValid reports whether t is one of the supported field types.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeKeyword, FieldTypeInteger, FieldTypeFloat, FieldTypeDate, FieldTypeJSON:
		return true
	}
	return false
}

// IsNumeric reports whether values of type t can be sorted and used in metric aggregations.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeInteger || t == FieldTypeFloat || t == FieldTypeDate
}

// IsTextual reports whether values of type t are strings that can be searched by default.
func (t FieldType) IsTextual() bool {
	return t == FieldTypeText || t == FieldTypeKeyword || t == FieldTypeJSON
}

// Value is a typed field value. Kind selects which of the other fields is set.
// Text and keyword fields may be multi-valued, in which case Strs holds every value
// and Str holds the first one.
type Value struct {
	Kind  FieldType
	Str   string
	Strs  []string
	Int   int64
	Float float64
	Time  time.Time
	JSON  json.RawMessage
}

// TextValue creates a text value.
func TextValue(s string) Value { return Value{Kind: FieldTypeText, Str: s} }

// KeywordValue creates a keyword value.
func KeywordValue(s string) Value { return Value{Kind: FieldTypeKeyword, Str: s} }

// IntValue creates an integer value.
func IntValue(i int64) Value { return Value{Kind: FieldTypeInteger, Int: i} }

// FloatValue creates a float value.
func FloatValue(f float64) Value { return Value{Kind: FieldTypeFloat, Float: f} }

// DateValue creates a date value normalized to UTC.
func DateValue(t time.Time) Value { return Value{Kind: FieldTypeDate, Time: t.UTC()} }

// JSONValue creates a json value from an already-encoded payload.
func JSONValue(raw json.RawMessage) Value { return Value{Kind: FieldTypeJSON, JSON: raw} }

// Strings returns every string held by a text or keyword value.
func (v Value) Strings() []string {
	if len(v.Strs) > 0 {
		return v.Strs
	}
	if v.Str == "" {
		return nil
	}
	return []string{v.Str}
}

// Number returns the numeric representation used for sorting and aggregations.
// Dates are represented as unix milliseconds.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case FieldTypeInteger:
		return float64(v.Int), true
	case FieldTypeFloat:
		return v.Float, true
	case FieldTypeDate:
		return float64(v.Time.UnixMilli()), true
	}
	return 0, false
}

// Key returns a canonical string form of the value, used as a bucket key and for
// term matching on non-text fields.
func (v Value) Key() string {
	switch v.Kind {
	case FieldTypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case FieldTypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case FieldTypeDate:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case FieldTypeJSON:
		return string(v.JSON)
	}
	return v.Str
}

// Interface returns the value as a plain Go value suitable for JSON encoding.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case FieldTypeText, FieldTypeKeyword:
		if len(v.Strs) > 1 {
			return v.Strs
		}
		return v.Str
	case FieldTypeInteger:
		return v.Int
	case FieldTypeFloat:
		return v.Float
	case FieldTypeDate:
		return v.Time.UTC().Format(time.RFC3339)
	case FieldTypeJSON:
		return v.JSON
	}
	return nil
}

// MarshalJSON encodes the value as its plain JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// ParseDate parses an RFC 3339 timestamp, a plain YYYY-MM-DD date or a unix timestamp
// in seconds. The result is in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as an ISO-8601 date or unix timestamp", s)
}

// Document is a schema-validated document. ID is the caller-supplied external id.
type Document struct {
	ID     string           `json:"id"`
	Fields map[string]Value `json:"fields"`
}

// RawDocument is a document as received from a caller, before it has been validated
// against an index schema.
type RawDocument struct {
	ID     string                 `json:"id" binding:"required"`
	Fields map[string]interface{} `json:"fields"`
}

// BulkOperation is a single operation in a bulk request.
type BulkOperation struct {
	Operation string       `json:"operation" binding:"required,oneof=index delete"`
	Document  *RawDocument `json:"document,omitempty"`
	ID        string       `json:"id,omitempty"`
}

// BulkError describes why a single bulk operation failed.
type BulkError struct {
	Position int    `json:"position"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error"`
}

// BulkResponse summarises the outcome of a bulk request.
type BulkResponse struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Errors     []BulkError `json:"errors,omitempty"`
}
