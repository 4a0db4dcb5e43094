package indexing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/gcbaptista/go-search-service/config"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
)

// ConvertDocument validates raw against def and converts its fields to typed values.
// Null values are treated as absent. Unknown fields are rejected.
func ConvertDocument(def *config.IndexDefinition, raw model.RawDocument) (model.Document, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.Document{}, internalErrors.NewValidationError("id", "document id is required and cannot be empty")
	}

	doc := model.Document{ID: id, Fields: make(map[string]model.Value, len(raw.Fields))}
	for name, rawValue := range raw.Fields {
		f, ok := def.Field(name)
		if !ok {
			return model.Document{}, internalErrors.NewValidationError(name, fmt.Sprintf("field '%s' is not declared in the schema of index '%s'", name, def.Name))
		}
		if rawValue == nil {
			continue
		}
		v, err := convertValue(f, rawValue)
		if err != nil {
			return model.Document{}, internalErrors.NewValidationError(name, err.Error())
		}
		if v != nil {
			doc.Fields[name] = *v
		}
	}
	return doc, nil
}

func convertValue(f config.FieldDefinition, raw interface{}) (*model.Value, error) {
	switch f.Type {
	case model.FieldTypeText, model.FieldTypeKeyword:
		strs, err := toStrings(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a string or an array of strings for %s field: %w", f.Type, err)
		}
		if len(strs) == 0 {
			return nil, nil
		}
		v := model.Value{Kind: f.Type, Str: strs[0]}
		if len(strs) > 1 {
			v.Strs = strs
		}
		return &v, nil

	case model.FieldTypeInteger:
		n, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		v := model.IntValue(n)
		return &v, nil

	case model.FieldTypeFloat:
		n, ok := toFloat(raw)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("expected a number, got %v", raw)
		}
		v := model.FloatValue(n)
		return &v, nil

	case model.FieldTypeDate:
		switch d := raw.(type) {
		case string:
			t, err := model.ParseDate(d)
			if err != nil {
				return nil, err
			}
			v := model.DateValue(t)
			return &v, nil
		default:
			n, err := toInt(raw)
			if err != nil {
				return nil, fmt.Errorf("expected an ISO-8601 date string or a unix timestamp: %w", err)
			}
			t, err := model.ParseDate(strconv.FormatInt(n, 10))
			if err != nil {
				return nil, err
			}
			v := model.DateValue(t)
			return &v, nil
		}

	case model.FieldTypeJSON:
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("value cannot be encoded as JSON: %w", err)
		}
		v := model.JSONValue(data)
		return &v, nil
	}
	return nil, fmt.Errorf("unsupported field type '%s'", f.Type)
}

func toStrings(raw interface{}) ([]string, error) {
	switch s := raw.(type) {
	case []string:
		return s, nil
	case []interface{}:
		out := make([]string, 0, len(s))
		for i, item := range s {
			str, ok := scalarString(item)
			if !ok {
				return nil, fmt.Errorf("element %d is %T", i, item)
			}
			out = append(out, str)
		}
		return out, nil
	}
	if str, ok := scalarString(raw); ok {
		return []string{str}, nil
	}
	return nil, fmt.Errorf("got %T", raw)
}

// scalarString renders strings, numbers and bools as text.
func scalarString(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// maxExactInt is the largest magnitude a float64 holds without losing integer precision.
const maxExactInt = 1 << 53

// toInt converts raw to an int64 without rounding. Floats are accepted only when
// they are integral and within ±2^53; numeric strings and json.Number are parsed
// exactly.
func toInt(raw interface{}) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case float64:
		return exactInt(n, raw)
	case float32:
		return exactInt(float64(n), raw)
	case json.Number:
		return parseInt(n.String())
	case string:
		return parseInt(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("expected an integer, got %T", raw)
}

func parseInt(s string) (int64, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("integer %s is out of range", s)
	}
	// Exponent or decimal forms such as 1e3 or 12.0.
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, fmt.Errorf("expected an integer, got %q", s)
	}
	return exactInt(f, s)
}

func exactInt(f float64, raw interface{}) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %v", raw)
	}
	if f > maxExactInt || f < -maxExactInt {
		return 0, fmt.Errorf("integer %v is out of the exactly representable range", raw)
	}
	return int64(f), nil
}

func toFloat(raw interface{}) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ConvertBatch converts every document of raws on pool. When at least one document
// is invalid the error of the lowest position is returned, naming that position.
// A nil pool converts sequentially.
func ConvertBatch(pool *ants.Pool, def *config.IndexDefinition, raws []model.RawDocument) ([]model.Document, error) {
	docs, errs := convertEach(pool, def, raws)
	for i, err := range errs {
		if err != nil {
			return nil, positionError(i, err)
		}
	}
	return docs, nil
}

// convertEach converts raws independently and returns one result and one error per
// position.
func convertEach(pool *ants.Pool, def *config.IndexDefinition, raws []model.RawDocument) ([]model.Document, []error) {
	docs := make([]model.Document, len(raws))
	errs := make([]error, len(raws))

	if pool == nil {
		for i, raw := range raws {
			docs[i], errs[i] = ConvertDocument(def, raw)
		}
		return docs, errs
	}

	var wg sync.WaitGroup
	for i := range raws {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			docs[i], errs[i] = ConvertDocument(def, raws[i])
		}
		if err := pool.Submit(task); err != nil {
			// The pool is closed or overloaded; convert inline.
			task()
		}
	}
	wg.Wait()
	return docs, errs
}

// positionError prefixes the field of a validation error with the document position.
func positionError(pos int, err error) error {
	var ve *internalErrors.ValidationError
	if errors.As(err, &ve) {
		return internalErrors.NewValidationError(fmt.Sprintf("documents[%d].%s", pos, ve.Field), ve.Message)
	}
	return err
}
