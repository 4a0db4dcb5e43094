package index

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/internal/tokenizer"
	"github.com/gcbaptista/go-search-service/model"
)

// positionGap separates the values of a multi-valued field so phrases never match
// across two values.
const positionGap = 100

// FieldIndex is the inverted index of one field within a segment.
type FieldIndex struct {
	Terms       map[string]PostingList
	Lengths     []uint32 // Token count per document ordinal
	TotalLength uint64
}

// Segment is an immutable batch of documents together with their inverted indexes.
// Segments are never modified once published; deletions are tracked by the Snapshot.
type Segment struct {
	ID     uint64
	Docs   []model.Document
	Fields map[string]*FieldIndex
}

// termPosition is a single analyzed token.
type termPosition struct {
	term string
	pos  int32
}

// buildSegment analyzes docs according to def and builds their inverted indexes.
func buildSegment(id uint64, def *config.IndexDefinition, docs []model.Document) *Segment {
	seg := &Segment{
		ID:     id,
		Docs:   docs,
		Fields: make(map[string]*FieldIndex),
	}

	for _, f := range def.Fields {
		if !f.Indexed {
			continue
		}
		fi := &FieldIndex{
			Terms:   make(map[string]PostingList),
			Lengths: make([]uint32, len(docs)),
		}
		for ord, doc := range docs {
			v, ok := doc.Fields[f.Name]
			if !ok {
				continue
			}
			tokens := analyzeValue(f, v)
			if len(tokens) == 0 {
				continue
			}
			fi.Lengths[ord] = uint32(len(tokens))
			fi.TotalLength += uint64(len(tokens))

			positions := make(map[string][]int32)
			order := make([]string, 0, len(tokens))
			for _, tp := range tokens {
				if _, seen := positions[tp.term]; !seen {
					order = append(order, tp.term)
				}
				positions[tp.term] = append(positions[tp.term], tp.pos)
			}
			for _, term := range order {
				fi.Terms[term] = append(fi.Terms[term], Posting{Doc: uint32(ord), Positions: positions[term]})
			}
		}
		seg.Fields[f.Name] = fi
	}

	return seg
}

// analyzeValue produces the indexed tokens of a typed value.
func analyzeValue(f config.FieldDefinition, v model.Value) []termPosition {
	var out []termPosition
	switch f.Type {
	case model.FieldTypeText:
		offset := int32(0)
		for _, s := range v.Strings() {
			toks := tokenizer.Tokenize(s)
			for i, tok := range toks {
				out = append(out, termPosition{term: tok, pos: offset + int32(i)})
			}
			offset += int32(len(toks)) + positionGap
		}
	case model.FieldTypeKeyword:
		for i, s := range v.Strings() {
			if norm := tokenizer.Normalize(s); norm != "" {
				out = append(out, termPosition{term: norm, pos: int32(i) * positionGap})
			}
		}
	case model.FieldTypeInteger, model.FieldTypeFloat, model.FieldTypeDate:
		out = append(out, termPosition{term: v.Key(), pos: 0})
	case model.FieldTypeJSON:
		offset := int32(0)
		for _, s := range flattenJSON(v.JSON) {
			toks := tokenizer.Tokenize(s)
			for i, tok := range toks {
				out = append(out, termPosition{term: tok, pos: offset + int32(i)})
			}
			offset += int32(len(toks)) + positionGap
		}
	}
	return out
}

// flattenJSON collects every scalar leaf of a JSON document as a string.
func flattenJSON(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var leaves []string
	var walk func(interface{})
	walk = func(node interface{}) {
		switch n := node.(type) {
		case map[string]interface{}:
			for _, child := range n {
				walk(child)
			}
		case []interface{}:
			for _, child := range n {
				walk(child)
			}
		case string:
			leaves = append(leaves, n)
		case float64:
			leaves = append(leaves, strconv.FormatFloat(n, 'g', -1, 64))
		case bool:
			leaves = append(leaves, strconv.FormatBool(n))
		}
	}
	walk(v)
	return leaves
}

// AnalyzeQuery turns a literal from a query into the terms it must match in field f.
// Literals for numeric and date fields are parsed and canonicalized; an unparsable
// literal is an error.
func AnalyzeQuery(f config.FieldDefinition, literal string) ([]string, error) {
	switch f.Type {
	case model.FieldTypeText, model.FieldTypeJSON:
		return tokenizer.Tokenize(literal), nil
	case model.FieldTypeKeyword:
		if norm := tokenizer.Normalize(literal); norm != "" {
			return []string{norm}, nil
		}
		return nil, nil
	case model.FieldTypeInteger:
		i, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a valid integer for field '%s'", literal, f.Name)
		}
		return []string{model.IntValue(i).Key()}, nil
	case model.FieldTypeFloat:
		fl, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a valid number for field '%s'", literal, f.Name)
		}
		return []string{model.FloatValue(fl).Key()}, nil
	case model.FieldTypeDate:
		t, err := model.ParseDate(literal)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a valid date for field '%s'", literal, f.Name)
		}
		return []string{model.DateValue(t).Key()}, nil
	}
	return nil, fmt.Errorf("field '%s' has unsupported type '%s'", f.Name, f.Type)
}
