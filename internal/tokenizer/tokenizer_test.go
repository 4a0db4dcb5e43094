package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", []string{}},
		{"simple lowercase", "hello world", []string{"hello", "world"}},
		{"with punctuation", "hello, world!", []string{"hello", "world"}},
		{"with numbers", "item123 test", []string{"item123", "test"}},
		{"leading/trailing spaces", "  hello world  ", []string{"hello", "world"}},
		{"all caps word", "HELLO WORLD", []string{"hello", "world"}},
		{"string with hyphen", "state-of-the-art", []string{"state", "of", "the", "art"}},
		{"string with underscore", "my_variable_name", []string{"my", "variable", "name"}},
		{"norwegian letters", "Blåbærsyltetøy på Ål", []string{"blåbærsyltetøy", "på", "ål"}},
		{"only symbols", "!@#$%^", []string{}},
		{"mixed with numbers and symbols", "API_v1.0-beta!", []string{"api", "v1", "0", "beta"}},
		{"long token dropped", "short " + strings.Repeat("x", MaxTokenLength+1), []string{"short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenizeWithOffsets(t *testing.T) {
	text := "Den store, stygge ulven"
	tokens := TokenizeWithOffsets(text)

	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if tok.Position != i {
			t.Errorf("token %d has position %d", i, tok.Position)
		}
		if !strings.EqualFold(text[tok.Start:tok.End], tok.Text) {
			t.Errorf("offsets of %q point at %q", tok.Text, text[tok.Start:tok.End])
		}
	}
}

func TestKeywordsOnly(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Hva er en tariffavtale?", []string{"tariffavtale"}},
		{"what is the capital of Norway", []string{"capital", "norway"}},
		{"hva er det", nil},
	}

	for _, tt := range tests {
		got := KeywordsOnly(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("KeywordsOnly(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  In-Stock "); got != "in-stock" {
		t.Errorf("Normalize() = %q", got)
	}
}
