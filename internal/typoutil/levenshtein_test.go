package typoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		limit int
		want  int
	}{
		{"both empty", "", "", 1, 0},
		{"one empty", "", "ab", 2, 2},
		{"identical", "eventyr", "eventyr", 1, 0},
		{"deletion", "eventyr", "evntyr", 1, 1},
		{"insertion", "evntyr", "eventyr", 1, 1},
		{"substitution", "kitten", "sitten", 1, 1},
		{"adjacent swap", "eventyr", "evetnyr", 1, 1},
		{"over the limit", "eventyr", "evnyr", 1, 2},
		{"length gap", "abc", "abcdef", 1, 2},
		{"runes", "blåbær", "blabær", 1, 1},
		{"several edits", "saturday", "sunday", 5, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b, tt.limit))
		})
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("wolf", "wolf", 0))
	assert.True(t, Within("wolf", "wlof", 1))
	assert.False(t, Within("wolf", "owl", 1))
}

func TestNeighbors(t *testing.T) {
	dictionary := []string{"eventyr", "eventyret", "ulven", "event", "evntyr"}

	matches := Neighbors("evntyr", dictionary, 1)
	require.Len(t, matches, 2)
	assert.Equal(t, Match{Term: "eventyr", Distance: 1}, matches[0])
	assert.Equal(t, Match{Term: "evntyr", Distance: 0}, matches[1])

	assert.Empty(t, Neighbors("", dictionary, 1))
}
