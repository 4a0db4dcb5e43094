// Package typoutil implements the edit distance used by fuzzy term matching.
package typoutil

// EditDistance returns the optimal string alignment distance between a and b, where
// an insertion, a deletion, a substitution or a swap of two adjacent runes each
// count as one edit. Once the distance is known to exceed limit it stops and
// returns limit + 1.
func EditDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	switch {
	case len(ra) == 0:
		return len(rb)
	case len(rb) == 0:
		return len(ra)
	}

	// rows[0] is two rows back, rows[1] the previous row, rows[2] the current one.
	width := len(rb) + 1
	rows := [3][]int{make([]int, width), make([]int, width), make([]int, width)}
	for j := range rows[1] {
		rows[1][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		back, prev, cur := rows[0], rows[1], rows[2]
		cur[0] = i
		best := i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], back[j-2]+cost)
			}
			best = min(best, cur[j])
		}
		if best > limit {
			return limit + 1
		}
		rows[0], rows[1], rows[2] = prev, cur, back
	}
	return rows[1][len(rb)]
}

// Within reports whether candidate is at most limit edits away from term.
func Within(term, candidate string, limit int) bool {
	return EditDistance(term, candidate, limit) <= limit
}

// Match is a dictionary term within the allowed distance of a query term.
type Match struct {
	Term     string
	Distance int
}

// Neighbors returns the terms of dictionary within limit edits of term, exact match
// included, in dictionary order.
func Neighbors(term string, dictionary []string, limit int) []Match {
	matches := []Match{}
	if term == "" {
		return matches
	}
	for _, candidate := range dictionary {
		if d := EditDistance(term, candidate, limit); d <= limit {
			matches = append(matches, Match{Term: candidate, Distance: d})
		}
	}
	return matches
}
