package search

import (
	"sort"

	"github.com/gcbaptista/go-search-service/index"
	"github.com/gcbaptista/go-search-service/internal/query"
	"github.com/gcbaptista/go-search-service/internal/typoutil"
)

// matcher evaluates a compiled plan against one snapshot and produces the complete
// match set with BM25 scores.
type matcher struct {
	snap *index.Snapshot
	bm25 *BM25Calculator
}

func newMatcher(snap *index.Snapshot) *matcher {
	return &matcher{snap: snap, bm25: NewBM25Calculator(snap)}
}

// execute returns every document matching plan, ordered by score descending and then
// by internal document order.
func (m *matcher) execute(plan query.Plan) []candidateHit {
	set := m.match(plan)
	hits := make([]candidateHit, 0, len(set))
	for key, score := range set {
		hits = append(hits, candidateHit{key: key, id: m.snap.Doc(key).ID, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].key < hits[j].key
	})
	return hits
}

func (m *matcher) match(p query.Plan) matchSet {
	switch q := p.(type) {
	case *query.TermQuery:
		if len(q.Terms) == 1 {
			return m.matchTerm(q.Field, q.Terms[0], boostOf(q.Boost))
		}
		slots := make([]query.Slot, len(q.Terms))
		for i, term := range q.Terms {
			slots[i] = query.Slot{Term: term}
		}
		return m.matchPhrase(q.Field, slots, boostOf(q.Boost))
	case *query.FuzzyQuery:
		return m.matchFuzzy(q)
	case *query.PrefixQuery:
		return m.matchPrefix(q)
	case *query.PhraseQuery:
		return m.matchPhrase(q.Field, q.Slots, boostOf(q.Boost))
	case *query.TermSetQuery:
		return m.matchTermSet(q)
	case *query.ExistsQuery:
		set := make(matchSet)
		m.snap.ForEachLive(func(key index.DocKey) {
			if m.snap.HasValue(key, q.Field) {
				set[key] = constantScore
			}
		})
		return set
	case *query.BoolQuery:
		return m.matchBool(q)
	case *query.MatchAllQuery:
		return m.matchAll()
	}
	return matchSet{}
}

func boostOf(b float64) float64 {
	if b <= 0 {
		return 1
	}
	return b
}

func (m *matcher) matchAll() matchSet {
	set := make(matchSet, m.snap.NumDocs())
	m.snap.ForEachLive(func(key index.DocKey) {
		set[key] = constantScore
	})
	return set
}

// scoreTerm adds the BM25 score of term, scaled by factor, to every document of set
// containing it. A document matched through several variants keeps its best score.
func (m *matcher) scoreTerm(set matchSet, field, term string, factor float64) {
	type posting struct {
		key index.DocKey
		tf  int
	}
	var postings []posting
	m.snap.Postings(field, term, func(key index.DocKey, positions []int32) {
		postings = append(postings, posting{key: key, tf: len(positions)})
	})
	if len(postings) == 0 {
		return
	}

	idf := m.bm25.IDF(len(postings))
	for _, p := range postings {
		score := m.bm25.CalculateBM25(field, p.key, idf, p.tf) * factor
		if cur, ok := set[p.key]; !ok || score > cur {
			set[p.key] = score
		}
	}
}

func (m *matcher) matchTerm(field, term string, boost float64) matchSet {
	set := make(matchSet)
	m.scoreTerm(set, field, term, boost)
	return set
}

func (m *matcher) matchFuzzy(q *query.FuzzyQuery) matchSet {
	set := make(matchSet)
	boost := boostOf(q.Boost)
	for _, match := range typoutil.Neighbors(q.Term, m.snap.Terms(q.Field, ""), q.MaxEdits) {
		factor := boost
		if match.Distance > 0 {
			factor *= fuzzyScoreFactor
		}
		m.scoreTerm(set, q.Field, match.Term, factor)
	}
	return set
}

func (m *matcher) matchPrefix(q *query.PrefixQuery) matchSet {
	set := make(matchSet)
	boost := boostOf(q.Boost)
	for _, term := range m.snap.Terms(q.Field, q.Prefix) {
		factor := boost
		if term != q.Prefix {
			factor *= prefixScoreFactor
		}
		m.scoreTerm(set, q.Field, term, factor)
	}
	return set
}

// slotTerms returns the dictionary terms a phrase slot can match.
func (m *matcher) slotTerms(field string, slot query.Slot) []string {
	if slot.Prefix {
		return m.snap.Terms(field, slot.Term)
	}
	return []string{slot.Term}
}

// matchPhrase matches documents where the slots occur at consecutive positions.
func (m *matcher) matchPhrase(field string, slots []query.Slot, boost float64) matchSet {
	set := make(matchSet)
	if len(slots) == 0 {
		return set
	}

	positions := make([]map[index.DocKey]map[int32]bool, len(slots))
	for i, slot := range slots {
		byDoc := make(map[index.DocKey]map[int32]bool)
		for _, term := range m.slotTerms(field, slot) {
			m.snap.Postings(field, term, func(key index.DocKey, pos []int32) {
				if i > 0 && positions[0][key] == nil {
					return
				}
				p := byDoc[key]
				if p == nil {
					p = make(map[int32]bool, len(pos))
					byDoc[key] = p
				}
				for _, x := range pos {
					p[x] = true
				}
			})
		}
		if len(byDoc) == 0 {
			return set
		}
		positions[i] = byDoc
	}

	for key, starts := range positions[0] {
		for start := range starts {
			if phraseAt(positions, key, start) {
				set[key] = constantScore * boost
				break
			}
		}
	}
	return set
}

func phraseAt(positions []map[index.DocKey]map[int32]bool, key index.DocKey, start int32) bool {
	for i := 1; i < len(positions); i++ {
		if !positions[i][key][start+int32(i)] {
			return false
		}
	}
	return true
}

func (m *matcher) matchTermSet(q *query.TermSetQuery) matchSet {
	set := make(matchSet)
	boost := boostOf(q.Boost)
	for _, value := range q.Values {
		var matched matchSet
		if len(value) == 1 {
			matched = make(matchSet)
			m.snap.Postings(q.Field, value[0], func(key index.DocKey, _ []int32) {
				matched[key] = constantScore
			})
		} else {
			slots := make([]query.Slot, len(value))
			for i, term := range value {
				slots[i] = query.Slot{Term: term}
			}
			matched = m.matchPhrase(q.Field, slots, 1)
		}
		for key := range matched {
			set[key] = constantScore * boost
		}
	}
	return set
}

// matchBool intersects the required clauses, counts the optional ones and removes the
// excluded documents. Scores of every matching clause are summed. Without required
// clauses at least one optional clause must match.
func (m *matcher) matchBool(q *query.BoolQuery) matchSet {
	var result matchSet
	for i, clause := range q.Must {
		set := m.match(clause)
		if i == 0 {
			result = set
			continue
		}
		next := make(matchSet, len(result))
		for key, score := range result {
			if s, ok := set[key]; ok {
				next[key] = score + s
			}
		}
		result = next
	}

	if len(q.Should) > 0 {
		minShould := q.MinShould
		if len(q.Must) == 0 && minShould < 1 {
			minShould = 1
		}
		counts := make(map[index.DocKey]int)
		scores := make(matchSet)
		for _, clause := range q.Should {
			for key, s := range m.match(clause) {
				counts[key]++
				scores[key] += s
			}
		}
		if result == nil {
			result = make(matchSet, len(counts))
			for key, n := range counts {
				if n >= minShould {
					result[key] = scores[key]
				}
			}
		} else {
			for key := range result {
				if counts[key] < minShould {
					delete(result, key)
					continue
				}
				result[key] += scores[key]
			}
		}
	}

	if result == nil {
		result = m.matchAll()
	}
	for _, clause := range q.MustNot {
		for key := range m.match(clause) {
			delete(result, key)
		}
	}
	return result
}
