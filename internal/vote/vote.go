// Package vote accumulates per-field candidates and merges them into a
// single winner per field.
package vote

import (
	"sort"

	"github.com/devisflow/docextract/internal/fields"
)

// ConcordanceBoost is the flat score bonus applied to every candidate
// whose value was independently proposed by at least two distinct
// sources. Corroboration across extraction strategies is strong
// evidence.
const ConcordanceBoost = 0.15

// Store collects candidates for one document. Created fresh per
// extraction, never shared.
type Store struct {
	cands []fields.Candidate
}

func NewStore() *Store {
	return &Store{}
}

// Add appends candidates; insertion order is preserved so resolution is
// deterministic for an identical candidate multiset.
func (s *Store) Add(cands ...fields.Candidate) {
	s.cands = append(s.cands, cands...)
}

// Candidates returns all candidates proposed for a field, in insertion
// order.
func (s *Store) Candidates(f fields.Field) []fields.Candidate {
	var out []fields.Candidate
	for _, c := range s.cands {
		if c.Field == f {
			out = append(out, c)
		}
	}
	return out
}

// Resolve votes every field and returns the winners plus a full trace of
// what was considered.
func (s *Store) Resolve() (fields.FieldSet, []fields.CandidateTrace) {
	fs := make(fields.FieldSet)
	var trace []fields.CandidateTrace
	for _, f := range fields.All {
		cands := s.Candidates(f)
		if len(cands) == 0 {
			continue
		}
		winner, ok := vote(cands)
		if ok {
			fs[f] = winner.Value
		}
		winKey := winner.Value.Key()
		for _, c := range cands {
			trace = append(trace, fields.CandidateTrace{
				Field:  c.Field,
				Value:  c.Value.String(),
				Score:  c.Score,
				Source: c.Source,
				Won:    ok && c.Value.Key() == winKey,
			})
		}
	}
	return fs, trace
}

// vote groups candidates by value (not source), sums scores per group
// after the concordance boost, and picks the group with the highest sum.
// The returned representative is the group's best-scored candidate,
// tie-broken by source priority.
func vote(cands []fields.Candidate) (fields.Candidate, bool) {
	if len(cands) == 0 {
		return fields.Candidate{}, false
	}

	boosted := applyConcordanceBoost(cands)

	type group struct {
		sum   float64
		first int // insertion index of first member, for stable ordering
		best  fields.Candidate
	}
	groups := make(map[string]*group)
	var order []string
	for i, c := range boosted {
		key := c.Value.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{first: i, best: c}
			groups[key] = g
			order = append(order, key)
		}
		g.sum += c.Score
		if better(c, g.best) {
			g.best = c
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		gi, gj := groups[order[i]], groups[order[j]]
		if gi.sum != gj.sum {
			return gi.sum > gj.sum
		}
		return gi.first < gj.first
	})
	return groups[order[0]].best, true
}

// better reports whether a beats b as a group representative: higher
// individual score first, then source priority
// (Template > Layout > Regex > RemoteModel).
func better(a, b fields.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Source.Priority() > b.Source.Priority()
}

// applyConcordanceBoost returns boosted copies of candidates whose value
// is shared by ≥2 distinct sources. Original candidates are never
// re-scored in place.
func applyConcordanceBoost(cands []fields.Candidate) []fields.Candidate {
	sources := make(map[string]map[fields.Source]struct{})
	for _, c := range cands {
		key := c.Value.Key()
		if sources[key] == nil {
			sources[key] = make(map[fields.Source]struct{})
		}
		sources[key][c.Source] = struct{}{}
	}

	out := make([]fields.Candidate, len(cands))
	for i, c := range cands {
		out[i] = c
		if len(sources[c.Value.Key()]) >= 2 {
			out[i].Score = min(1, c.Score+ConcordanceBoost)
		}
	}
	return out
}
