package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devisflow/docextract/internal/fields"
)

func cand(f fields.Field, v fields.Value, score float64, src fields.Source) fields.Candidate {
	return fields.Candidate{Field: f, Value: v, Score: score, Source: src}
}

func TestResolve_GroupsByValueNotSource(t *testing.T) {
	s := NewStore()
	// Two weak sources agreeing beat one strong disagreeing source:
	// 0.6+0.15 boost each = 1.5 summed vs 0.9.
	s.Add(
		cand(fields.TTC, fields.Amount(5760), 0.6, fields.SourceRegex),
		cand(fields.TTC, fields.Amount(5760), 0.6, fields.SourceLayout),
		cand(fields.TTC, fields.Amount(9999), 0.9, fields.SourceTemplate),
	)
	fs, _ := s.Resolve()
	v, ok := fs.Amount(fields.TTC)
	require.True(t, ok)
	assert.Equal(t, 5760.0, v)
}

func TestResolve_Determinism(t *testing.T) {
	mk := func() *Store {
		s := NewStore()
		s.Add(
			cand(fields.HT, fields.Amount(100), 0.7, fields.SourceRegex),
			cand(fields.HT, fields.Amount(200), 0.7, fields.SourceLayout),
		)
		return s
	}
	first, _ := mk().Resolve()
	for i := 0; i < 50; i++ {
		fs, _ := mk().Resolve()
		assert.Equal(t, first, fs)
	}
	// Equal sums: the first-inserted value group wins.
	v, _ := first.Amount(fields.HT)
	assert.Equal(t, 100.0, v)
}

func TestResolve_SourcePriorityTieBreak(t *testing.T) {
	s := NewStore()
	s.Add(
		cand(fields.SIRET, fields.Text("12345678900012"), 0.8, fields.SourceRegex),
		cand(fields.SIRET, fields.Text("12345678900012"), 0.8, fields.SourceLayout),
	)
	fs, trace := s.Resolve()
	require.True(t, fs.Has(fields.SIRET))

	// Both candidates share the winning value.
	for _, tr := range trace {
		assert.True(t, tr.Won)
	}

	// Representative choice is exercised through vote internals: same
	// score, layout outranks regex.
	winner, ok := vote(s.Candidates(fields.SIRET))
	require.True(t, ok)
	assert.Equal(t, fields.SourceLayout, winner.Source)
}

func TestConcordanceBoost(t *testing.T) {
	cands := []fields.Candidate{
		cand(fields.TTC, fields.Amount(5760), 0.6, fields.SourceRegex),
		cand(fields.TTC, fields.Amount(5760), 0.7, fields.SourceLayout),
		cand(fields.TTC, fields.Amount(100), 0.9, fields.SourceRegex),
	}
	boosted := applyConcordanceBoost(cands)

	assert.InDelta(t, 0.75, boosted[0].Score, 1e-9)
	assert.InDelta(t, 0.85, boosted[1].Score, 1e-9)
	// Unique value: untouched.
	assert.InDelta(t, 0.9, boosted[2].Score, 1e-9)
	// Originals are not mutated.
	assert.InDelta(t, 0.6, cands[0].Score, 1e-9)
}

func TestConcordanceBoost_SameSourceTwiceDoesNotCount(t *testing.T) {
	cands := []fields.Candidate{
		cand(fields.TTC, fields.Amount(5760), 0.6, fields.SourceRegex),
		cand(fields.TTC, fields.Amount(5760), 0.7, fields.SourceRegex),
	}
	boosted := applyConcordanceBoost(cands)
	assert.InDelta(t, 0.6, boosted[0].Score, 1e-9)
	assert.InDelta(t, 0.7, boosted[1].Score, 1e-9)
}

func TestResolve_Monotonicity(t *testing.T) {
	// Adding a corroborating candidate never flips the winner away.
	base := []fields.Candidate{
		cand(fields.TTC, fields.Amount(5760), 0.7, fields.SourceLayout),
		cand(fields.TTC, fields.Amount(100), 0.6, fields.SourceRegex),
	}
	s := NewStore()
	s.Add(base...)
	fs, _ := s.Resolve()
	v, _ := fs.Amount(fields.TTC)
	require.Equal(t, 5760.0, v)

	s2 := NewStore()
	s2.Add(base...)
	s2.Add(cand(fields.TTC, fields.Amount(5760), 0.5, fields.SourceRemoteModel))
	fs2, _ := s2.Resolve()
	v2, _ := fs2.Amount(fields.TTC)
	assert.Equal(t, 5760.0, v2)
}

func TestResolve_EmptyFieldYieldsNothing(t *testing.T) {
	s := NewStore()
	fs, trace := s.Resolve()
	assert.Empty(t, fs)
	assert.Empty(t, trace)
}
