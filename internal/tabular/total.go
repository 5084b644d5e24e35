package tabular

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/locale"
)

// TotalScore is the fixed score for the single candidate this reader
// emits: tabular headers are position-anchored, so it counts as a
// layout-class source.
const TotalScore = 0.8

// totalHeaders is the ordered alternative list matched as substrings
// against lowercased column headers. First header to match wins.
var totalHeaders = []string{"total", "montant", "ttc", "net"}

// InferTotal scans the header for a totals-like column and sums it
// across rows. It emits exactly one candidate (ttc, or net when the
// header says net) and no HT/TVA inference; tabular data does not carry
// enough structure to split tax reliably.
func InferTotal(rows []Row) (fields.Candidate, bool) {
	if len(rows) == 0 {
		return fields.Candidate{}, false
	}

	col, ok := totalColumn(rows[0])
	if !ok {
		return fields.Candidate{}, false
	}

	target := fields.TTC
	if strings.Contains(strings.ToLower(col), "net") {
		target = fields.Net
	}

	sum := decimal.Zero
	found := false
	for _, row := range rows {
		cell, ok := row[col]
		if !ok || cell == "" {
			continue
		}
		v, ok := locale.NormalizeNumber(cell)
		if !ok {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(v))
		found = true
	}
	if !found {
		return fields.Candidate{}, false
	}

	total, _ := sum.Round(2).Float64()
	return fields.Candidate{
		Field:  target,
		Value:  fields.Amount(total),
		Score:  TotalScore,
		Source: fields.SourceLayout,
	}, true
}

// totalColumn picks the column whose header matches the earliest
// alternative; headers are compared lowercased, as substrings. Iteration
// over the row map is made deterministic by scanning alternatives first
// and then choosing the lexicographically smallest matching header.
func totalColumn(row Row) (string, bool) {
	for _, alt := range totalHeaders {
		best := ""
		for key := range row {
			if strings.Contains(strings.ToLower(key), alt) {
				if best == "" || key < best {
					best = key
				}
			}
		}
		if best != "" {
			return best, true
		}
	}
	return "", false
}
