// Package score computes the arithmetic coherence check and the single
// confidence number driving the accept/escalate/fallback decision. The
// formula is deliberately simple and additive so its behavior stays
// auditable; it is not a learned model. Correction UIs re-run it on
// every keystroke for live feedback.
package score

import (
	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/locale"
	"github.com/devisflow/docextract/internal/patterns"
)

// Thresholds on the confidence value.
const (
	AcceptThreshold    = 0.75 // automatic acceptance
	PlausibleThreshold = 0.60 // correction-form color coding only, never blocks
)

// Additive confidence weights.
const (
	baseWeight     = 0.50
	totalsWeight   = 0.25
	siretWeight    = 0.10
	dateWeight     = 0.05
	currencyWeight = 0.05
)

// ClampPercent forces a resolved VAT rate into [0,100] after voting.
func ClampPercent(fs fields.FieldSet) {
	if pct, ok := fs.Percent(fields.TVAPct); ok {
		if pct < 0 {
			fs[fields.TVAPct] = fields.Percent(0)
		} else if pct > 100 {
			fs[fields.TVAPct] = fields.Percent(100)
		}
	}
}

// TotalsOK runs the tax-total coherence check over the resolved fields.
// The tax-inclusive total is preferred; net-to-pay stands in when TTC is
// absent.
func TotalsOK(fs fields.FieldSet) bool {
	var ht, pct, amt, total *float64
	if v, ok := fs.Amount(fields.HT); ok {
		ht = &v
	}
	if v, ok := fs.Percent(fields.TVAPct); ok {
		pct = &v
	}
	if v, ok := fs.Amount(fields.TVAAmt); ok {
		amt = &v
	}
	if v, ok := fs.Amount(fields.TTC); ok {
		total = &v
	} else if v, ok := fs.Amount(fields.Net); ok {
		total = &v
	}
	return locale.CheckTotals(ht, pct, amt, total)
}

// Confidence computes the scalar confidence for a resolved field set,
// clamped to [0,1].
func Confidence(fs fields.FieldSet, rawText string) float64 {
	c := baseWeight
	if TotalsOK(fs) {
		c += totalsWeight
	}
	if fs.Has(fields.SIRET) {
		c += siretWeight
	}
	if fs.Has(fields.DocumentDate) || fs.Has(fields.TenderDeadline) {
		c += dateWeight
	}
	if patterns.HasCurrencySymbol(rawText) {
		c += currencyWeight
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
