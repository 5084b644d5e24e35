package patterns

import (
	"math"
	"regexp"
	"strings"

	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/locale"
)

// Fixed scores for regex-sourced candidates. High-specificity patterns
// (the grouped 14-digit registration number, the labeled deadline) score
// higher than generic ones.
const (
	scoreAmount  = 0.70
	scoreSiret   = 0.80
	scoreInvoice = 0.65
	scoreDate    = 0.60
	scoreDeadline = 0.75
	scoreRef     = 0.65
	scoreLoose   = 0.60
)

var digitRe = regexp.MustCompile(`\d`)

// Scan runs the full pattern library once over the concatenated text and
// returns one candidate per successful match, all tagged SourceRegex.
// Documents repeat their totals; when several matches exist for a
// totals-like field the one arithmetically closest to HT×(1+VAT%) wins
// over mere textual position.
func Scan(text string) []fields.Candidate {
	var out []fields.Candidate
	add := func(f fields.Field, v fields.Value, score float64) {
		out = append(out, fields.Candidate{Field: f, Value: v, Score: score, Source: fields.SourceRegex})
	}

	ht, htOK := firstAmount(reHT, text)
	if htOK {
		add(fields.HT, fields.Amount(ht), scoreAmount)
	}

	tvaPct, pctOK := 0.0, false
	if m := reTVAPct.FindStringSubmatch(text); m != nil {
		if v, ok := locale.NormalizePercent(m[1]); ok {
			tvaPct, pctOK = v, true
			add(fields.TVAPct, fields.Percent(v), scoreAmount)
		}
	}

	if m := reTVAAmt.FindStringSubmatch(text); m != nil {
		if v, ok := locale.NormalizeNumber(m[1]); ok {
			add(fields.TVAAmt, fields.Amount(v), scoreAmount)
		}
	}

	// Expected tax-inclusive total, used to arbitrate repeated totals.
	var expected *float64
	if htOK && pctOK {
		e := ht * (1 + tvaPct/100)
		expected = &e
	}

	if v, ok := bestAmount(reTTC, text, expected); ok {
		add(fields.TTC, fields.Amount(v), scoreAmount)
	}
	if v, ok := bestAmount(reNet, text, expected); ok {
		add(fields.Net, fields.Amount(v), scoreAmount)
	}

	if m := reSiret.FindStringSubmatch(text); m != nil {
		add(fields.SIRET, fields.Text(digitsOnly(m[1])), scoreSiret)
	} else if m := reSiretBare.FindStringSubmatch(text); m != nil {
		add(fields.SIRET, fields.Text(digitsOnly(m[1])), scoreSiret)
	}

	if m := reInvoiceNumber.FindStringSubmatch(text); m != nil && digitRe.MatchString(m[1]) {
		add(fields.InvoiceNumber, fields.Text(strings.TrimSpace(m[1])), scoreInvoice)
	}

	if m := DateValue.FindString(text); m != "" {
		if iso, ok := locale.NormalizeDate(m); ok {
			add(fields.DocumentDate, fields.Date(iso), scoreDate)
		}
	}

	tender := false
	if m := reDeadline.FindStringSubmatch(text); m != nil {
		if iso, ok := locale.NormalizeDate(m[1]); ok {
			add(fields.TenderDeadline, fields.Date(iso), scoreDeadline)
			tender = true
		}
	}
	if v, ok := firstAmount(reBudget, text); ok {
		add(fields.TenderBudget, fields.Amount(v), scoreAmount)
		tender = true
	}
	if m := reRef.FindStringSubmatch(text); m != nil {
		add(fields.TenderReference, fields.Text(strings.TrimSpace(m[1])), scoreRef)
		tender = true
	}
	if m := reAuthority.FindStringSubmatch(text); m != nil {
		add(fields.TenderAuthority, fields.Text(strings.TrimSpace(m[1])), scoreLoose)
		tender = true
	}
	if m := reTitle.FindStringSubmatch(text); m != nil {
		add(fields.TenderTitle, fields.Text(strings.TrimSpace(m[1])), scoreLoose)
	}

	// A bare 5-digit group is only a postal code in a tender context;
	// on invoices it collides with amounts and registration numbers.
	if tender {
		if m := rePostal.FindStringSubmatch(text); m != nil {
			add(fields.PostalCode, fields.Text(m[1]), scoreLoose)
		}
	}

	return out
}

// HasCurrencySymbol reports whether the text carries a currency marker,
// one of the confidence signals.
func HasCurrencySymbol(text string) bool {
	return strings.Contains(text, "€") || strings.Contains(strings.ToLower(text), "eur")
}

func firstAmount(re *regexp.Regexp, text string) (float64, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v, ok := locale.NormalizeNumber(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}

// bestAmount returns the match closest to expected, or the first valid
// match when no expectation exists.
func bestAmount(re *regexp.Regexp, text string, expected *float64) (float64, bool) {
	best, found := 0.0, false
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v, ok := locale.NormalizeNumber(m[1])
		if !ok {
			continue
		}
		if !found {
			best, found = v, true
			continue
		}
		if expected != nil && math.Abs(v-*expected) < math.Abs(best-*expected) {
			best = v
		}
	}
	return best, found
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
