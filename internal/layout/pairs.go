package layout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/locale"
	"github.com/devisflow/docextract/internal/patterns"
)

// Anchor is a label→field pairing hint. Built-in anchors cover the
// common French invoice and tender labels; supplier templates contribute
// extra anchors scored as SourceTemplate.
type Anchor struct {
	Label string
	Field fields.Field
	Score float64
}

type valueKind int

const (
	kindAmount valueKind = iota
	kindPercent
	kindDate
	kindAlnum
	kindSiret
	kindText
	kindTVA // percent if present, else a decimal amount
)

type anchor struct {
	label  string
	field  fields.Field
	kind   valueKind
	score  float64
	source fields.Source
}

// Built-in label anchors. Unambiguous anchors ("net à payer", the
// registration number) carry the top layout score.
var builtinAnchors = []anchor{
	{"net à payer", fields.Net, kindAmount, 0.90, fields.SourceLayout},
	{"total ht", fields.HT, kindAmount, 0.80, fields.SourceLayout},
	{"montant ht", fields.HT, kindAmount, 0.80, fields.SourceLayout},
	{"total ttc", fields.TTC, kindAmount, 0.80, fields.SourceLayout},
	{"montant ttc", fields.TTC, kindAmount, 0.80, fields.SourceLayout},
	{"siret", fields.SIRET, kindSiret, 0.90, fields.SourceLayout},
	{"n° de facture", fields.InvoiceNumber, kindAlnum, 0.75, fields.SourceLayout},
	{"facture n°", fields.InvoiceNumber, kindAlnum, 0.75, fields.SourceLayout},
	{"facture", fields.InvoiceNumber, kindAlnum, 0.70, fields.SourceLayout},
	{"date limite", fields.TenderDeadline, kindDate, 0.80, fields.SourceLayout},
	{"organisme acheteur", fields.TenderAuthority, kindText, 0.75, fields.SourceLayout},
	{"organisme", fields.TenderAuthority, kindText, 0.75, fields.SourceLayout},
	{"pouvoir adjudicateur", fields.TenderAuthority, kindText, 0.75, fields.SourceLayout},
	{"montant estimé", fields.TenderBudget, kindAmount, 0.80, fields.SourceLayout},
	{"référence", fields.TenderReference, kindAlnum, 0.75, fields.SourceLayout},
	{"objet", fields.TenderTitle, kindText, 0.70, fields.SourceLayout},
	{"tva", "", kindTVA, 0.75, fields.SourceLayout},
	{"date", fields.DocumentDate, kindDate, 0.70, fields.SourceLayout},
}

// PairFields walks the lines, matches each against the anchor labels
// (longest label first, one anchor per line) and pairs the label with a
// value from the rest of the line, else from the immediately following
// line.
func PairFields(lines []Line, extra []Anchor) []fields.Candidate {
	anchors := make([]anchor, 0, len(builtinAnchors)+len(extra))
	anchors = append(anchors, builtinAnchors...)
	for _, a := range extra {
		score := a.Score
		if score <= 0 {
			score = 0.90
		}
		anchors = append(anchors, anchor{
			label:  strings.ToLower(a.Label),
			field:  a.Field,
			kind:   kindForField(a.Field),
			score:  score,
			source: fields.SourceTemplate,
		})
	}
	sort.SliceStable(anchors, func(i, j int) bool {
		return len(anchors[i].label) > len(anchors[j].label)
	})

	var out []fields.Candidate
	for i, line := range lines {
		lower := strings.ToLower(line.Text)
		for _, a := range anchors {
			idx := strings.Index(lower, a.label)
			if idx < 0 {
				continue
			}
			rest := sliceAfter(line.Text, lower, idx+len(a.label))
			cand, ok := extractValue(a, rest)
			if !ok && i+1 < len(lines) && lines[i+1].Page == line.Page {
				cand, ok = extractValue(a, lines[i+1].Text)
			}
			if ok {
				out = append(out, cand)
			}
			break // one anchor per line
		}
	}
	return out
}

// sliceAfter returns the original-case text after byte offset end of the
// lowercased text. Lowercasing Latin text preserves byte lengths; if it
// ever does not, the lowered slice is still usable for value shapes.
func sliceAfter(orig, lower string, end int) string {
	if len(orig) == len(lower) && end <= len(orig) {
		return orig[end:]
	}
	if end <= len(lower) {
		return lower[end:]
	}
	return ""
}

var (
	digitAny   = regexp.MustCompile(`\d`)
	commaPrice = regexp.MustCompile(`\d(?:[\d \x{00a0}\x{202f}.]*\d)?,\d{2}`)
)

func extractValue(a anchor, rest string) (fields.Candidate, bool) {
	rest = strings.TrimSpace(strings.TrimLeft(rest, " \t:;·."))
	if rest == "" {
		return fields.Candidate{}, false
	}

	mk := func(f fields.Field, v fields.Value) (fields.Candidate, bool) {
		return fields.Candidate{Field: f, Value: v, Score: a.score, Source: a.source}, true
	}

	switch a.kind {
	case kindAmount:
		if m := patterns.CurrencyValue.FindStringSubmatch(rest); m != nil {
			if v, ok := locale.NormalizeNumber(m[1]); ok {
				return mk(a.field, fields.Amount(v))
			}
		}
	case kindPercent:
		if m := patterns.PercentValue.FindStringSubmatch(rest); m != nil {
			if v, ok := locale.NormalizePercent(m[1]); ok {
				return mk(a.field, fields.Percent(v))
			}
		}
	case kindTVA:
		if m := patterns.PercentValue.FindStringSubmatch(rest); m != nil {
			if v, ok := locale.NormalizePercent(m[1]); ok {
				return mk(fields.TVAPct, fields.Percent(v))
			}
		}
		if m := commaPrice.FindString(rest); m != "" {
			if v, ok := locale.NormalizeNumber(m); ok {
				return mk(fields.TVAAmt, fields.Amount(v))
			}
		}
	case kindDate:
		if m := patterns.DateValue.FindString(rest); m != "" {
			if iso, ok := locale.NormalizeDate(m); ok {
				return mk(a.field, fields.Date(iso))
			}
		}
	case kindSiret:
		if m := patterns.SiretValue.FindStringSubmatch(rest); m != nil {
			return mk(a.field, fields.Text(stripNonDigits(m[1])))
		}
	case kindAlnum:
		for _, m := range patterns.AlphanumValue.FindAllStringSubmatch(rest, -1) {
			if digitAny.MatchString(m[1]) {
				return mk(a.field, fields.Text(m[1]))
			}
		}
	case kindText:
		if len([]rune(rest)) >= 3 {
			if r := []rune(rest); len(r) > 80 {
				rest = string(r[:80])
			}
			return mk(a.field, fields.Text(strings.TrimSpace(rest)))
		}
	}
	return fields.Candidate{}, false
}

func kindForField(f fields.Field) valueKind {
	switch f {
	case fields.HT, fields.TVAAmt, fields.TTC, fields.Net, fields.TenderBudget:
		return kindAmount
	case fields.TVAPct:
		return kindPercent
	case fields.DocumentDate, fields.TenderDeadline:
		return kindDate
	case fields.SIRET:
		return kindSiret
	case fields.InvoiceNumber, fields.TenderReference:
		return kindAlnum
	default:
		return kindText
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
