// Package patterns holds the locale-tuned regular expressions for every
// extractable field, plus the regex pass that turns raw text into
// candidates.
package patterns

import "regexp"

// amount is the shared sub-pattern for a French-formatted amount:
// digits with optional space/dot thousands separators and an optional
// comma or dot decimal part.
const amount = `\d(?:[\d \x{00a0}\x{202f}.]*\d)?(?:,\d{1,2})?`

// Value-shape patterns, reused by the layout reader to qualify the
// token(s) paired with a recognized label.
var (
	CurrencyValue = regexp.MustCompile(`(` + amount + `)\s*€?`)
	PercentValue  = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{1,2})?)\s*%`)
	DateValue     = regexp.MustCompile(`\d{1,2}[/\-. ]\d{1,2}[/\-. ]\d{2,4}`)
	AlphanumValue = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9\-/_.]{2,})\b`)
	SiretValue    = regexp.MustCompile(`\b(\d{3}[ .]?\d{3}[ .]?\d{3}[ .]?\d{5})\b`)
)

// Field-anchored patterns over free text. Group 1 is always the value.
var (
	reHT  = regexp.MustCompile(`(?i)(?:total|montant)\s+h\.?t\.?\b[^0-9%]{0,20}?(` + amount + `)\s*€?`)
	reTTC = regexp.MustCompile(`(?i)(?:total|montant)\s+t\.?t\.?c\.?\b[^0-9%]{0,20}?(` + amount + `)\s*€?`)
	reNet = regexp.MustCompile(`(?i)net\s+[àa]\s+payer\b[^0-9%]{0,20}?(` + amount + `)\s*€?`)

	reTVAPct = regexp.MustCompile(`(?i)\btva\b[^0-9%]{0,20}?(\d{1,3}(?:[.,]\d{1,2})?)\s*%`)
	// The VAT amount form requires a comma-decimal or a currency symbol
	// so it never swallows a bare "TVA 20".
	reTVAAmt = regexp.MustCompile(`(?i)\btva\b(?:\s*\(?\s*\d{1,3}(?:[.,]\d{1,2})?\s*%\s*\)?)?[^0-9%a-zA-Z]{0,10}?(\d(?:[\d \x{00a0}\x{202f}.]*\d)?,\d{2})\s*€?`)

	reInvoiceNumber = regexp.MustCompile(`(?i)facture\s*(?:n[°o]?\s*[:.]?\s*)?([A-Z0-9][A-Z0-9\-/]{2,})`)
	reSiret         = regexp.MustCompile(`(?i)(?:siret|siren)\s*(?:n[°o]?\s*)?[:.]?\s*(\d{3}[ .]?\d{3}[ .]?\d{3}[ .]?\d{5})`)
	reSiretBare     = regexp.MustCompile(`\b(\d{3}[ ]\d{3}[ ]\d{3}[ ]\d{5})\b`)

	reDeadline = regexp.MustCompile(`(?i)date\s+limite(?:\s+de\s+(?:remise|r[ée]ception|d[ée]p[ôo]t)(?:\s+des\s+(?:offres|plis|candidatures))?)?\s*[:.]?\s*(\d{1,2}[/\-. ]\d{1,2}[/\-. ]\d{2,4})`)
	reBudget   = regexp.MustCompile(`(?i)(?:montant\s+estim[ée]|budget\s+pr[ée]visionnel|estimation)\s*[:.]?\s*(` + amount + `)\s*€?`)
	reRef      = regexp.MustCompile(`(?i)r[ée]f[ée]rence(?:\s+de\s+la\s+consultation)?\s*[:.]?\s*([A-Z0-9][A-Z0-9\-/_.]{2,})`)
	reAuthority = regexp.MustCompile(`(?i)(?:organisme(?:\s+acheteur)?|pouvoir\s+adjudicateur|acheteur\s+public)\s*[:.]?[ \t]*([^\n]{3,80})`)
	reTitle     = regexp.MustCompile(`(?i)objet\s+(?:de\s+la\s+consultation|du\s+march[ée])\s*[:.]?[ \t]*([^\n]{3,120})`)

	// Metropolitan + overseas postal code range 01000-98890.
	rePostal = regexp.MustCompile(`\b(0[1-9]\d{3}|[1-8]\d{4}|9[0-8]\d{3})\b`)
)
