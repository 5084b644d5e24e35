package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devisflow/docextract/internal/fields"
)

func byField(cands []fields.Candidate) map[fields.Field]fields.Candidate {
	m := make(map[fields.Field]fields.Candidate)
	for _, c := range cands {
		if _, seen := m[c.Field]; !seen {
			m[c.Field] = c
		}
	}
	return m
}

func TestScan_InvoiceTotals(t *testing.T) {
	text := "FACTURE F-2024-0042\nDate : 15/03/2024\n" +
		"Total HT 4 800,00 €\nTVA 20%\nTotal TTC 5 760,00 €\n" +
		"SIRET : 123 456 789 00012\n"

	m := byField(Scan(text))

	ht, ok := m[fields.HT].Value.Amount()
	require.True(t, ok)
	assert.Equal(t, 4800.00, ht)

	pct, ok := m[fields.TVAPct].Value.Percent()
	require.True(t, ok)
	assert.Equal(t, 20.0, pct)

	ttc, ok := m[fields.TTC].Value.Amount()
	require.True(t, ok)
	assert.Equal(t, 5760.00, ttc)

	siret, ok := m[fields.SIRET].Value.Text()
	require.True(t, ok)
	assert.Equal(t, "12345678900012", siret)
	assert.GreaterOrEqual(t, m[fields.SIRET].Score, 0.8)

	num, ok := m[fields.InvoiceNumber].Value.Text()
	require.True(t, ok)
	assert.Equal(t, "F-2024-0042", num)

	date, ok := m[fields.DocumentDate].Value.Date()
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", date)

	for _, c := range m {
		assert.Equal(t, fields.SourceRegex, c.Source)
	}
}

func TestScan_VATAmountForm(t *testing.T) {
	text := "Montant HT : 1 000,00 €\nTVA (20%) : 200,00 €\nNet à payer : 1 200,00 €"
	m := byField(Scan(text))

	amt, ok := m[fields.TVAAmt].Value.Amount()
	require.True(t, ok)
	assert.Equal(t, 200.00, amt)

	net, ok := m[fields.Net].Value.Amount()
	require.True(t, ok)
	assert.Equal(t, 1200.00, net)
}

func TestScan_NoVATAmountFromBareRate(t *testing.T) {
	// "TVA 20%" alone must not fabricate a VAT amount from a distant total.
	text := "Total HT 4 800,00 €\nTVA 20%\nTotal TTC 5 760,00 €"
	m := byField(Scan(text))
	_, has := m[fields.TVAAmt]
	assert.False(t, has)
}

func TestScan_RepeatedTotalsPreferArithmetic(t *testing.T) {
	// The first textual occurrence is a line-item, the later one the real
	// total; the match closest to HT×(1+TVA%) must win.
	text := "Total HT 1 000,00\nTVA 20%\nTotal TTC 3 500,00\nTotal TTC 1 200,00"
	m := byField(Scan(text))
	ttc, ok := m[fields.TTC].Value.Amount()
	require.True(t, ok)
	assert.Equal(t, 1200.00, ttc)
}

func TestScan_Tender(t *testing.T) {
	text := "AVIS D'APPEL PUBLIC À LA CONCURRENCE\n" +
		"Organisme acheteur : Ville de Lyon\n" +
		"Objet de la consultation : Rénovation de la toiture\n" +
		"Référence : AO-2026-117\n" +
		"Montant estimé : 250 000,00 €\n" +
		"Date limite de remise des offres : 30/09/2026\n" +
		"69003 Lyon\n"

	m := byField(Scan(text))

	deadline, ok := m[fields.TenderDeadline].Value.Date()
	require.True(t, ok)
	assert.Equal(t, "2026-09-30", deadline)

	budget, ok := m[fields.TenderBudget].Value.Amount()
	require.True(t, ok)
	assert.Equal(t, 250000.00, budget)

	ref, ok := m[fields.TenderReference].Value.Text()
	require.True(t, ok)
	assert.Equal(t, "AO-2026-117", ref)

	auth, ok := m[fields.TenderAuthority].Value.Text()
	require.True(t, ok)
	assert.Equal(t, "Ville de Lyon", auth)

	cp, ok := m[fields.PostalCode].Value.Text()
	require.True(t, ok)
	assert.Equal(t, "69003", cp)
}

func TestScan_NoPostalCodeOutsideTenderContext(t *testing.T) {
	m := byField(Scan("Total HT 1 000,00\nCode 75001 interne"))
	_, has := m[fields.PostalCode]
	assert.False(t, has)
}

func TestHasCurrencySymbol(t *testing.T) {
	assert.True(t, HasCurrencySymbol("Total 5 760,00 €"))
	assert.True(t, HasCurrencySymbol("250 EUR"))
	assert.False(t, HasCurrencySymbol("Total 5760.00"))
}
