package remote

import (
	"encoding/json"
	"fmt"

	"github.com/devisflow/docextract/internal/fields"
)

// answer mirrors the JSON contract the model is asked to produce.
type answer struct {
	HT              *float64 `json:"ht"`
	TVAPct          *float64 `json:"tva_pct"`
	TVAAmt          *float64 `json:"tva_amt"`
	TTC             *float64 `json:"ttc"`
	Net             *float64 `json:"net"`
	SIRET           string   `json:"siret"`
	InvoiceNumber   string   `json:"invoice_number"`
	DocumentDate    string   `json:"document_date"`
	TenderTitle     string   `json:"tender_title"`
	TenderAuthority string   `json:"tender_authority"`
	TenderDeadline  string   `json:"tender_deadline"`
	TenderBudget    *float64 `json:"tender_budget"`
	TenderReference string   `json:"tender_reference"`
	PostalCode      string   `json:"postal_code"`
	Confidence      float64  `json:"confidence"`
}

// ParseFieldJSON converts a schema-valid model answer into a FieldSet.
func ParseFieldJSON(raw []byte) (fields.FieldSet, float64, error) {
	var a answer
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, 0, fmt.Errorf("unmarshal fields: %w", err)
	}

	fs := fields.FieldSet{}
	putAmount := func(f fields.Field, v *float64) {
		if v != nil {
			fs[f] = fields.Amount(*v)
		}
	}
	putDate := func(f fields.Field, v string) {
		if v != "" {
			fs[f] = fields.Date(v)
		}
	}
	putText := func(f fields.Field, v string) {
		if v != "" {
			fs[f] = fields.Text(v)
		}
	}

	putAmount(fields.HT, a.HT)
	if a.TVAPct != nil {
		fs[fields.TVAPct] = fields.Percent(*a.TVAPct)
	}
	putAmount(fields.TVAAmt, a.TVAAmt)
	putAmount(fields.TTC, a.TTC)
	putAmount(fields.Net, a.Net)
	putText(fields.SIRET, a.SIRET)
	putText(fields.InvoiceNumber, a.InvoiceNumber)
	putDate(fields.DocumentDate, a.DocumentDate)
	putText(fields.TenderTitle, a.TenderTitle)
	putText(fields.TenderAuthority, a.TenderAuthority)
	putDate(fields.TenderDeadline, a.TenderDeadline)
	putAmount(fields.TenderBudget, a.TenderBudget)
	putText(fields.TenderReference, a.TenderReference)
	putText(fields.PostalCode, a.PostalCode)

	return fs, a.Confidence, nil
}
