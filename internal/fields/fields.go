package fields

// Field names the fixed set of extractable fields. Invoice/quote fields
// and tender fields are disjoint; a document normally populates one set.
type Field string

const (
	HT            Field = "ht"      // pre-tax amount
	TVAPct        Field = "tva_pct" // VAT rate in percent
	TVAAmt        Field = "tva_amt" // VAT absolute amount
	TTC           Field = "ttc"     // tax-inclusive total
	Net           Field = "net"     // net à payer, may differ from TTC
	SIRET         Field = "siret"
	InvoiceNumber Field = "invoice_number"
	DocumentDate  Field = "document_date"

	TenderTitle     Field = "tender_title"
	TenderAuthority Field = "tender_authority"
	TenderDeadline  Field = "tender_deadline"
	TenderBudget    Field = "tender_budget"
	TenderReference Field = "tender_reference"
	PostalCode      Field = "postal_code"
)

// All lists every field in a stable order.
var All = []Field{
	HT, TVAPct, TVAAmt, TTC, Net, SIRET, InvoiceNumber, DocumentDate,
	TenderTitle, TenderAuthority, TenderDeadline, TenderBudget,
	TenderReference, PostalCode,
}

// Source tags where a candidate came from.
type Source string

const (
	SourceTemplate    Source = "template"
	SourceLayout      Source = "layout"
	SourceRegex       Source = "regex"
	SourceRemoteModel Source = "remote_model"
)

// Priority orders sources for vote tie-breaking. Template and layout
// candidates are position-anchored and beat a blind text regex.
func (s Source) Priority() int {
	switch s {
	case SourceTemplate:
		return 4
	case SourceLayout:
		return 3
	case SourceRegex:
		return 2
	case SourceRemoteModel:
		return 1
	default:
		return 0
	}
}
