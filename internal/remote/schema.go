package remote

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fieldSchemaJSON is the JSON-Schema constraint we pass to the model as
// a structured-output instruction and validate responses against
// locally. Every field is optional; confidence is required so an answer
// that commits to nothing is still rejected.
const fieldSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "ht":              {"type": "number", "minimum": 0},
    "tva_pct":         {"type": "number", "minimum": 0, "maximum": 100},
    "tva_amt":         {"type": "number", "minimum": 0},
    "ttc":             {"type": "number", "minimum": 0},
    "net":             {"type": "number", "minimum": 0},
    "siret":           {"type": "string", "pattern": "^\\d{14}$"},
    "invoice_number":  {"type": "string", "minLength": 1},
    "document_date":   {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "tender_title":     {"type": "string", "minLength": 1},
    "tender_authority": {"type": "string", "minLength": 1},
    "tender_deadline":  {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "tender_budget":    {"type": "number", "minimum": 0},
    "tender_reference": {"type": "string", "minLength": 1},
    "postal_code":      {"type": "string", "pattern": "^\\d{5}$"},
    "confidence":       {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["confidence"]
}`

var fieldSchema = jsonschema.MustCompileString("fieldset.json", fieldSchemaJSON)

// ValidateFieldJSON checks a raw model answer against the field schema.
func ValidateFieldJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := fieldSchema.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
