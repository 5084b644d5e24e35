package remote

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/devisflow/docextract/internal/locale"
)

var (
	reDigits  = regexp.MustCompile(`\D`)
	reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	numericKeys = []string{"ht", "tva_pct", "tva_amt", "ttc", "net", "tender_budget"}
	dateKeys    = []string{"document_date", "tender_deadline"}
	textKeys    = []string{"invoice_number", "tender_title", "tender_authority", "tender_reference"}
)

// SanitizeFieldJSON repairs an almost-valid model answer so it can pass
// strict schema validation. Every field except confidence is optional,
// so a field that cannot be repaired is dropped, never invented.
func SanitizeFieldJSON(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	drop := func(k, why string) {
		delete(m, k)
		dropped = append(dropped, k+"("+why+")")
	}

	// Numbers sometimes come back as locale strings ("5 760,00").
	for _, k := range numericKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			// already fine
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				drop(k, "empty")
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				m[k] = f
			} else if f, ok := locale.NormalizeNumber(s); ok {
				m[k] = f
			} else {
				drop(k, "unparsable")
			}
		case nil:
			drop(k, "null")
		default:
			drop(k, "type")
		}
	}

	// Dates: accept ISO as-is, otherwise run the French date normalizer.
	for _, k := range dateKeys {
		v, ok := m[k].(string)
		if !ok {
			if _, present := m[k]; present {
				drop(k, "type")
			}
			continue
		}
		s := strings.TrimSpace(v)
		if reISODate.MatchString(s) {
			m[k] = s
			continue
		}
		if iso, ok := locale.NormalizeDate(s); ok {
			m[k] = iso
		} else {
			drop(k, "date")
		}
	}

	// siret: keep digits only, must be exactly 14.
	if v, ok := m["siret"]; ok {
		s, isStr := v.(string)
		if !isStr {
			s = fmt.Sprintf("%v", v)
		}
		s = reDigits.ReplaceAllString(s, "")
		if len(s) == 14 {
			m["siret"] = s
		} else {
			drop("siret", "length")
		}
	}

	if v, ok := m["postal_code"].(string); ok {
		s := reDigits.ReplaceAllString(v, "")
		if len(s) == 5 {
			m["postal_code"] = s
		} else {
			drop("postal_code", "length")
		}
	}

	for _, k := range textKeys {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				drop(k, "empty")
			} else {
				m[k] = s
			}
		}
	}

	// confidence must be a number in [0,1]; clamp instead of dropping
	// because the schema requires it.
	switch t := m["confidence"].(type) {
	case float64:
		if t < 0 {
			m["confidence"] = 0.0
		} else if t > 1 {
			m["confidence"] = 1.0
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && f >= 0 && f <= 1 {
			m["confidence"] = f
		} else {
			m["confidence"] = 0.0
		}
	default:
		m["confidence"] = 0.0
	}

	// Strict schema forbids unknown keys; drop anything off-contract.
	known := map[string]struct{}{"confidence": {}}
	for _, k := range numericKeys {
		known[k] = struct{}{}
	}
	for _, k := range dateKeys {
		known[k] = struct{}{}
	}
	for _, k := range textKeys {
		known[k] = struct{}{}
	}
	known["siret"] = struct{}{}
	known["postal_code"] = struct{}{}
	for k := range m {
		if _, ok := known[k]; !ok {
			drop(k, "unknown")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}
