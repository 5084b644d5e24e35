// Package locale converts French-formatted numbers, percentages and
// dates into canonical machine types. Pure functions, no dependencies.
package locale

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxMagnitude rejects parsed amounts beyond any plausible invoice
// total; values at or above it are treated as parse failures.
const MaxMagnitude = 1e12

var currencyStripper = strings.NewReplacer(
	"€", "", "EUR", "", "eur", "",
	"\n", " ", "\r", " ", "\t", " ",
)

// spaceLike covers the separators French documents use inside digit
// groups: plain space, no-break space, narrow no-break space.
var spaceLike = strings.NewReplacer(" ", "", " ", "", " ", "")

// NormalizeNumber parses a locale-formatted amount. Comma+dot input
// treats the dot as a thousands separator and the comma as the decimal
// mark; comma-only input maps the comma to a decimal point; dot-only
// input is a decimal only when a single dot carries at most two
// trailing digits, otherwise the dots are thousands separators.
func NormalizeNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(currencyStripper.Replace(raw))
	if s == "" {
		return 0, false
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		s = strings.ReplaceAll(s, ".", "")
		s = spaceLike.Replace(s)
		s = strings.ReplaceAll(s, ",", ".")
	case hasComma:
		s = spaceLike.Replace(s)
		s = strings.ReplaceAll(s, ",", ".")
	case hasDot:
		if dotIsDecimal(s) {
			s = spaceLike.Replace(s)
		} else {
			s = spaceLike.Replace(s)
			s = strings.ReplaceAll(s, ".", "")
		}
	default:
		s = spaceLike.Replace(s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if !hasComma && !hasDot {
		v = CorrectMissingDecimal(v)
	}
	if math.Abs(v) >= MaxMagnitude {
		return 0, false
	}
	return Round2(v), true
}

// dotIsDecimal reports whether a dot-only numeric string uses its single
// dot as a decimal mark (at most two trailing digits).
func dotIsDecimal(s string) bool {
	if strings.Count(s, ".") != 1 {
		return false
	}
	idx := strings.LastIndex(s, ".")
	return len(s)-idx-1 <= 2
}

// CorrectMissingDecimal is the documented OCR heuristic: recognition
// frequently drops the decimal mark, turning 1234,56 into 123456. When a
// separator-free amount exceeds 100 000 we assume two decimal digits
// were absorbed and divide by 100. Kept isolated so it can be tuned or
// disabled without touching the parser.
func CorrectMissingDecimal(v float64) float64 {
	if math.Abs(v) > 100000 {
		return v / 100
	}
	return v
}

// NormalizePercent parses a VAT rate. A bare ratio below 1 (e.g. "0.2")
// is promoted to a percentage; output is clamped to [0,100].
func NormalizePercent(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	v, ok := NormalizeNumber(s)
	if !ok {
		return 0, false
	}
	if v > 0 && v < 1 {
		v *= 100
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return Round2(v), true
}

var dateRe = regexp.MustCompile(`\b(\d{1,2})[/\-. ](\d{1,2})[/\-. ](\d{2,4})\b`)

// NormalizeDate matches a day-first date (D/M/Y with /-. or space
// separators, 2- or 4-digit year) and returns it as YYYY-MM-DD. Two-digit
// years map to 1900s from 80 upward, 2000s below. No guessing of
// ambiguous day/month order beyond the day-first convention.
func NormalizeDate(raw string) (string, bool) {
	m := dateRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		if year >= 80 {
			year += 1900
		} else {
			year += 2000
		}
	} else if len(m[3]) == 3 {
		return "", false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	// reject impossible dates like 31/02
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
