package locale

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"french decimal comma", "4 800,00", 4800.00, true},
		{"comma only", "1234,5", 1234.5, true},
		{"narrow nbsp thousands", "1 234,56", 1234.56, true},
		{"nbsp thousands", "12 345,67", 12345.67, true},
		{"comma and dot", "1.234.567,89", 1234567.89, true},
		{"dot decimal", "1234.56", 1234.56, true},
		{"single dot one digit", "42.5", 42.5, true},
		{"dot thousands", "1.234.567", 1234567, true},
		{"dot with three trailing digits", "12.345", 12345, true},
		{"plain integer", "600", 600, true},
		{"currency symbol", "5 760,00 €", 5760.00, true},
		{"eur suffix", "250 EUR", 250, true},
		{"embedded newline", "4\n800,00", 4800.00, true},
		{"empty", "", 0, false},
		{"garbage", "abc", 0, false},
		{"too large", "9999999999999", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeNumber(tt.raw)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 0.01)
			}
		})
	}
}

func TestNormalizeNumber_RoundTrip(t *testing.T) {
	// Any supported locale rendering of an amount must parse back to the
	// same value within a cent.
	amounts := []float64{0.99, 12.5, 1234.56, 99999.99, 4800}
	formats := []func(f float64) string{
		func(f float64) string { return fmt.Sprintf("%.2f", f) },
		func(f float64) string { return frenchFormat(f, " ") },
		func(f float64) string { return frenchFormat(f, " ") },
		func(f float64) string { return frenchFormat(f, "") },
	}
	for _, a := range amounts {
		for i, format := range formats {
			raw := format(a)
			got, ok := NormalizeNumber(raw)
			require.True(t, ok, "amount %v format %d (%q)", a, i, raw)
			assert.InDelta(t, a, got, 0.01, "amount %v format %d (%q)", a, i, raw)
		}
	}
}

// frenchFormat renders 1234.56 as "1<sep>234,56".
func frenchFormat(f float64, sep string) string {
	s := fmt.Sprintf("%.2f", f)
	intPart := s[:len(s)-3]
	frac := s[len(s)-2:]
	var grouped string
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped += sep
		}
		grouped += string(d)
	}
	return grouped + "," + frac
}

func TestCorrectMissingDecimal(t *testing.T) {
	// OCR dropped the decimal mark: 4 800,00 read as 480000.
	assert.Equal(t, 4800.00, CorrectMissingDecimal(480000))
	// At or below the cutoff the value is left alone.
	assert.Equal(t, 100000.0, CorrectMissingDecimal(100000))
	assert.Equal(t, 600.0, CorrectMissingDecimal(600))
}

func TestNormalizeNumber_MissingDecimalHeuristic(t *testing.T) {
	// Separator-free magnitudes beyond 100 000 get divided by 100.
	got, ok := NormalizeNumber("480000")
	require.True(t, ok)
	assert.Equal(t, 4800.00, got)

	// A separator disables the heuristic.
	got, ok = NormalizeNumber("480 000,00")
	require.True(t, ok)
	assert.Equal(t, 480000.00, got)
}

func TestNormalizePercent(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"20", 20, true},
		{"20%", 20, true},
		{"20,00", 20, true},
		{"5.5", 5.5, true},
		{"0.2", 20, true}, // bare ratio
		{"150", 100, true},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := NormalizePercent(tt.raw)
		require.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		if ok {
			assert.InDelta(t, tt.want, got, 0.001, "raw=%q", tt.raw)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"15/03/2024", "2024-03-15", true},
		{"15-03-2024", "2024-03-15", true},
		{"15.03.2024", "2024-03-15", true},
		{"15 03 2024", "2024-03-15", true},
		{"1/7/24", "2024-07-01", true},
		{"01/07/85", "1985-07-01", true},
		{"date limite : 30/09/2026", "2026-09-30", true},
		{"31/02/2024", "", false},
		{"2024-03-15", "", false}, // ISO order is not guessed
		{"no date here", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.raw)
		require.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
	}
}

func TestCheckTotals(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	// Coherence symmetry: ht*(1+pct/100) against itself always passes.
	for _, ht := range []float64{1, 100, 4800, 99999.99} {
		for _, pct := range []float64{0, 5.5, 10, 20, 100} {
			total := ht * (1 + pct/100)
			assert.True(t, CheckTotals(f(ht), f(pct), nil, f(total)),
				"ht=%v pct=%v", ht, pct)
		}
	}

	// VAT amount path.
	assert.True(t, CheckTotals(f(4800), nil, f(960), f(5760)))

	// 2% slack.
	assert.True(t, CheckTotals(f(4800), f(20), nil, f(5800)))
	assert.False(t, CheckTotals(f(4800), f(20), nil, f(6200)))

	// Absence of any coherence-enabling field is never coherent.
	assert.False(t, CheckTotals(nil, f(20), nil, f(5760)))
	assert.False(t, CheckTotals(f(4800), f(20), nil, nil))
	assert.False(t, CheckTotals(f(4800), nil, nil, f(5760)))
}
