package locale

import "math"

// totalsTolerance is the relative slack allowed between the recomputed
// and the extracted total; rounding on the document plus rounding in
// extraction easily accounts for a couple of percent.
const totalsTolerance = 0.02

// CheckTotals reports whether the extracted amounts are arithmetically
// coherent. It requires positive evidence: both HT and a total must be
// present, plus either a VAT rate (HT*(1+rate/100) ≈ total) or a VAT
// amount (HT+VAT ≈ total). Nil inputs mean the field is absent.
func CheckTotals(ht, tvaPct, tvaAmt, total *float64) bool {
	if ht == nil || total == nil {
		return false
	}
	if tvaPct != nil && withinTolerance(*ht*(1+*tvaPct/100), *total) {
		return true
	}
	if tvaAmt != nil && withinTolerance(*ht+*tvaAmt, *total) {
		return true
	}
	return false
}

func withinTolerance(expected, actual float64) bool {
	if actual == 0 {
		return math.Abs(expected) < 1e-9
	}
	return math.Abs(expected-actual) <= totalsTolerance*math.Abs(actual)
}
