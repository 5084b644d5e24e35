package ocr

import "unicode"

// QualityThreshold is the pass quality at which recognition stops early;
// further segmentation passes rarely beat a pass this clean, and
// skipping them bounds latency.
const QualityThreshold = 0.7

// Quality scores a recognition pass as the fraction of alphanumeric
// characters among the non-whitespace output. Garbled passes produce
// punctuation soup and score low.
func Quality(text string) float64 {
	var alnum, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}
