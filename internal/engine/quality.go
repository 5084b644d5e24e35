package engine

import "unicode"

// textQuality captures metrics about native PDF text extraction,
// deciding whether the scanned-page OCR path should run instead.
type textQuality struct {
	PageCount      int
	CharsPerPage   float64
	PrintableRatio float64
}

// needsOCR reports that the native text layer is too thin or too
// garbled to trust. Sparse pages usually mean a scanned document with
// at most an OCR'd title; a low printable ratio means broken font
// encodings mapping glyphs into the private use area.
func (q textQuality) needsOCR() bool {
	return q.CharsPerPage < 50 || q.PrintableRatio < 0.85
}

func measureText(pages []string) textQuality {
	q := textQuality{PageCount: len(pages), PrintableRatio: 1}
	if len(pages) == 0 {
		return q
	}
	var total, printable int
	for _, p := range pages {
		for _, r := range p {
			total++
			if isGarbageRune(r) {
				continue
			}
			if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
				printable++
			}
		}
	}
	q.CharsPerPage = float64(total) / float64(len(pages))
	if total > 0 {
		q.PrintableRatio = float64(printable) / float64(total)
	}
	return q
}

// isGarbageRune flags private-use-area glyphs, the replacement
// character and non-whitespace control characters.
func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}
