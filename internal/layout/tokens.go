// Package layout extracts positioned text tokens from vector documents,
// groups them into lines, and pairs recognized field labels with nearby
// values.
package layout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Token is a positioned piece of text. Coordinates are page-local PDF
// units with the origin at the bottom-left, so larger Y means higher on
// the page.
type Token struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
	Page   int
}

// ExtractTokens reads every page of a vector document and returns its
// text runs as tokens. An empty slice with a nil error means the
// document has no extractable text (scanned pages); the caller then
// falls back to OCR.
func ExtractTokens(b []byte) (tokens []Token, err error) {
	// The PDF parser panics on some malformed cross-reference tables;
	// treat that the same as any other unreadable document.
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	for pageNr := 1; pageNr <= r.NumPage(); pageNr++ {
		page := r.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			tokens = append(tokens, Token{
				Text:   t.S,
				X:      t.X,
				Y:      t.Y,
				Width:  t.W,
				Height: t.FontSize,
				Page:   pageNr,
			})
		}
	}
	return tokens, nil
}
