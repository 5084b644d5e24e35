package layout

import (
	"sort"
	"strings"
)

// LineTolerance is the vertical clustering slack in layout units. Font
// baselines jitter by a point or two, so exact Y equality never holds.
const LineTolerance = 2.5

// wordGapFactor scales a token's height into the horizontal gap beyond
// which two adjacent runs are separate words.
const wordGapFactor = 0.3

// Line is an ordered set of tokens sharing a page and a Y band. Text is
// the reading-order concatenation with inferred word breaks.
type Line struct {
	Page   int
	Y      float64
	Tokens []Token
	Text   string
}

// ClusterLines groups tokens into lines by vertical proximity, sorted
// top-to-bottom then left-to-right. Built transiently per document and
// never persisted.
func ClusterLines(tokens []Token) []Line {
	if len(tokens) == 0 {
		return nil
	}

	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	// Y grows upward in PDF space, so top-to-bottom is descending Y.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []Line
	var cur *Line
	for _, tok := range sorted {
		if cur == nil || tok.Page != cur.Page || cur.Y-tok.Y > LineTolerance {
			lines = append(lines, Line{Page: tok.Page, Y: tok.Y})
			cur = &lines[len(lines)-1]
		}
		cur.Tokens = append(cur.Tokens, tok)
	}

	for i := range lines {
		sort.SliceStable(lines[i].Tokens, func(a, b int) bool {
			return lines[i].Tokens[a].X < lines[i].Tokens[b].X
		})
		lines[i].Text = joinTokens(lines[i].Tokens)
	}
	return lines
}

// joinTokens assembles line text, inserting a space only where the
// horizontal gap between runs exceeds a fraction of the glyph height
// (vector text often arrives as per-character runs).
func joinTokens(tokens []Token) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			prev := tokens[i-1]
			gap := tok.X - (prev.X + prev.Width)
			h := prev.Height
			if h <= 0 {
				h = 10
			}
			if gap > wordGapFactor*h {
				b.WriteByte(' ')
			}
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

// TextAfter returns the concatenated text of the tokens strictly to the
// right of the given X position on the line.
func (l Line) TextAfter(x float64) string {
	var right []Token
	for _, tok := range l.Tokens {
		if tok.X >= x {
			right = append(right, tok)
		}
	}
	return joinTokens(right)
}
