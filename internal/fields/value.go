package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates the value types a field can carry.
type Kind int

const (
	KindNone Kind = iota
	KindAmount
	KindPercent
	KindDate // ISO date string YYYY-MM-DD
	KindText
)

// Value is a tagged union: exactly one of the payloads is set, selected
// by Kind. The zero Value means "absent" and is distinguishable from any
// present value.
type Value struct {
	kind Kind
	num  float64
	str  string
}

func Amount(v float64) Value  { return Value{kind: KindAmount, num: v} }
func Percent(v float64) Value { return Value{kind: KindPercent, num: v} }
func Date(iso string) Value   { return Value{kind: KindDate, str: iso} }
func Text(s string) Value     { return Value{kind: KindText, str: s} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsZero() bool { return v.kind == KindNone }

// Amount returns the numeric payload of an amount value.
func (v Value) Amount() (float64, bool) {
	return v.num, v.kind == KindAmount
}

// Percent returns the numeric payload of a percent value.
func (v Value) Percent() (float64, bool) {
	return v.num, v.kind == KindPercent
}

// Date returns the ISO date payload.
func (v Value) Date() (string, bool) {
	return v.str, v.kind == KindDate
}

// Text returns the text payload.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindText
}

// Key is the canonical comparison key used to group candidates by value
// during voting. Amounts compare at 2 decimal places so that two
// strategies reading "4 800,00" and "4800.00" agree.
func (v Value) Key() string {
	switch v.kind {
	case KindAmount:
		return "a:" + strconv.FormatFloat(v.num, 'f', 2, 64)
	case KindPercent:
		return "p:" + strconv.FormatFloat(v.num, 'f', 2, 64)
	case KindDate:
		return "d:" + v.str
	case KindText:
		return "t:" + v.str
	default:
		return ""
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindAmount, KindPercent:
		return strconv.FormatFloat(v.num, 'f', 2, 64)
	case KindDate, KindText:
		return v.str
	default:
		return ""
	}
}

// MarshalJSON renders amounts/percents as numbers and dates/text as
// strings, matching the field-naming contract shared with collaborators.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindAmount, KindPercent:
		return json.Marshal(round2(v.num))
	case KindDate, KindText:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func round2(f float64) float64 {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	out, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return f
	}
	return out
}

// FieldSet maps fields to their resolved values. Only vote winners are
// ever stored; absence of a key means the field resolved to null.
type FieldSet map[Field]Value

// Amount fetches a field as an amount, reporting presence.
func (fs FieldSet) Amount(f Field) (float64, bool) {
	v, ok := fs[f]
	if !ok {
		return 0, false
	}
	return v.Amount()
}

// Percent fetches a field as a percentage, reporting presence.
func (fs FieldSet) Percent(f Field) (float64, bool) {
	v, ok := fs[f]
	if !ok {
		return 0, false
	}
	return v.Percent()
}

// Has reports whether the field resolved to any value.
func (fs FieldSet) Has(f Field) bool {
	v, ok := fs[f]
	return ok && !v.IsZero()
}

// Candidate is a single scored, provenance-tagged proposal for a field.
// Score and Source are set at creation and never mutated in place; the
// concordance boost in the voting step produces boosted copies.
type Candidate struct {
	Field  Field
	Value  Value
	Score  float64 // 0..1
	Source Source
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s=%s (%.2f, %s)", c.Field, c.Value, c.Score, c.Source)
}
