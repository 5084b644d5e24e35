// Package remote implements the vision-capable extraction collaborator
// the engine escalates to when local confidence is insufficient.
package remote

import (
	"context"

	"github.com/devisflow/docextract/constants"
	"github.com/devisflow/docextract/internal/fields"
)

// Request carries the document to the remote model. RawText, when
// present, is the best local text and is sent as additional context.
type Request struct {
	DocumentBytes []byte
	KindHint      constants.DocKind
	RawText       string
}

// Result is the remote model's structured answer: the same field-naming
// contract as the local FieldSet plus the model's own confidence.
type Result struct {
	Fields     fields.FieldSet
	Confidence float64
	Raw        []byte
}

// Extractor is the interface the pipeline escalates through.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}
