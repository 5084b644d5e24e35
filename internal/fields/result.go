package fields

// CandidateTrace records one candidate considered during voting, kept on
// the result for debugging and the correction UI.
type CandidateTrace struct {
	Field  Field   `json:"field"`
	Value  string  `json:"value"`
	Score  float64 `json:"score"`
	Source Source  `json:"source"`
	Won    bool    `json:"won"`
}

// ExtractionResult is the engine's single output. Confidence is always
// in [0,1]; NeedsFallback marks results below the acceptance threshold,
// which is an expected outcome, not an error.
type ExtractionResult struct {
	Fields        FieldSet         `json:"fields"`
	Confidence    float64          `json:"confidence"`
	NeedsFallback bool             `json:"needs_fallback,omitempty"`
	RawText       string           `json:"raw_text,omitempty"`
	PerPageText   []string         `json:"per_page_text,omitempty"`
	Debug         []CandidateTrace `json:"debug,omitempty"`
}
