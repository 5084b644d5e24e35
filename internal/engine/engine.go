// Package engine orchestrates the extraction pipeline as an explicit
// state machine: dispatch by document kind, run the applicable
// strategies, vote, score, and escalate below-threshold results to the
// remote model.
package engine

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/devisflow/docextract/constants"
	"github.com/devisflow/docextract/internal/common"
	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/layout"
	"github.com/devisflow/docextract/internal/patterns"
	"github.com/devisflow/docextract/internal/remote"
	"github.com/devisflow/docextract/internal/score"
	"github.com/devisflow/docextract/internal/tabular"
	"github.com/devisflow/docextract/internal/template"
	"github.com/devisflow/docextract/internal/vote"
)

// State names one pipeline stage. Transitions are enumerable so tests
// can assert the exact path a document takes.
type State string

const (
	StateDispatch      State = "DISPATCH"
	StateStructured    State = "STRUCTURED"
	StateLayout        State = "LAYOUT"
	StateOCR           State = "OCR"
	StateRegexAugment  State = "REGEX_AUGMENT"
	StateVote          State = "VOTE"
	StateScore         State = "SCORE"
	StateEscalate      State = "ESCALATE"
	StateAccepted      State = "ACCEPTED"
	StateNeedsFallback State = "NEEDS_FALLBACK"
	StateFailed        State = "FAILED"
)

func (s State) terminal() bool {
	return s == StateAccepted || s == StateNeedsFallback || s == StateFailed
}

// OCRText recognizes text from rendered pages. Satisfied by
// *ocr.Extractor; stubbed in tests.
type OCRText interface {
	ExtractImage(ctx context.Context, b []byte) (string, error)
	ExtractPDF(ctx context.Context, b []byte) ([]string, error)
}

// TemplateSource looks up a supplier's anchor template by SIRET.
// Satisfied by *template.Store.
type TemplateSource interface {
	Lookup(ctx context.Context, siret string) (*template.Template, error)
}

// Deps are the engine's collaborators. Remote and Templates may be nil;
// the corresponding stages then become no-ops.
type Deps struct {
	OCR       OCRText
	Remote    remote.Extractor
	Templates TemplateSource
}

// Engine holds configuration and collaborators only. All per-document
// state lives in the run, so one Engine serves concurrent documents.
type Engine struct {
	cfg  common.EngineConfig
	deps Deps
	log  *slog.Logger
}

func New(cfg common.EngineConfig, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AcceptThreshold <= 0 {
		cfg.AcceptThreshold = score.AcceptThreshold
	}
	return &Engine{cfg: cfg, deps: deps, log: logger}
}

// run is the per-document pipeline state.
type run struct {
	doc   []byte
	kind  constants.DocKind
	state State

	pages []string // page texts, OCR or native
	raw   string   // concatenated text for the regex pass and scoring
	lines []layout.Line

	store *vote.Store
	fs    fields.FieldSet
	debug []fields.CandidateTrace
	conf  float64
	err   error
}

func (r *run) fail(err error) State {
	r.err = err
	return StateFailed
}

// Extract runs the full pipeline on one document. NeedsFallback results
// come back with a nil error; only unusable input errors out.
func (e *Engine) Extract(ctx context.Context, doc []byte, kind constants.DocKind) (*fields.ExtractionResult, error) {
	if len(doc) > constants.MaxInputBytes {
		return nil, common.NewAppError("INPUT_TOO_LARGE", "document exceeds the input size cap", common.ErrInputTooLarge)
	}

	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)

	r := &run{doc: doc, kind: kind, state: StateDispatch, store: vote.NewStore()}
	for !r.state.terminal() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := e.step(ctx, r)
		e.log.Debug("engine.transition", "req_id", rid, "from", r.state, "to", next)
		r.state = next
	}
	if r.state == StateFailed {
		return nil, r.err
	}

	res := &fields.ExtractionResult{
		Fields:        r.fs,
		Confidence:    r.conf,
		NeedsFallback: r.state == StateNeedsFallback,
		RawText:       r.raw,
		PerPageText:   r.pages,
		Debug:         r.debug,
	}
	e.log.Info("engine.done",
		"req_id", rid,
		"kind", kind,
		"state", r.state,
		"fields", len(r.fs),
		"confidence", r.conf,
	)
	return res, nil
}

func (e *Engine) step(ctx context.Context, r *run) State {
	switch r.state {
	case StateDispatch:
		return e.dispatch(r)
	case StateStructured:
		return e.structured(r)
	case StateLayout:
		return e.layout(r)
	case StateOCR:
		return e.ocr(ctx, r)
	case StateRegexAugment:
		return e.regexAugment(r)
	case StateVote:
		return e.voteStep(ctx, r)
	case StateScore:
		return e.score(r)
	case StateEscalate:
		return e.escalate(ctx, r)
	default:
		return r.fail(common.NewAppError("ENGINE_STATE", "unknown state "+string(r.state), common.ErrInvalidInput))
	}
}

func (e *Engine) dispatch(r *run) State {
	switch r.kind {
	case constants.CSV, constants.XLSX:
		return StateStructured
	case constants.PDF:
		return StateLayout
	case constants.IMAGE:
		return StateOCR
	default:
		return r.fail(common.NewAppError("UNKNOWN_KIND", "unsupported document kind "+string(r.kind), common.ErrUnreadableFormat))
	}
}

func (e *Engine) structured(r *run) State {
	var rows []tabular.Row
	var err error
	switch r.kind {
	case constants.CSV:
		rows, err = tabular.ReadCSV(bytes.NewReader(r.doc))
	case constants.XLSX:
		rows, err = tabular.ReadXLSX(r.doc)
	}
	if err != nil {
		return r.fail(common.NewAppError("UNREADABLE_TABLE", err.Error(), common.ErrUnreadableFormat))
	}
	if c, ok := tabular.InferTotal(rows); ok {
		r.store.Add(c)
	}

	// Flatten cells so the regex pass can still see labels and values
	// that live outside the inferred total column.
	var b strings.Builder
	for _, row := range rows {
		for k, v := range row {
			b.WriteString(k)
			b.WriteString(" ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	r.raw = b.String()
	r.pages = []string{r.raw}
	return StateRegexAugment
}

func (e *Engine) layout(r *run) State {
	tokens, err := layout.ExtractTokens(r.doc)
	if err != nil || len(tokens) == 0 {
		e.log.Info("engine.layout.no_text", "error", err, "fallback", "ocr")
		return StateOCR
	}
	r.lines = layout.ClusterLines(tokens)
	r.pages = pagesFromLines(r.lines)
	r.raw = strings.Join(r.pages, "\n")

	q := measureText(r.pages)
	if q.needsOCR() {
		e.log.Info("engine.layout.low_quality",
			"chars_per_page", q.CharsPerPage,
			"printable_ratio", q.PrintableRatio,
			"fallback", "ocr",
		)
		r.lines = nil
		return StateOCR
	}

	r.store.Add(layout.PairFields(r.lines, nil)...)
	return StateRegexAugment
}

func (e *Engine) ocr(ctx context.Context, r *run) State {
	if e.deps.OCR == nil {
		return r.fail(common.NewAppError("NO_OCR", "document requires recognition but none is configured", common.ErrUnreadableFormat))
	}
	var pages []string
	var err error
	switch r.kind {
	case constants.PDF:
		pages, err = e.deps.OCR.ExtractPDF(ctx, r.doc)
	default:
		var text string
		text, err = e.deps.OCR.ExtractImage(ctx, r.doc)
		pages = []string{text}
	}
	if err != nil {
		return r.fail(common.NewAppError("OCR_FAILED", err.Error(), common.ErrUnreadableFormat))
	}
	r.pages = pages
	r.raw = strings.Join(pages, "\n")
	if strings.TrimSpace(r.raw) == "" {
		return r.fail(common.NewAppError("NO_TEXT", "document yielded no text", common.ErrUnreadableFormat))
	}
	return StateRegexAugment
}

func (e *Engine) regexAugment(r *run) State {
	r.store.Add(patterns.Scan(r.raw)...)
	return StateVote
}

// voteStep resolves candidates. When a SIRET candidate names a known
// supplier and we still hold positioned lines, the supplier's template
// anchors contribute a second, higher-trust pairing pass first.
func (e *Engine) voteStep(ctx context.Context, r *run) State {
	if e.deps.Templates != nil && len(r.lines) > 0 {
		if siret := bestSiret(r.store); siret != "" {
			tpl, err := e.deps.Templates.Lookup(ctx, siret)
			if err == nil && len(tpl.Anchors) > 0 {
				e.log.Info("engine.template.matched", "siret", siret, "supplier", tpl.Name)
				r.store.Add(templateOnly(layout.PairFields(r.lines, tpl.Anchors))...)
			}
		}
	}
	r.fs, r.debug = r.store.Resolve()
	return StateScore
}

func (e *Engine) score(r *run) State {
	score.ClampPercent(r.fs)
	r.conf = score.Confidence(r.fs, r.raw)
	if r.conf >= e.cfg.AcceptThreshold {
		return StateAccepted
	}
	return StateEscalate
}

func (e *Engine) escalate(ctx context.Context, r *run) State {
	if e.deps.Remote == nil {
		return StateNeedsFallback
	}
	res, err := e.deps.Remote.Extract(ctx, remote.Request{
		DocumentBytes: r.doc,
		KindHint:      r.kind,
		RawText:       r.raw,
	})
	if err != nil {
		// Unreachable or unparsable remote is "no improvement", never a
		// pipeline failure.
		e.log.Warn("engine.escalate.unavailable", "error", err)
		return StateNeedsFallback
	}
	if res.Confidence > r.conf {
		e.log.Info("engine.escalate.replaced",
			"local_confidence", r.conf,
			"remote_confidence", res.Confidence,
		)
		score.ClampPercent(res.Fields)
		r.fs = res.Fields
		r.conf = res.Confidence
		for i := range r.debug {
			r.debug[i].Won = false
		}
		r.debug = append(r.debug, tracesFrom(res.Fields)...)
	}
	if r.conf >= e.cfg.AcceptThreshold {
		return StateAccepted
	}
	return StateNeedsFallback
}

func pagesFromLines(lines []layout.Line) []string {
	var pages []string
	var b strings.Builder
	page := 0
	flush := func() {
		if page != 0 {
			pages = append(pages, b.String())
			b.Reset()
		}
	}
	for _, l := range lines {
		if l.Page != page {
			flush()
			page = l.Page
		}
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	flush()
	return pages
}

func bestSiret(s *vote.Store) string {
	var best fields.Candidate
	for _, c := range s.Candidates(fields.SIRET) {
		if best.Value.IsZero() || c.Score > best.Score {
			best = c
		}
	}
	if best.Value.IsZero() {
		return ""
	}
	v, _ := best.Value.Text()
	return v
}

func templateOnly(cands []fields.Candidate) []fields.Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.Source == fields.SourceTemplate {
			out = append(out, c)
		}
	}
	return out
}

func tracesFrom(fs fields.FieldSet) []fields.CandidateTrace {
	traces := make([]fields.CandidateTrace, 0, len(fs))
	for _, f := range fields.All {
		v, ok := fs[f]
		if !ok {
			continue
		}
		traces = append(traces, fields.CandidateTrace{
			Field:  f,
			Value:  v.String(),
			Source: fields.SourceRemoteModel,
			Won:    true,
		})
	}
	return traces
}
