package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devisflow/docextract/constants"
	"github.com/devisflow/docextract/internal/common"
	"github.com/devisflow/docextract/internal/fields"
	"github.com/devisflow/docextract/internal/layout"
	"github.com/devisflow/docextract/internal/remote"
	"github.com/devisflow/docextract/internal/template"
	"github.com/devisflow/docextract/internal/vote"
)

const invoiceText = `Facture n° F-2024-001 du 15/03/2024
SIRET 123 456 789 00012
Total HT 4 800,00 €
TVA 20 %
Montant TVA 960,00 €
Total TTC 5 760,00 €`

type stubOCR struct {
	pages      []string
	image      string
	err        error
	imageCalls int
	pdfCalls   int
}

func (s *stubOCR) ExtractPDF(_ context.Context, _ []byte) ([]string, error) {
	s.pdfCalls++
	return s.pages, s.err
}

func (s *stubOCR) ExtractImage(_ context.Context, _ []byte) (string, error) {
	s.imageCalls++
	return s.image, s.err
}

type stubRemote struct {
	res    remote.Result
	err    error
	calls  int
	gotReq remote.Request
}

func (s *stubRemote) Extract(_ context.Context, req remote.Request) (remote.Result, error) {
	s.calls++
	s.gotReq = req
	return s.res, s.err
}

type stubTemplates struct {
	tpl *template.Template
	err error
}

func (s *stubTemplates) Lookup(_ context.Context, _ string) (*template.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tpl, nil
}

func newEngine(deps Deps) *Engine {
	return New(common.EngineConfig{AcceptThreshold: 0.75}, deps, nil)
}

func TestRejectsOversizedInput(t *testing.T) {
	e := newEngine(Deps{})
	doc := make([]byte, constants.MaxInputBytes+1)

	_, err := e.Extract(context.Background(), doc, constants.PDF)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInputTooLarge))
}

func TestRejectsUnknownKind(t *testing.T) {
	e := newEngine(Deps{})

	_, err := e.Extract(context.Background(), []byte("plain text"), constants.DocKind("TXT"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnreadableFormat))
}

func TestScannedInvoiceAccepted(t *testing.T) {
	// Bytes that are not parseable PDF text force the OCR fallback; the
	// recognized text carries every confidence signal.
	ocr := &stubOCR{pages: []string{invoiceText}}
	e := newEngine(Deps{OCR: ocr})

	res, err := e.Extract(context.Background(), []byte("%PDF-garbage"), constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.pdfCalls)
	assert.False(t, res.NeedsFallback)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)

	ht, ok := res.Fields.Amount(fields.HT)
	require.True(t, ok)
	assert.InDelta(t, 4800, ht, 1e-9)
	ttc, ok := res.Fields.Amount(fields.TTC)
	require.True(t, ok)
	assert.InDelta(t, 5760, ttc, 1e-9)
	siret, _ := res.Fields[fields.SIRET].Text()
	assert.Equal(t, "12345678900012", siret)
	d, _ := res.Fields[fields.DocumentDate].Date()
	assert.Equal(t, "2024-03-15", d)
	assert.NotEmpty(t, res.Debug)
	require.Len(t, res.PerPageText, 1)
}

func TestImageGoesStraightToRecognition(t *testing.T) {
	ocr := &stubOCR{image: invoiceText}
	e := newEngine(Deps{OCR: ocr})

	res, err := e.Extract(context.Background(), []byte{0xff, 0xd8, 0xff}, constants.IMAGE)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.imageCalls)
	assert.Zero(t, ocr.pdfCalls)
	assert.False(t, res.NeedsFallback)
}

func TestNoTextAnywhereFails(t *testing.T) {
	ocr := &stubOCR{pages: []string{"", "  "}}
	e := newEngine(Deps{OCR: ocr})

	_, err := e.Extract(context.Background(), []byte("%PDF-garbage"), constants.PDF)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnreadableFormat))
}

func TestCSVTotalNeedsFallback(t *testing.T) {
	// A table alone yields the total but none of the identity signals,
	// so the document lands below the acceptance threshold.
	csv := "Description,Montant TTC\nChaises,100\nTables,200\nBureaux,300\n"
	e := newEngine(Deps{})

	res, err := e.Extract(context.Background(), []byte(csv), constants.CSV)
	require.NoError(t, err)
	assert.True(t, res.NeedsFallback)

	ttc, ok := res.Fields.Amount(fields.TTC)
	require.True(t, ok)
	assert.InDelta(t, 600, ttc, 1e-9)
	assert.Less(t, res.Confidence, 0.75)
}

func TestEscalationReplacesWeakerLocalResult(t *testing.T) {
	remoteFields := fields.FieldSet{
		fields.TTC:   fields.Amount(5760),
		fields.HT:    fields.Amount(4800),
		fields.SIRET: fields.Text("12345678900012"),
	}
	rm := &stubRemote{res: remote.Result{Fields: remoteFields, Confidence: 0.9}}
	ocr := &stubOCR{pages: []string{"Total TTC 5 760,00 €"}}
	e := newEngine(Deps{OCR: ocr, Remote: rm})

	res, err := e.Extract(context.Background(), []byte("%PDF-garbage"), constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, 1, rm.calls)
	assert.Equal(t, "Total TTC 5 760,00 €", rm.gotReq.RawText)
	assert.False(t, res.NeedsFallback)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)

	ht, ok := res.Fields.Amount(fields.HT)
	require.True(t, ok)
	assert.InDelta(t, 4800, ht, 1e-9)

	var sawRemoteTrace bool
	for _, tr := range res.Debug {
		if tr.Source == fields.SourceRemoteModel && tr.Won {
			sawRemoteTrace = true
		}
	}
	assert.True(t, sawRemoteTrace)
}

func TestEscalationKeepsStrongerLocalResult(t *testing.T) {
	rm := &stubRemote{res: remote.Result{
		Fields:     fields.FieldSet{fields.TTC: fields.Amount(9999)},
		Confidence: 0.3,
	}}
	ocr := &stubOCR{pages: []string{"Total TTC 5 760,00 €"}}
	e := newEngine(Deps{OCR: ocr, Remote: rm})

	res, err := e.Extract(context.Background(), []byte("%PDF-garbage"), constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, 1, rm.calls)
	assert.True(t, res.NeedsFallback)

	ttc, ok := res.Fields.Amount(fields.TTC)
	require.True(t, ok)
	assert.InDelta(t, 5760, ttc, 1e-9, "local value must survive a weaker remote answer")
}

func TestUnavailableRemoteIsNotAFailure(t *testing.T) {
	rm := &stubRemote{err: common.NewAppError("REMOTE_HTTP", "down", common.ErrRemoteUnavailable)}
	ocr := &stubOCR{pages: []string{"Total TTC 5 760,00 €"}}
	e := newEngine(Deps{OCR: ocr, Remote: rm})

	res, err := e.Extract(context.Background(), []byte("%PDF-garbage"), constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, 1, rm.calls)
	assert.True(t, res.NeedsFallback)
	assert.True(t, res.Fields.Has(fields.TTC))
}

func TestCancelledContextStopsPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(Deps{OCR: &stubOCR{pages: []string{invoiceText}}})
	_, err := e.Extract(ctx, []byte("%PDF-garbage"), constants.PDF)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestVoteStepAddsTemplateAnchors(t *testing.T) {
	tpls := &stubTemplates{tpl: &template.Template{
		SIRET:   "12345678900012",
		Name:    "ACME",
		Anchors: []layout.Anchor{{Label: "somme à régler", Field: fields.Net, Score: 0.95}},
	}}
	e := newEngine(Deps{Templates: tpls})

	r := &run{
		kind:  constants.PDF,
		state: StateVote,
		store: vote.NewStore(),
		lines: []layout.Line{{Page: 1, Y: 50, Text: "Somme à régler : 1 234,56 €"}},
	}
	r.store.Add(fields.Candidate{
		Field: fields.SIRET, Value: fields.Text("12345678900012"),
		Score: 0.8, Source: fields.SourceRegex,
	})

	next := e.step(context.Background(), r)
	assert.Equal(t, StateScore, next)

	net, ok := r.fs.Amount(fields.Net)
	require.True(t, ok)
	assert.InDelta(t, 1234.56, net, 1e-9)

	var won fields.CandidateTrace
	for _, tr := range r.debug {
		if tr.Field == fields.Net && tr.Won {
			won = tr
		}
	}
	assert.Equal(t, fields.SourceTemplate, won.Source)
}

func TestVoteStepSkipsTemplatesWithoutLines(t *testing.T) {
	tpls := &stubTemplates{err: common.NewAppError("TEMPLATE_NOT_FOUND", "none", common.ErrNotFound)}
	e := newEngine(Deps{Templates: tpls})

	r := &run{kind: constants.PDF, state: StateVote, store: vote.NewStore()}
	r.store.Add(fields.Candidate{
		Field: fields.TTC, Value: fields.Amount(100),
		Score: 0.7, Source: fields.SourceRegex,
	})

	next := e.step(context.Background(), r)
	assert.Equal(t, StateScore, next)
	assert.True(t, r.fs.Has(fields.TTC))
}

func TestMeasureTextQualityGate(t *testing.T) {
	dense := strings.Repeat("Conditions générales de vente applicables au marché. ", 10)

	tests := []struct {
		name     string
		pages    []string
		needsOCR bool
	}{
		{"dense printable text", []string{dense, dense}, false},
		{"nearly empty pages", []string{"Devis", ""}, true},
		{"private use area glyphs", []string{strings.Repeat(" ", 40)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := measureText(tt.pages)
			assert.Equal(t, tt.needsOCR, q.needsOCR())
		})
	}
}
