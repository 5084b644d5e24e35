// Package ocr turns rendered page bitmaps into text. Pages are
// preprocessed (grayscale + Otsu binarization) and recognized with
// several page-segmentation passes on a bounded worker pool, keeping the
// best-quality pass per page.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
)

type Config struct {
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	Language    string // tesseract language pack, default "fra"
	DPI         int    // rasterization DPI for scanned pages, default 300
	MaxPages    int    // 0 = no limit
	Workers     int    // pool size, default 3
	TessdataDir string
}

// Extractor owns the recognition pool and the external rasterizer.
// Construct once, share across documents, Shutdown when done.
type Extractor struct {
	cfg    Config
	runner Runner
	pool   *Pool
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	applyDefaults(&cfg)
	pool := NewPool(cfg.Workers, NewTesseractFactory(cfg.Language, cfg.TessdataDir), logger)
	return &Extractor{cfg: cfg, runner: execRunner{}, pool: pool, logger: logger}
}

// NewExtractorWith injects the runner and pool, for tests.
func NewExtractorWith(cfg Config, runner Runner, pool *Pool, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	applyDefaults(&cfg)
	return &Extractor{cfg: cfg, runner: runner, pool: pool, logger: logger}
}

func applyDefaults(cfg *Config) {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "fra"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
}

// Shutdown releases the recognition workers.
func (e *Extractor) Shutdown() {
	e.pool.Shutdown()
}

// RecognizePage preprocesses one page bitmap and runs the segmentation
// passes in priority order, stopping early once a pass reaches the
// quality threshold. Returns the best text and its quality.
func (e *Extractor) RecognizePage(ctx context.Context, img image.Image) (string, float64, error) {
	pre := Preprocess(img)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, pre, imaging.PNG); err != nil {
		return "", 0, fmt.Errorf("encode page: %w", err)
	}
	encoded := buf.Bytes()

	bestText, bestQuality := "", -1.0
	var lastErr error
	for _, mode := range passOrder {
		text, err := e.pool.Submit(ctx, encoded, mode)
		if err != nil {
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			e.logger.Warn("ocr.pass.failed", "mode", mode.String(), "error", err)
			lastErr = err
			continue
		}
		q := Quality(text)
		e.logger.Debug("ocr.pass.ok", "mode", mode.String(), "quality", q, "bytes", len(text))
		if q > bestQuality {
			bestText, bestQuality = text, q
		}
		if q >= QualityThreshold {
			break
		}
	}
	if bestQuality < 0 {
		return "", 0, fmt.Errorf("all recognition passes failed: %w", lastErr)
	}
	return bestText, bestQuality, nil
}

// ExtractImage recognizes a directly supplied image document.
func (e *Extractor) ExtractImage(ctx context.Context, b []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	text, _, err := e.RecognizePage(ctx, img)
	return text, err
}

// ExtractPDF rasterizes a PDF with pdftoppm and recognizes every page.
// Pages run concurrently across the pool but the returned texts are in
// page order. A page that fails to render or recognize is logged and
// yields an empty string; only rendering nothing at all is an error.
func (e *Extractor) ExtractPDF(ctx context.Context, b []byte) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "docextract-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmpdir.remove_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, b, 0o600); err != nil {
		return nil, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	texts := make([]string, len(matches))
	var wg sync.WaitGroup
	for i, path := range matches {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			img, err := imaging.Open(path)
			if err != nil {
				e.logger.Warn("ocr.page.open_failed", "page", i+1, "error", err)
				return
			}
			text, quality, err := e.RecognizePage(ctx, img)
			if err != nil {
				e.logger.Warn("ocr.page.recognize_failed", "page", i+1, "error", err)
				return
			}
			e.logger.Debug("ocr.page.ok", "page", i+1, "quality", quality)
			texts[i] = text
		}(i, path)
	}
	wg.Wait()
	return texts, nil
}
