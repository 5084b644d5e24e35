package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/devisflow/docextract/constants"
	"github.com/devisflow/docextract/internal/common"
	"github.com/devisflow/docextract/internal/engine"
	"github.com/devisflow/docextract/internal/ocr"
	"github.com/devisflow/docextract/internal/remote"
	"github.com/devisflow/docextract/internal/template"
)

// fileResult is one line of the JSONL output.
type fileResult struct {
	File          string  `json:"file"`
	Status        string  `json:"status"`
	Confidence    float64 `json:"confidence,omitempty"`
	FieldCount    int     `json:"field_count,omitempty"`
	Error         string  `json:"error,omitempty"`
	Fields        any     `json:"fields,omitempty"`
	NeedsFallback bool    `json:"needs_fallback,omitempty"`
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory to scan for documents (required)")
		out     = flag.String("out", "", "output JSONL path (defaults to stdout)")
		timeout = flag.Duration("timeout", 3*time.Minute, "per-document timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dir == "" {
		logger.Error("usage", "cmd", "extract-batch -dir <directory> [-out results.jsonl]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	sink := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("create output", "path", *out, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Warn("close output", "error", err)
			}
		}()
		sink = f
	}
	enc := json.NewEncoder(sink)

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Language:    cfg.OCR.Language,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		Workers:     cfg.OCR.Workers,
		TessdataDir: cfg.OCR.TessdataD,
	}, logger)
	defer ocrx.Shutdown()

	deps := engine.Deps{OCR: ocrx}
	if cfg.Remote.APIKey != "" {
		deps.Remote = remote.NewClient(cfg.Remote, logger)
	}
	if cfg.Templates.DBPath != "" {
		store, err := template.Open(cfg.Templates.DBPath, logger)
		if err != nil {
			logger.Error("open template store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("close template store", "error", err)
			}
		}()
		deps.Templates = store
	}
	eng := engine.New(cfg.Engine, deps, logger)

	var total, accepted, fallback, failed int
	err := filepath.WalkDir(*dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		kind := constants.MapExtToKind(filepath.Ext(path))
		if kind == "" {
			return nil
		}
		total++
		res := processFile(eng, path, kind, *timeout, logger)
		switch {
		case res.Error != "":
			failed++
		case res.NeedsFallback:
			fallback++
		default:
			accepted++
		}
		return enc.Encode(res)
	})
	if err != nil {
		logger.Error("walk directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	logger.Info("batch done",
		"dir", *dir,
		"total", total,
		"accepted", accepted,
		"needs_fallback", fallback,
		"failed", failed,
	)
	if total == 0 {
		logger.Warn("no supported documents found", "dir", *dir)
	}
}

// processFile isolates one document so a single failure never stops the
// batch.
func processFile(eng *engine.Engine, path string, kind constants.DocKind, timeout time.Duration, logger *slog.Logger) fileResult {
	doc, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "file", path, "error", err)
		return fileResult{File: path, Status: string(constants.StatusFailed), Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	res, err := eng.Extract(ctx, doc, kind)
	if err != nil {
		logger.Error("extraction failed",
			"file", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return fileResult{File: path, Status: string(constants.StatusFailed), Error: err.Error()}
	}

	status := constants.StatusAccepted
	if res.NeedsFallback {
		status = constants.StatusNeedsFallback
	}
	logger.Info("extracted",
		"file", path,
		"status", status,
		"confidence", res.Confidence,
		"fields", len(res.Fields),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return fileResult{
		File:          path,
		Status:        string(status),
		Confidence:    res.Confidence,
		FieldCount:    len(res.Fields),
		Fields:        res.Fields,
		NeedsFallback: res.NeedsFallback,
	}
}
