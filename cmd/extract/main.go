package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
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

// Exit codes: 0 accepted, 1 failure, 2 usage, 3 needs fallback.
const exitNeedsFallback = 3

func main() {
	var (
		file    = flag.String("file", "", "document to extract (required)")
		timeout = flag.Duration("timeout", 3*time.Minute, "overall extraction timeout")
		debug   = flag.Bool("debug", false, "include the candidate trace in the output")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *file == "" {
		logger.Error("usage", "cmd", "extract -file <document> [-debug]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ext := constants.NormalizeExt(filepath.Ext(*file))
	kind := constants.MapExtToKind(ext)
	if kind == "" {
		logger.Error("unsupported file extension", "ext", ext)
		os.Exit(2)
	}

	doc, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("read file", "file", *file, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	eng, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	start := time.Now()
	res, err := eng.Extract(ctx, doc, kind)
	if err != nil {
		logger.Error("extraction failed",
			"file", *file, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("extraction done",
		"file", *file,
		"fields", len(res.Fields),
		"confidence", res.Confidence,
		"needs_fallback", res.NeedsFallback,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !*debug {
		res.Debug = nil
		res.RawText = ""
		res.PerPageText = nil
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if res.NeedsFallback {
		os.Exit(exitNeedsFallback)
	}
}

// buildEngine wires the configured collaborators. The remote model and
// the template store are optional; extraction degrades without them.
func buildEngine(cfg *common.Config, logger *slog.Logger) (*engine.Engine, func(), error) {
	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Language:    cfg.OCR.Language,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		Workers:     cfg.OCR.Workers,
		TessdataDir: cfg.OCR.TessdataD,
	}, logger)

	deps := engine.Deps{OCR: ocrx}
	cleanup := func() { ocrx.Shutdown() }

	if cfg.Remote.APIKey != "" {
		deps.Remote = remote.NewClient(cfg.Remote, logger)
	} else {
		logger.Info("remote escalation disabled", "reason", "REMOTE_API_KEY not set")
	}

	if cfg.Templates.DBPath != "" {
		store, err := template.Open(cfg.Templates.DBPath, logger)
		if err != nil {
			ocrx.Shutdown()
			return nil, nil, err
		}
		deps.Templates = store
		prev := cleanup
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("close template store", "error", err)
			}
			prev()
		}
	}

	return engine.New(cfg.Engine, deps, logger), cleanup, nil
}
