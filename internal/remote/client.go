package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devisflow/docextract/internal/common"
)

// Client talks to an OpenAI-compatible chat/completions endpoint and
// asks a vision-capable model for the document's fields.
type Client struct {
	cfg        common.RemoteConfig
	httpClient *http.Client
	log        *slog.Logger
}

var _ Extractor = (*Client)(nil)

func NewClient(cfg common.RemoteConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

// Extract sends the document to the remote model and returns its
// structured answer. Any transport, decode, or validation failure maps
// to ErrRemoteUnavailable so the caller can treat the escalation as a
// no-op rather than a pipeline failure.
func (c *Client) Extract(ctx context.Context, req Request) (Result, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.log.Info("remote.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"kind", req.KindHint,
		"doc_bytes", len(req.DocumentBytes),
		"text_len", len(req.RawText),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": c.userContent(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("remote.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.NewAppError("REMOTE_HTTP", "remote extraction request failed", common.ErrRemoteUnavailable)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		c.log.Error("remote.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.NewAppError("REMOTE_DECODE", "remote response had no usable choices", common.ErrRemoteUnavailable)
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := ValidateFieldJSON(content); err != nil {
		cleaned, dropped, sErr := SanitizeFieldJSON(content)
		if sErr != nil || ValidateFieldJSON(cleaned) != nil {
			c.log.Error("remote.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return Result{}, common.NewAppError("REMOTE_SCHEMA", "remote answer failed schema validation", common.ErrRemoteUnavailable)
		}
		c.log.Warn("remote.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		content = cleaned
	}

	fs, conf, err := ParseFieldJSON(content)
	if err != nil {
		c.log.Error("remote.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.NewAppError("REMOTE_PARSE", "remote answer could not be parsed", common.ErrRemoteUnavailable)
	}

	c.log.Info("remote.extract.ok",
		"req_id", rid,
		"fields", len(fs),
		"confidence", conf,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Fields: fs, Confidence: conf, Raw: content}, nil
}

// userContent builds the user message. Image documents go as a base64
// data URL alongside the OCR text; anything else is text-only.
func (c *Client) userContent(req Request) any {
	prompt := userPrompt(req.RawText)
	mime := sniffImageMIME(req.DocumentBytes)
	if mime == "" {
		return prompt
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.DocumentBytes)
	return []map[string]any{
		{"type": "text", "text": prompt},
		{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
	}
}

func sniffImageMIME(b []byte) string {
	switch {
	case len(b) > 8 && bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case len(b) > 3 && bytes.HasPrefix(b, []byte{0xff, 0xd8, 0xff}):
		return "image/jpeg"
	case len(b) > 4 && bytes.HasPrefix(b, []byte("%PDF")):
		// chat/completions has no PDF part; the caller's OCR text
		// carries the content instead.
		return ""
	default:
		return ""
	}
}

func systemPrompt() string {
	parts := []string{
		"You read French invoices, quotes and public tender notices.",
		"Return ONLY JSON that matches the JSON Schema provided.",
		"Amounts are plain numbers with a dot decimal separator, never formatted strings.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"siret is exactly 14 digits with no separators.",
		"Never output null. If a field is not present in the document, omit it.",
		"Set confidence between 0 and 1 reflecting how certain you are of the answer as a whole.",
	}
	return strings.Join(parts, " ")
}

func userPrompt(ocr string) string {
	var b strings.Builder
	b.WriteString("Extract the document's fields.\n\nJSON Schema:\n")
	b.WriteString(fieldSchemaJSON)
	if ocr != "" {
		b.WriteString("\n\nOCR text (first ~3k chars):\n")
		if len(ocr) > 3000 {
			b.WriteString(ocr[:3000])
		} else {
			b.WriteString(ocr)
		}
	}
	return b.String()
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("remote response body close error", "error", err)
		}
	}(resp.Body)

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote status %d: %s", resp.StatusCode, string(out))
	}
	return out, nil
}
