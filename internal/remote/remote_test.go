package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devisflow/docextract/constants"
	"github.com/devisflow/docextract/internal/common"
	"github.com/devisflow/docextract/internal/fields"
)

func chatReply(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func testClient(baseURL string) *Client {
	return NewClient(common.RemoteConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	}, nil)
}

func TestExtractValidAnswer(t *testing.T) {
	body := `{"ht": 4800, "tva_pct": 20, "tva_amt": 960, "ttc": 5760,
	          "siret": "12345678900012", "document_date": "2024-03-15",
	          "confidence": 0.9}`
	srv := httptest.NewServer(chatReply(t, body))
	defer srv.Close()

	res, err := testClient(srv.URL).Extract(context.Background(), Request{
		KindHint: constants.PDF,
		RawText:  "Facture ...",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)

	ht, ok := res.Fields.Amount(fields.HT)
	require.True(t, ok)
	assert.InDelta(t, 4800, ht, 1e-9)
	pct, ok := res.Fields.Percent(fields.TVAPct)
	require.True(t, ok)
	assert.InDelta(t, 20, pct, 1e-9)
	assert.True(t, res.Fields.Has(fields.SIRET))
}

func TestExtractSanitizesLocaleStrings(t *testing.T) {
	// Amounts as French strings, siret with spaces, DD/MM/YYYY date and
	// an off-contract key. Strict validation fails, the lenient pass
	// repairs it.
	body := `{"ttc": "5 760,00", "siret": "123 456 789 00012",
	          "document_date": "15/03/2024", "vendor": "ACME",
	          "confidence": 0.8}`
	srv := httptest.NewServer(chatReply(t, body))
	defer srv.Close()

	res, err := testClient(srv.URL).Extract(context.Background(), Request{KindHint: constants.PDF})
	require.NoError(t, err)

	ttc, ok := res.Fields.Amount(fields.TTC)
	require.True(t, ok)
	assert.InDelta(t, 5760, ttc, 1e-9)
	d, ok := res.Fields[fields.DocumentDate].Date()
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", d)
	s, _ := res.Fields[fields.SIRET].Text()
	assert.Equal(t, "12345678900012", s)
}

func TestExtractRejectsUnrepairableAnswer(t *testing.T) {
	srv := httptest.NewServer(chatReply(t, `not json at all`))
	defer srv.Close()

	_, err := testClient(srv.URL).Extract(context.Background(), Request{KindHint: constants.IMAGE})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRemoteUnavailable))
}

func TestExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Extract(context.Background(), Request{KindHint: constants.PDF})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRemoteUnavailable))
}

func TestExtractUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(chatReply(t, `{}`))
	srv.Close() // connection refused from here on

	_, err := testClient(srv.URL).Extract(context.Background(), Request{KindHint: constants.PDF})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRemoteUnavailable))
}

func TestExtractSendsImageAsDataURL(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"confidence": 0.5}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Extract(context.Background(), Request{
		DocumentBytes: png,
		KindHint:      constants.IMAGE,
	})
	require.NoError(t, err)

	msgs := captured["messages"].([]any)
	user := msgs[1].(map[string]any)
	parts, ok := user["content"].([]any)
	require.True(t, ok, "image request should use multi-part content")
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	url := img["image_url"].(map[string]any)["url"].(string)
	assert.Contains(t, url, "data:image/png;base64,")
}

func TestSanitizeDropsBadOptionalsKeepsConfidence(t *testing.T) {
	in := []byte(`{"ht": null, "ttc": "n/a", "siret": "123", "postal_code": "69003",
	               "tender_deadline": "31/02/2024", "confidence": "0.7"}`)
	out, dropped, err := SanitizeFieldJSON(in)
	require.NoError(t, err)
	require.NoError(t, ValidateFieldJSON(out))

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.NotContains(t, m, "ht")
	assert.NotContains(t, m, "ttc")
	assert.NotContains(t, m, "siret")
	assert.NotContains(t, m, "tender_deadline") // 31 Feb is not a date
	assert.Equal(t, "69003", m["postal_code"])
	assert.InDelta(t, 0.7, m["confidence"].(float64), 1e-9)
	assert.NotEmpty(t, dropped)
}

func TestParseFieldJSONOmitsAbsent(t *testing.T) {
	fs, conf, err := ParseFieldJSON([]byte(`{"net": 1200.5, "confidence": 1}`))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, conf, 1e-9)
	assert.Len(t, fs, 1)
	net, ok := fs.Amount(fields.Net)
	require.True(t, ok)
	assert.InDelta(t, 1200.5, net, 1e-9)
}
