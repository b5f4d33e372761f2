package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maltedev/outlet-scraper/internal/charset"
	"github.com/maltedev/outlet-scraper/internal/models"
	"github.com/maltedev/outlet-scraper/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

const outletPage = `<html><head><meta charset="utf-8"></head><body><table>
<tr><th>価格</th><th>仕様</th></tr>
<tr><td>¥59,800</td><td>Inspiron 15 3000 Core i3</td></tr>
</table></body></html>`

func newTestRouter(maxBody int64) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := scraper.NewService(charset.NewNormalizer(logger), logger)
	return NewRouter(NewHandlers(svc, maxBody, logger), 0)
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(0), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExtractors(t *testing.T) {
	rec := do(t, newTestRouter(0), http.MethodGet, "/api/v1/extractors", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"extractors":["dell-outlet"]}`, rec.Body.String())
}

func TestExtract(t *testing.T) {
	rec := do(t, newTestRouter(0), http.MethodPost, "/api/v1/extract?extractor=dell-outlet", strings.NewReader(outletPage))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, charset.UTF8, resp.Charset)
	assert.Equal(t, charset.SourceMeta, resp.Source)
	assert.Equal(t, []models.Record{{Price: "¥59,800", Specifications: "Inspiron 15 3000 Core i3"}}, resp.Records)
}

func TestExtractLegacyArchivePath(t *testing.T) {
	raw, err := japanese.ShiftJIS.NewEncoder().String(strings.Replace(outletPage, `<meta charset="utf-8">`, "", 1))
	require.NoError(t, err)

	rec := do(t, newTestRouter(0), http.MethodPost,
		"/api/v1/extract?extractor=dell-outlet&path=/srv/dell_outlets/2004/index.html", strings.NewReader(raw))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, charset.ShiftJIS, resp.Charset)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Inspiron 15 3000 Core i3", resp.Records[0].Specifications)
}

func TestExtractNoMatchesReturnsEmptyArray(t *testing.T) {
	rec := do(t, newTestRouter(0), http.MethodPost, "/api/v1/extract?extractor=dell-outlet", strings.NewReader("<p>nothing</p>"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		body     string
		maxBody  int64
		wantCode int
		wantErr  string
	}{
		{"missing extractor", "/api/v1/extract", outletPage, 0, http.StatusBadRequest, CodeBadRequest},
		{"unknown extractor", "/api/v1/extract?extractor=amazon", outletPage, 0, http.StatusBadRequest, CodeUnknownExtractor},
		{"bad persist flag", "/api/v1/extract?extractor=dell-outlet&persist=maybe", outletPage, 0, http.StatusBadRequest, CodeBadRequest},
		{"empty body", "/api/v1/extract?extractor=dell-outlet", "", 0, http.StatusBadRequest, CodeEmptyBody},
		{"body too large", "/api/v1/extract?extractor=dell-outlet", outletPage, 16, http.StatusRequestEntityTooLarge, CodeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tt.maxBody), http.MethodPost, tt.target, strings.NewReader(tt.body))
			assert.Equal(t, tt.wantCode, rec.Code)

			var apiErr models.Error
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantErr, apiErr.Code)
			assert.Equal(t, "/api/v1/extract", apiErr.URL)
			assert.False(t, apiErr.Time.IsZero())
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestRouter(0), http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
