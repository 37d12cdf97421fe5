package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/special-stack/invoicer/internal/cache"
	"github.com/muandane/special-stack/invoicer/internal/documents"
	"github.com/muandane/special-stack/invoicer/internal/invoice"
	"github.com/muandane/special-stack/invoicer/internal/render"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// pdfBody is large and repetitive enough to be worth compressing.
var pdfBody = bytes.Repeat([]byte("%PDF-1.7 stream BT /F1 12 Tf (Invoice) Tj ET\n"), 100)

type stubRenderer struct {
	calls atomic.Int32
}

func (r *stubRenderer) Render(_ context.Context, _ *invoice.Invoice) (*render.Document, error) {
	r.calls.Add(1)
	return render.NewDocument(pdfBody, []render.Page{{Width: 612, Height: 792}, {Width: 612, Height: 792}}), nil
}

type testServer struct {
	engine   *gin.Engine
	store    *invoice.MemoryStore
	renderer *stubRenderer
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := invoice.NewMemoryStore()
	renderer := &stubRenderer{}

	docCache := cache.New(cache.DefaultConfig())
	set := metrics.NewSet()
	docCache.RegisterMetrics(set)

	docs, err := documents.NewService(documents.Options{
		Store:    store,
		Cache:    docCache,
		Renderer: renderer,
		Logger:   logger,
	})
	require.NoError(t, err)

	engine := NewRouter(logger).Setup(Options{
		Store:          store,
		Documents:      docs,
		CacheMetrics:   set,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	})
	return &testServer{engine: engine, store: store, renderer: renderer}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func sampleBody() map[string]any {
	return map[string]any{
		"number":   "INV-0001",
		"company":  map[string]any{"name": "Acme"},
		"client":   map[string]any{"name": "Globex"},
		"tax_rate": 10,
		"items": []map[string]any{
			{"name": "Consulting", "quantity": 2, "rate_cents": 5000},
		},
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0, 0)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestInvoiceLifecycle(t *testing.T) {
	s := newTestServer(t, 0, 0)
	id := uuid.New()
	path := "/invoices/" + id.String()

	w := s.do(t, http.MethodPut, path, sampleBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[invoice.Invoice](t, w)
	assert.Equal(t, id, created.ID)
	assert.Equal(t, invoice.StatusDraft, created.Status)
	assert.Equal(t, int64(10000), created.SubtotalCents)
	assert.Equal(t, int64(1000), created.TaxCents)
	assert.Equal(t, int64(11000), created.TotalCents)
	assert.False(t, created.DueDate.IsZero())

	time.Sleep(2 * time.Millisecond)
	body := sampleBody()
	body["status"] = "Sent"
	w = s.do(t, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decode[invoice.Invoice](t, w)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, invoice.StatusSent, updated.Status)

	w = s.do(t, http.MethodGet, "/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Invoices []invoice.Invoice `json:"invoices"`
	}](t, w)
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, id, list.Invoices[0].ID)

	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[map[string]any](t, w)["code"])
}

func TestListInvoices_Filters(t *testing.T) {
	s := newTestServer(t, 0, 0)

	draft := sampleBody()
	draft["number"] = "INV-0001"
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, "/invoices/"+uuid.NewString(), draft).Code)

	paid := sampleBody()
	paid["number"] = "INV-0002"
	paid["status"] = "Paid"
	paid["client"] = map[string]any{"name": "Initech"}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, "/invoices/"+uuid.NewString(), paid).Code)

	type listing struct {
		Invoices []invoice.Invoice `json:"invoices"`
	}
	numbers := func(path string) []string {
		w := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out []string
		for _, inv := range decode[listing](t, w).Invoices {
			out = append(out, inv.Number)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"INV-0001", "INV-0002"}, numbers("/invoices"))
	assert.Equal(t, []string{"INV-0002"}, numbers("/invoices?status=Paid"))
	assert.Equal(t, []string{"INV-0002"}, numbers("/invoices?q=initech"))
	assert.Empty(t, numbers("/invoices?status=Draft&q=initech"))

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/invoices?status=Lost", nil).Code)
}

func TestDuplicateInvoice(t *testing.T) {
	s := newTestServer(t, 0, 0)
	id := uuid.New()
	body := sampleBody()
	body["status"] = "Sent"
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, "/invoices/"+id.String(), body).Code)

	w := s.do(t, http.MethodPost, "/invoices/"+id.String()+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	dup := decode[invoice.Invoice](t, w)
	assert.NotEqual(t, id, dup.ID)
	assert.Equal(t, "INV-0002", dup.Number)
	assert.Equal(t, invoice.StatusDraft, dup.Status)
	assert.Equal(t, int64(11000), dup.TotalCents)

	w = s.do(t, http.MethodGet, "/invoices/"+dup.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/invoices/"+uuid.NewString()+"/duplicate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutInvoice_Rejected(t *testing.T) {
	s := newTestServer(t, 0, 0)
	path := "/invoices/" + uuid.NewString()

	body := sampleBody()
	body["status"] = "Unknown"
	w := s.do(t, http.MethodPut, path, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = s.do(t, http.MethodPut, "/invoices/nope", sampleBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutInvoice_GzipBody(t *testing.T) {
	s := newTestServer(t, 0, 0)

	data, err := json.Marshal(sampleBody())
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPut, "/invoices/"+uuid.NewString(), &buf)
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestPutInvoice_GzipBodyInflatingPastLimit(t *testing.T) {
	s := newTestServer(t, 0, 0)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(bytes.Repeat([]byte(" "), 64<<20))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.Less(t, buf.Len(), 1<<20)

	req := httptest.NewRequest(http.MethodPut, "/invoices/"+uuid.NewString(), &buf)
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds")
}

func TestInvoicePDF_CachesAndInvalidates(t *testing.T) {
	s := newTestServer(t, 0, 0)
	id := uuid.New()
	path := "/invoices/" + id.String()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, path, sampleBody()).Code)

	w := s.do(t, http.MethodGet, path+"/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Page-Count"))
	assert.Equal(t, pdfBody, w.Body.Bytes())

	w = s.do(t, http.MethodGet, path+"/pdf", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, int32(1), s.renderer.calls.Load())

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, path, sampleBody()).Code)

	w = s.do(t, http.MethodGet, path+"/pdf", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, int32(2), s.renderer.calls.Load())
}

func TestInvoicePDF_Gzip(t *testing.T) {
	s := newTestServer(t, 0, 0)
	path := "/invoices/" + uuid.NewString()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, path, sampleBody()).Code)

	w := s.do(t, http.MethodGet, path+"/pdf", nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, data)
}

func TestInvoicePDF_Unknown(t *testing.T) {
	s := newTestServer(t, 0, 0)

	w := s.do(t, http.MethodGet, "/invoices/"+uuid.NewString()+"/pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
}

func TestPrefetch(t *testing.T) {
	s := newTestServer(t, 0, 0)
	first, second := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{first, second} {
		body := sampleBody()
		body["number"] = "INV-" + id.String()[:8]
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, "/invoices/"+id.String(), body).Code)
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/invoices/"+first.String()+"/pdf", nil).Code)

	w := s.do(t, http.MethodPost, "/invoices/prefetch", map[string]any{
		"ids": []string{first.String(), second.String()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decode[documents.PrefetchResult](t, w)
	assert.Equal(t, []uuid.UUID{first}, result.Cached)
	assert.Equal(t, []uuid.UUID{second}, result.Rendered)
	assert.Empty(t, result.Failed)

	w = s.do(t, http.MethodGet, "/invoices/"+second.String()+"/pdf", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestPrefetch_Rejected(t *testing.T) {
	s := newTestServer(t, 0, 0)

	tooMany := make([]string, 101)
	for i := range tooMany {
		tooMany[i] = uuid.NewString()
	}

	tests := []struct {
		name string
		body any
	}{
		{name: "empty", body: map[string]any{"ids": []string{}}},
		{name: "bad id", body: map[string]any{"ids": []string{"nope"}}},
		{name: "too many", body: map[string]any{"ids": tooMany}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/invoices/prefetch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestStatsAndClear(t *testing.T) {
	s := newTestServer(t, 0, 0)
	path := "/invoices/" + uuid.NewString()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, path, sampleBody()).Code)

	s.do(t, http.MethodGet, path+"/pdf", nil)
	s.do(t, http.MethodGet, path+"/pdf", nil)

	stats := decode[cache.Stats](t, s.do(t, http.MethodGet, "/stats", nil))
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, "50.0%", stats.HitRate)
	assert.Equal(t, int64(100_000), stats.SizeBytes)
	assert.Equal(t, "98 KiB", stats.Size)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/cache", nil).Code)

	stats = decode[cache.Stats](t, s.do(t, http.MethodGet, "/stats", nil))
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, "0 B", stats.Size)
	assert.Equal(t, "0.0%", stats.HitRate)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0, 0)
	s.do(t, http.MethodGet, "/stats", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "document_cache_entries 0")
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 0.001, 1)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/stats", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodGet, "/stats", nil).Code)

	// Probes are not limited.
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
}
