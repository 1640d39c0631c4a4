package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataview/internal/config"
	"github.com/JonMunkholm/dataview/internal/core"
	"github.com/JonMunkholm/dataview/internal/metrics"
	"github.com/JonMunkholm/dataview/internal/schema"
)

// fakeService records calls and returns canned results.
type fakeService struct {
	mu sync.Mutex

	ingestName string
	ingestBody string
	ingestErr  error

	pageSkip, pageLimit int
	pageErr             error

	gotTypes  map[string]schema.DisplayType
	updateErr error

	limiter *core.UploadLimiter
}

func newFakeService() *fakeService {
	return &fakeService{limiter: core.NewUploadLimiter(2, time.Second)}
}

func sampleSchema() schema.Raw {
	return schema.NewRaw(
		schema.Column[string]{Name: "id", Type: "int64"},
		schema.Column[string]{Name: "name", Type: "object"},
	)
}

func (f *fakeService) Ingest(ctx context.Context, name string, r io.Reader) (core.PageResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return core.PageResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestName, f.ingestBody = name, string(body)
	if f.ingestErr != nil {
		return core.PageResult{}, f.ingestErr
	}
	next := 1
	return core.PageResult{
		DatasetID:  "ds-1",
		Schema:     sampleSchema(),
		Rows:       []schema.Row{{"id": int64(1), "name": "ann"}},
		TotalCount: 2,
		NextSkip:   &next,
	}, nil
}

func (f *fakeService) Page(ctx context.Context, skip, limit int) (core.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSkip, f.pageLimit = skip, limit
	if f.pageErr != nil {
		return core.PageResult{}, f.pageErr
	}
	return core.PageResult{
		Schema:     sampleSchema(),
		Rows:       []schema.Row{{"id": int64(2), "name": "bob"}},
		TotalCount: 2,
	}, nil
}

func (f *fakeService) UpdateColumnTypes(ctx context.Context, types map[string]schema.DisplayType) (schema.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotTypes = types
	if f.updateErr != nil {
		return schema.Raw{}, f.updateErr
	}
	raw := sampleSchema()
	for col, t := range types {
		raw.Set(col, schema.RawTag(t))
	}
	return raw, nil
}

func (f *fakeService) Limiter() *core.UploadLimiter { return f.limiter }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, InitialRows: 100, MaxPageSize: 1000},
		Rate:   config.RateLimitConfig{Enabled: false},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func newTestServer(t *testing.T, svc Service, cfg *config.Config, m *metrics.Metrics) *Server {
	t.Helper()
	s := NewServer(svc, cfg, m)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleUpload(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig(), nil)

	for _, path := range []string{"/api/upload/", "/api/upload"} {
		t.Run(path, func(t *testing.T) {
			body, ctype := multipartBody(t, "file", "people.csv", "id,name\n1,ann\n2,bob\n")
			req := httptest.NewRequest(http.MethodPost, path, body)
			req.Header.Set("Content-Type", ctype)
			rec := httptest.NewRecorder()

			s.Router().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "people.csv", svc.ingestName)
			assert.Equal(t, "id,name\n1,ann\n2,bob\n", svc.ingestBody)

			var got map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.JSONEq(t, `{"id":"int64","name":"object"}`, string(got["inferred_types"]))
			assert.JSONEq(t, `[{"id":1,"name":"ann"}]`, string(got["data"]))
			assert.Equal(t, "2", string(got["total_count"]))
			assert.Equal(t, "1", string(got["next_skip"]))
			// Column order is the file's order.
			assert.True(t, strings.Index(string(got["inferred_types"]), `"id"`) < strings.Index(string(got["inferred_types"]), `"name"`))
		})
	}
}

func TestHandleUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		ingestErr  error
		plainBody  bool
		wantStatus int
		wantCode   string
	}{
		{name: "missing file part", field: "upload", wantStatus: http.StatusBadRequest, wantCode: "FILE004"},
		{name: "not multipart", plainBody: true, wantStatus: http.StatusBadRequest, wantCode: "FILE004"},
		{name: "empty file", field: "file", ingestErr: core.ErrEmptyFile, wantStatus: http.StatusBadRequest, wantCode: "FILE005"},
		{name: "unsupported format", field: "file", ingestErr: core.ErrUnsupportedFormat, wantStatus: http.StatusBadRequest, wantCode: "FILE002"},
		{name: "too large", field: "file", ingestErr: core.ErrFileTooLarge, wantStatus: http.StatusRequestEntityTooLarge, wantCode: "FILE001"},
		{name: "storage failure", field: "file", ingestErr: errors.New("save dataset: disk on fire"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.ingestErr = tt.ingestErr
			s := newTestServer(t, svc, testConfig(), nil)

			var req *http.Request
			if tt.plainBody {
				req = httptest.NewRequest(http.MethodPost, "/api/upload/", strings.NewReader("id\n1\n"))
				req.Header.Set("Content-Type", "text/csv")
			} else {
				body, ctype := multipartBody(t, tt.field, "data.csv", "id\n1\n")
				req = httptest.NewRequest(http.MethodPost, "/api/upload/", body)
				req.Header.Set("Content-Type", ctype)
			}
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, resp.Code)
			}
			assert.NotEmpty(t, resp.Message)
			assert.NotContains(t, resp.Message, "disk on fire")
		})
	}
}

func TestHandleData(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantSkip  int
		wantLimit int
	}{
		{"defaults", "", 0, 100},
		{"explicit", "?skip=100&limit=50", 100, 50},
		{"garbage falls back", "?skip=abc&limit=-3", 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			s := newTestServer(t, svc, testConfig(), nil)

			req := httptest.NewRequest(http.MethodGet, "/api/data"+tt.query, nil)
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantSkip, svc.pageSkip)
			assert.Equal(t, tt.wantLimit, svc.pageLimit)

			var got map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, "null", string(got["next_skip"]))
			assert.JSONEq(t, `[{"id":2,"name":"bob"}]`, string(got["data"]))
		})
	}
}

func TestHandleData_NoData(t *testing.T) {
	svc := newFakeService()
	svc.pageErr = core.ErrNoData
	s := newTestServer(t, svc, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/data?skip=0&limit=100", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "No data available", resp.Error)
	assert.Equal(t, "DATA001", resp.Code)
}

func TestHandleUpdateColumnTypes(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig(), nil)

	body := `{"column_types":{"id":"Float","name":"Sparkly"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/update_column_types/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]schema.DisplayType{"id": schema.Float}, svc.gotTypes)
	assert.JSONEq(t, `{"inferred_types":{"id":"float64","name":"object"}}`, rec.Body.String())
}

func TestHandleUpdateColumnTypes_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		updateErr error
		wantError string
		wantCode  string
	}{
		{
			name:      "invalid json",
			body:      `{"column_types":`,
			wantError: "Invalid JSON data.",
			wantCode:  "VAL003",
		},
		{
			name: "conversion failure",
			body: `{"column_types":{"name":"Integer"}}`,
			updateErr: &core.ConversionError{
				Column: "name", Type: schema.Integer, Row: 0, Value: "ann",
				Err: errors.New("invalid syntax"),
			},
			wantError: `Failed to convert name to Integer: row 1 value "ann"`,
			wantCode:  "VAL001",
		},
		{
			name:      "unknown column",
			body:      `{"column_types":{"nope":"Text"}}`,
			updateErr: fmt.Errorf("%w: %q", core.ErrUnknownColumn, "nope"),
			wantError: `Column not found: "nope"`,
			wantCode:  "DATA002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.updateErr = tt.updateErr
			s := newTestServer(t, svc, testConfig(), nil)

			req := httptest.NewRequest(http.MethodPost, "/api/update_column_types", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","active_uploads":0,"upload_slots":2}`, rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	s := newTestServer(t, newFakeService(), cfg, nil)

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			assert.Equal(t, "RATE001", decodeError(t, rec).Code)
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.RemoteAddr = "203.0.113.8:4000"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	svc := newFakeService()
	m.TrackActiveUploads(func() float64 { return float64(svc.Limiter().Status().Active) })
	s := newTestServer(t, svc, testConfig(), m)

	body, ctype := multipartBody(t, "file", "a.csv", "id\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/", body)
	req.Header.Set("Content-Type", ctype)
	s.Router().ServeHTTP(httptest.NewRecorder(), req)

	s.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data", nil))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `dataview_uploads_total{outcome="ok"} 1`)
	assert.Contains(t, out, "dataview_pages_served_total 1")
	assert.Contains(t, out, `route="/api/data"`)
	assert.Contains(t, out, "dataview_uploads_in_progress 0")
}

// deadlineRecorder is a ResponseRecorder that records connection deadlines
// the way http.ResponseController sets them.
type deadlineRecorder struct {
	*httptest.ResponseRecorder
	read, write time.Time
}

func (d *deadlineRecorder) SetReadDeadline(t time.Time) error  { d.read = t; return nil }
func (d *deadlineRecorder) SetWriteDeadline(t time.Time) error { d.write = t; return nil }

func TestHandleUpload_DeadlineFollowsUploadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.Timeout = 10 * time.Minute
	s := newTestServer(t, newFakeService(), cfg, nil)

	body, ctype := multipartBody(t, "file", "people.csv", "id,name\n1,ann\n")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/", body)
	req.Header.Set("Content-Type", ctype)
	rec := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}

	before := time.Now()
	s.handleUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.WithinRange(t, rec.read, before.Add(cfg.Upload.Timeout), time.Now().Add(cfg.Upload.Timeout))
	assert.Equal(t, rec.read, rec.write)
}

func TestHandleUpload_OutlivesServerReadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.Timeout = time.Minute
	svc := newFakeService()
	s := newTestServer(t, svc, cfg, nil)

	ts := httptest.NewUnstartedServer(s.Router())
	ts.Config.ReadTimeout = 50 * time.Millisecond
	ts.Start()
	defer ts.Close()

	full, ctype := multipartBody(t, "file", "slow.csv", "id,name\n1,ann\n2,bob\n")
	data := full.Bytes()

	// The body arrives in pieces spread well past the server's read timeout.
	pr, pw := io.Pipe()
	go func() {
		half := len(data) / 2
		pw.Write(data[:half])
		time.Sleep(150 * time.Millisecond)
		pw.Write(data[half:])
		pw.Close()
	}()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/upload/", pr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", ctype)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, "id,name\n1,ann\n2,bob\n", svc.ingestBody)
}
