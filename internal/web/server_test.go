package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/config"
	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/JonMunkholm/ledgercsv/internal/store/memstore"
)

const validCSV = "Date,Name,Amount,Category,Asset,Note\n" +
	"2024-01-05,Salary,1000.00,Income,Bank,January\n" +
	"2024-01-06,Groceries,-50,Food,Bank,\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{Timezone: "UTC"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *memstore.Store) {
	t.Helper()
	store := memstore.New(core.Asset{Name: "Bank", Currency: "USD"})
	service := core.NewService(store, core.ServiceOptions{MaxFileSize: 1024, MaxWaitTime: time.Second, Audit: store})
	return NewServer(service, cfg), store
}

func multipartRequest(t *testing.T, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeJSON[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not set")
	}
}

func TestImport_Success(t *testing.T) {
	s, store := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "bank.csv", validCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	resp := decodeJSON[ImportResponse](t, rec)
	if resp.Imported != 2 {
		t.Errorf("imported = %d, want 2", resp.Imported)
	}
	if resp.Encoding != "UTF-8" {
		t.Errorf("encoding = %q, want UTF-8", resp.Encoding)
	}
	if resp.FileName != "bank.csv" {
		t.Errorf("file_name = %q, want bank.csv", resp.FileName)
	}
	if got := strings.Join(resp.CreatedCategories, ","); got != "Income,Food" {
		t.Errorf("created_categories = %q, want Income,Food", got)
	}
	if resp.Totals["USD"] != "950.00" {
		t.Errorf("totals[USD] = %q, want 950.00", resp.Totals["USD"])
	}

	ops, _ := store.ListOperations(t.Context())
	if len(ops) != 2 {
		t.Errorf("stored operations = %d, want 2", len(ops))
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantStatus  int
		wantCode    string
		wantDetail  string
		wantPartial bool
	}{
		{
			name:       "header mismatch",
			content:    "Date,Title,Amount,Category,Asset,Note\n",
			wantStatus: http.StatusBadRequest,
			wantCode:   "HDR002",
			wantDetail: "header mismatch",
		},
		{
			name:       "header column count",
			content:    "Date,Name,Amount\n",
			wantStatus: http.StatusBadRequest,
			wantCode:   "HDR001",
			wantDetail: "header has 3 columns, expected 6",
		},
		{
			name:       "empty file",
			content:    "",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
		{
			name:       "file too large",
			content:    "Date,Name,Amount,Category,Asset,Note\n" + strings.Repeat("x", 2048),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name: "invalid rows",
			content: "Date,Name,Amount,Category,Asset,Note\n" +
				"2024-01-05,Salary,1000,Income,Bank,\n" +
				"2024-13-01,Rent,-500,Housing,Bank,\n" +
				"2024-01-07,Coffee,-3,Food,Wallet,\n",
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    "ROW001",
			wantDetail:  `row 3 has invalid date (use YYYY-MM-DD) "2024-13-01"`,
			wantPartial: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig())

			rec := serve(s, multipartRequest(t, "bad.csv", tt.content))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			resp := decodeJSON[ErrorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantDetail != "" && !strings.Contains(strings.Join(resp.Details, "\n"), tt.wantDetail) {
				t.Errorf("details = %q, want to contain %q", resp.Details, tt.wantDetail)
			}
			if tt.wantPartial {
				if resp.Result == nil || resp.Result.Imported != 1 {
					t.Errorf("result = %+v, want 1 imported row reported", resp.Result)
				}
			} else if resp.Result != nil {
				t.Errorf("result = %+v, want none", resp.Result)
			}
		})
	}
}

func TestImport_DuplicatesOnSecondRun(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	if rec := serve(s, multipartRequest(t, "bank.csv", validCSV)); rec.Code != http.StatusOK {
		t.Fatalf("first import status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := serve(s, multipartRequest(t, "bank.csv", validCSV))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second import status = %d, want %d", rec.Code, http.StatusConflict)
	}
	resp := decodeJSON[ErrorResponse](t, rec)
	if resp.Code != "DUP001" {
		t.Errorf("code = %q, want DUP001", resp.Code)
	}
	if resp.Result == nil || resp.Result.Duplicates != 2 || resp.Result.Imported != 0 {
		t.Errorf("result = %+v, want 2 duplicates and 0 imported", resp.Result)
	}
}

func TestImport_MissingFile(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("name=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if resp := decodeJSON[ErrorResponse](t, rec); resp.Code != "FILE004" {
		t.Errorf("code = %q, want FILE004", resp.Code)
	}
}

func TestImport_HTMX(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := multipartRequest(t, "bank.csv", validCSV)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "Imported 2 transactions") {
		t.Errorf("body missing summary: %s", rec.Body.String())
	}

	req = multipartRequest(t, "bad.csv", "Date,Name\n")
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "HDR001") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	if rec := serve(s, multipartRequest(t, "bank.csv", validCSV)); rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-Record-Count") != "2" {
		t.Errorf("X-Record-Count = %q, want 2", rec.Header().Get("X-Record-Count"))
	}

	want := "Date,Name,Amount,Category,Asset,Note\n" +
		"2024-01-05,Salary,1000,Income,Bank,January\n" +
		"2024-01-06,Groceries,-50,Food,Bank,\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body =\n%s\nwant\n%s", got, want)
	}
}

func TestListAssetsAndCategories(t *testing.T) {
	s, store := newTestServer(t, testConfig())
	if _, err := store.AddAsset("Amex", "usd"); err != nil {
		t.Fatalf("AddAsset() error = %v", err)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/assets", nil))
	assets := decodeJSON[[]core.Asset](t, rec)
	if len(assets) != 2 || assets[0].Name != "Amex" || assets[1].Name != "Bank" {
		t.Errorf("assets = %+v, want Amex then Bank", assets)
	}
	if assets[0].Currency != "USD" {
		t.Errorf("currency = %q, want USD", assets[0].Currency)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if categories := decodeJSON[[]core.Category](t, rec); len(categories) != 0 {
		t.Errorf("categories = %+v, want none", categories)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/assets", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want %d", rec.Code, http.StatusOK)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimit_Imports(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ImportsPerMinute: 1}
	s, _ := newTestServer(t, cfg)

	if rec := serve(s, multipartRequest(t, "bank.csv", validCSV)); rec.Code != http.StatusOK {
		t.Fatalf("first import status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	rec := serve(s, multipartRequest(t, "bank.csv", validCSV))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second import status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if body := decodeJSON[ErrorResponse](t, rec); body.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", body.Code)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/assets", nil)); rec.Code != http.StatusOK {
		t.Errorf("assets status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestImportHistory(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := multipartRequest(t, "bank.csv", validCSV)
	req.Header.Set("User-Agent", "curl/8.5.0")
	serve(s, req)
	serve(s, multipartRequest(t, "bad.csv", "Date,Name\n2024-01-05,x\n"))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	entries := decodeJSON[[]core.AuditEntry](t, rec)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].FileName != "bad.csv" || entries[0].Outcome != core.OutcomeRejected {
		t.Errorf("newest entry = %+v, want rejected bad.csv", entries[0])
	}
	ok := entries[1]
	if ok.Outcome != core.OutcomeImported || ok.Imported != 2 || ok.CreatedCategories != 2 {
		t.Errorf("first import entry = %+v", ok)
	}
	if ok.UserAgent != "curl/8.5.0" || ok.IPAddress == "" {
		t.Errorf("client info = %q / %q", ok.IPAddress, ok.UserAgent)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/imports?outcome=imported&since=2000-01-01", nil))
	if entries := decodeJSON[[]core.AuditEntry](t, rec); len(entries) != 1 {
		t.Errorf("filtered entries = %d, want 1", len(entries))
	}
}

func TestImportHistory_InvalidQuery(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	for _, query := range []string{"outcome=maybe", "since=yesterday", "limit=0", "limit=ten"} {
		t.Run(query, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/imports?"+query, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if resp := decodeJSON[ErrorResponse](t, rec); resp.Code != "REQ001" {
				t.Errorf("code = %q, want REQ001", resp.Code)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	s, store := newTestServer(t, testConfig())

	req := multipartRequest(t, "bank.csv", validCSV+"2024-01-07,Oops,ten,Food,Bank,\n")
	req.URL.Path = "/api/import/preview"
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	p := decodeJSON[core.PreviewResult](t, rec)
	if p.Summary.NewRows != 2 || p.Summary.ErrorRows != 1 {
		t.Errorf("summary = %+v", p.Summary)
	}
	if len(p.ErrorSamples) != 1 || p.ErrorSamples[0].Row != 4 {
		t.Errorf("error samples = %+v", p.ErrorSamples)
	}
	if ops, _ := store.ListOperations(t.Context()); len(ops) != 0 {
		t.Errorf("preview stored %d operations", len(ops))
	}

	bad := multipartRequest(t, "bad.csv", "Date,Name\n")
	bad.URL.Path = "/api/import/preview"
	if rec := serve(s, bad); rec.Code != http.StatusBadRequest {
		t.Errorf("bad header status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
