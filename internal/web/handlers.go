package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/JonMunkholm/ledgercsv/internal/logging"
	"github.com/JonMunkholm/ledgercsv/internal/web/templates"
)

// multipartOverhead is the room left for form boundaries and part headers
// on top of the file size limit.
const multipartOverhead = 64 * 1024

// ImportResponse is the JSON body of an import.
type ImportResponse struct {
	ImportID          string            `json:"import_id"`
	FileName          string            `json:"file_name"`
	Encoding          string            `json:"encoding"`
	TotalRows         int               `json:"total_rows"`
	Imported          int               `json:"imported"`
	Duplicates        int               `json:"duplicates"`
	RowErrors         int               `json:"row_errors"`
	CreatedCategories []string          `json:"created_categories"`
	Totals            map[string]string `json:"totals"`
	Summary           string            `json:"summary"`
}

func toImportResponse(result *core.ImportResult) ImportResponse {
	created := make([]string, len(result.CreatedCategories))
	for i, c := range result.CreatedCategories {
		created[i] = c.Name
	}

	totals := make(map[string]string)
	for cur, amount := range result.Totals() {
		totals[string(cur)] = amount.StringFixed(2)
	}

	return ImportResponse{
		ImportID:          result.ImportID,
		FileName:          result.FileName,
		Encoding:          result.Encoding,
		TotalRows:         result.TotalRows,
		Imported:          len(result.Accepted),
		Duplicates:        result.Duplicates,
		RowErrors:         len(result.RowErrors),
		CreatedCategories: created,
		Totals:            totals,
		Summary:           result.Summary(),
	}
}

// handleImport imports the CSV sent as the "file" part of a multipart form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	defer upload.Close()

	logging.FromContext(r.Context()).Info("import requested", "file", upload.name, "size", upload.size)

	result, err := s.service.ImportReader(r.Context(), upload.name, upload.file)
	if err != nil {
		s.respondError(w, r, err, result)
		return
	}

	if isHTMX(r) {
		s.renderImportSummary(w, r, result)
		return
	}
	writeJSON(w, http.StatusOK, toImportResponse(result))
}

// handlePreview reports what importing the uploaded file would do, without
// writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	defer upload.Close()

	preview, err := s.service.PreviewReader(r.Context(), upload.name, upload.file)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// upload is the "file" part of a multipart form.
type upload struct {
	name string
	size int64
	file multipart.File
	form *multipart.Form
}

func (u *upload) Close() {
	u.file.Close()
	if u.form != nil {
		u.form.RemoveAll()
	}
}

// readUpload parses the multipart form, capping the body at the import size
// limit plus room for the form encoding.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, maxBytes.Limit)
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
		return nil, errNoFile
	}
	return &upload{name: header.Filename, size: header.Size, file: file, form: r.MultipartForm}, nil
}

func (s *Server) renderImportSummary(w http.ResponseWriter, r *http.Request, result *core.ImportResult) {
	resp := toImportResponse(result)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	err := templates.ImportSummary(templates.ImportSummaryData{
		FileName:          resp.FileName,
		Encoding:          resp.Encoding,
		Summary:           resp.Summary,
		Imported:          resp.Imported,
		Duplicates:        resp.Duplicates,
		CreatedCategories: resp.CreatedCategories,
	}).Render(r.Context(), w)
	if err != nil {
		logging.FromContext(r.Context()).Error("render import summary", "error", err)
	}
}

// handleExport downloads every stored transaction as transactions.csv.
// The CSV is built in memory first so a store failure can still be
// reported with a proper status.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.service.Export(r.Context(), &buf)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.Header().Set("X-Record-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.service.Assets(r.Context())
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.Categories(r.Context())
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	sort.SliceStable(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	writeJSON(w, http.StatusOK, categories)
}

// handleImportHistory lists recorded import attempts, newest first.
// Optional query parameters: outcome, since (YYYY-MM-DD or RFC 3339), limit.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	opts, err := parseHistoryQuery(r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	entries, err := s.service.ImportHistory(r.Context(), opts)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseHistoryQuery(r *http.Request) (core.AuditLogOptions, error) {
	var opts core.AuditLogOptions
	q := r.URL.Query()

	if v := q.Get("outcome"); v != "" {
		opts.Outcome = core.AuditOutcome(v)
		if !opts.Outcome.Valid() {
			return opts, &queryError{Param: "outcome", Value: v}
		}
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			since, err = time.Parse(core.DateLayout, v)
		}
		if err != nil {
			return opts, &queryError{Param: "since", Value: v}
		}
		opts.Since = since
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return opts, &queryError{Param: "limit", Value: v}
		}
		opts.Limit = limit
	}

	return opts, nil
}

// handleImportStatus reports import slot usage, for checking whether an
// import would have to wait.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}
