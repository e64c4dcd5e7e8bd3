package core

// preview.go runs the import pipeline without writing anything, so a user
// can see what an import would do before committing to it. On top of what
// Import reports, the preview flags rows repeated inside the file itself,
// which Import would store twice.

import (
	"context"
	"io"
	"sort"
	"time"
)

// Sample limits
const (
	maxNewRowSamples    = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// PreviewSummary contains the row counts of a preview.
type PreviewSummary struct {
	TotalRows       int `json:"totalRows"`
	NewRows         int `json:"newRows"`
	DuplicateRows   int `json:"duplicateRows"`
	ErrorRows       int `json:"errorRows"`
	DuplicateInFile int `json:"duplicateInFile"`
}

// RowPreview is a row that would be imported.
type RowPreview struct {
	Row      int    `json:"row"`
	Date     string `json:"date"`
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Category string `json:"category"`
	Asset    string `json:"asset"`
	Note     string `json:"note,omitempty"`
}

// ErrorPreview is a row that would be rejected.
type ErrorPreview struct {
	Row     int    `json:"row"`
	Reason  string `json:"reason"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// DuplicatePreview lists rows of the file that repeat each other.
type DuplicatePreview struct {
	Rows   []int  `json:"rows"`
	Date   string `json:"date"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// PreviewResult is the complete result of a preview.
type PreviewResult struct {
	FileName         string             `json:"fileName"`
	Encoding         string             `json:"encoding"`
	Summary          PreviewSummary     `json:"summary"`
	NewCategories    []string           `json:"newCategories"`
	Totals           map[string]string  `json:"totals"`
	NewRowSamples    []RowPreview       `json:"newRowSamples"`
	ErrorSamples     []ErrorPreview     `json:"errorSamples"`
	DuplicateSamples []DuplicatePreview `json:"duplicateSamples"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// discardWriter accepts every write and keeps nothing.
type discardWriter struct{}

func (discardWriter) InsertCategory(context.Context, Category) error          { return nil }
func (discardWriter) InsertOperation(context.Context, TransactionRecord) error { return nil }

// Preview checks data the way Import would and reports the outcome without
// writing to the store. File-level problems are returned as errors, exactly
// as Import returns them.
func (s *Service) Preview(ctx context.Context, fileName string, data []byte) (*PreviewResult, error) {
	start := time.Now()

	f, err := s.parse(data)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result, err := NewImporter(discardWriter{}, s.opts.Location).
		ImportRows(ctx, f.rows, f.cols, snap.operations, snap.categories, snap.assets)
	if err != nil {
		return nil, err
	}

	p := &PreviewResult{
		FileName: fileName,
		Encoding: f.encoding,
		Summary: PreviewSummary{
			TotalRows:     result.TotalRows,
			NewRows:       len(result.Accepted),
			DuplicateRows: result.Duplicates,
			ErrorRows:     len(result.RowErrors),
		},
		NewCategories:    make([]string, len(result.CreatedCategories)),
		Totals:           make(map[string]string),
		NewRowSamples:    make([]RowPreview, 0),
		ErrorSamples:     make([]ErrorPreview, 0),
		DuplicateSamples: make([]DuplicatePreview, 0),
	}

	for i, c := range result.CreatedCategories {
		p.NewCategories[i] = c.Name
	}
	for cur, amount := range result.Totals() {
		p.Totals[string(cur)] = FormatAmount(amount, cur)
	}

	for _, rec := range result.Accepted {
		if len(p.NewRowSamples) == maxNewRowSamples {
			break
		}
		p.NewRowSamples = append(p.NewRowSamples, s.rowPreview(rec))
	}

	for _, re := range result.RowErrors {
		if len(p.ErrorSamples) == maxErrorSamples {
			break
		}
		p.ErrorSamples = append(p.ErrorSamples, ErrorPreview{
			Row:     re.Row,
			Reason:  re.Reason,
			Value:   re.Value,
			Message: re.Error(),
		})
	}

	for _, group := range s.inFileDuplicates(result.Accepted) {
		p.Summary.DuplicateInFile += len(group) - 1
		if len(p.DuplicateSamples) < maxDuplicateSamples {
			p.DuplicateSamples = append(p.DuplicateSamples, s.duplicatePreview(group))
		}
	}

	p.ProcessingTimeMs = time.Since(start).Milliseconds()
	return p, nil
}

// PreviewReader reads r fully, up to the size limit, and previews it.
func (s *Service) PreviewReader(ctx context.Context, fileName string, r io.Reader) (*PreviewResult, error) {
	data, err := s.readAll(fileName, r)
	if err != nil {
		return nil, err
	}
	return s.Preview(ctx, fileName, data)
}

// PreviewFile reads path and previews it.
func (s *Service) PreviewFile(ctx context.Context, path string) (*PreviewResult, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, err
	}
	return s.Preview(ctx, path, data)
}

func (s *Service) rowPreview(rec TransactionRecord) RowPreview {
	return RowPreview{
		Row:      rec.SourceRow,
		Date:     rec.Date.In(s.opts.Location).Format(DateLayout),
		Name:     rec.Name,
		Amount:   rec.Amount.String(),
		Currency: string(rec.Currency),
		Category: rec.CategoryName(),
		Asset:    rec.AssetName(),
		Note:     rec.Note,
	}
}

func (s *Service) duplicatePreview(group []TransactionRecord) DuplicatePreview {
	rows := make([]int, len(group))
	for i, rec := range group {
		rows[i] = rec.SourceRow
	}
	first := group[0]
	return DuplicatePreview{
		Rows:   rows,
		Date:   first.Date.In(s.opts.Location).Format(DateLayout),
		Name:   first.Name,
		Amount: first.Amount.String(),
	}
}

// inFileDuplicates groups records that are duplicates of each other under
// the same rules the Reconciler applies against stored records. Groups come
// back in the order their first row appears.
func (s *Service) inFileDuplicates(records []TransactionRecord) [][]TransactionRecord {
	r := NewReconciler(nil, s.opts.Location)

	byKey := make(map[dupKey][]TransactionRecord)
	for _, rec := range records {
		k := r.key(rec)
		byKey[k] = append(byKey[k], rec)
	}

	var groups [][]TransactionRecord
	for _, candidates := range byKey {
		used := make([]bool, len(candidates))
		for i := range candidates {
			if used[i] {
				continue
			}
			group := []TransactionRecord{candidates[i]}
			for j := i + 1; j < len(candidates); j++ {
				if !used[j] && amountsMatch(candidates[i].Amount, candidates[j].Amount) {
					used[j] = true
					group = append(group, candidates[j])
				}
			}
			if len(group) > 1 {
				groups = append(groups, group)
			}
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i][0].SourceRow < groups[j][0].SourceRow })
	return groups
}
