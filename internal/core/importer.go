package core

// importer.go turns validated CSV rows into persisted operations.
//
// Each data row goes through the same steps: column count, date, name,
// amount, category (created on demand), asset (must exist), duplicate check,
// insert. A row that fails a step is recorded as a RowError and the importer
// moves on to the next row, so one pass reports every problem in the file.
//
// Inserts are committed as they happen. A later failing row does not undo
// categories or operations written for earlier rows.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted date format, yyyy-MM-dd.
const DateLayout = "2006-01-02"

// firstDataRow is the row number of the first logical line after the header.
const firstDataRow = 2

// ImportResult accumulates the outcome of one import.
type ImportResult struct {
	ImportID          string              `json:"import_id,omitempty"`
	FileName          string              `json:"file_name,omitempty"`
	Encoding          string              `json:"encoding,omitempty"`
	TotalRows         int                 `json:"total_rows"`
	Accepted          []TransactionRecord `json:"accepted"`
	Duplicates        int                 `json:"duplicates"`
	RowErrors         []RowError          `json:"-"`
	CreatedCategories []Category          `json:"created_categories"`
}

// Err returns the outcome of the import: *RowErrors when any row was
// rejected, otherwise *DuplicateCountError when rows were skipped as
// duplicates, otherwise nil.
func (r *ImportResult) Err() error {
	if len(r.RowErrors) > 0 {
		return &RowErrors{Errors: r.RowErrors}
	}
	if r.Duplicates > 0 {
		return &DuplicateCountError{Count: r.Duplicates, Imported: len(r.Accepted)}
	}
	return nil
}

// Totals returns the net amount of accepted records per currency.
func (r *ImportResult) Totals() map[Currency]decimal.Decimal {
	totals := make(map[Currency]decimal.Decimal)
	for _, rec := range r.Accepted {
		totals[rec.Currency] = totals[rec.Currency].Add(rec.Amount)
	}
	return totals
}

// Summary is a one-line, user-facing description of the import.
func (r *ImportResult) Summary() string {
	totals := r.Totals()
	codes := make([]string, 0, len(totals))
	for c := range totals {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = FormatAmount(totals[Currency(c)], Currency(c))
	}

	summary := fmt.Sprintf("Imported %d transactions", len(r.Accepted))
	if len(parts) > 0 {
		summary += " (net " + strings.Join(parts, ", ") + ")"
	}
	return summary
}

// Importer converts CSV rows into operations and writes them to a store.
// It assumes exclusive access to the store for the duration of a call.
type Importer struct {
	writer Writer
	loc    *time.Location
}

// NewImporter creates an importer writing to w. Dates are interpreted in
// loc; a nil loc means UTC.
func NewImporter(w Writer, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{writer: w, loc: loc}
}

// ImportRows processes data rows (header excluded) read through cols.
//
// Duplicates are checked against existing only; two identical rows in the
// same file are both imported. The returned error is non-nil only when the
// store fails; row problems and duplicates are reported by result.Err().
func (im *Importer) ImportRows(
	ctx context.Context,
	rows [][]string,
	cols ColumnIndex,
	existing []TransactionRecord,
	categories []Category,
	assets []Asset,
) (*ImportResult, error) {
	result := &ImportResult{TotalRows: len(rows)}
	reconciler := NewReconciler(existing, im.loc)
	cats := newCategoryLookup(categories)
	assetIdx := newAssetLookup(assets)

	for i, row := range rows {
		rowNum := i + firstDataRow

		if len(row) != len(Columns) {
			result.RowErrors = append(result.RowErrors, RowError{
				Row:    rowNum,
				Reason: fmt.Sprintf("has %d columns, expected %d", len(row), len(Columns)),
				Value:  strings.Join(row, ","),
			})
			continue
		}

		rawDate := cols.Get(row, ColDate)
		day, err := time.ParseInLocation(DateLayout, rawDate, im.loc)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{
				Row: rowNum, Reason: "has invalid date (use YYYY-MM-DD)", Value: rawDate,
			})
			continue
		}

		name := cols.Get(row, ColName)
		if name == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: "has empty name"})
			continue
		}

		rawAmount := cols.Get(row, ColAmount)
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{
				Row: rowNum, Reason: "has invalid number", Value: rawAmount,
			})
			continue
		}

		categoryName := cols.Get(row, ColCategory)
		if categoryName == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: "has empty category"})
			continue
		}
		category, created := cats.find(categoryName)
		if created {
			if err := im.writer.InsertCategory(ctx, *category); err != nil {
				return result, fmt.Errorf("insert category %q: %w", category.Name, err)
			}
			result.CreatedCategories = append(result.CreatedCategories, *category)
		}

		assetName := cols.Get(row, ColAsset)
		if assetName == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: "has empty asset"})
			continue
		}
		asset, ok := assetIdx[Normalize(assetName)]
		if !ok {
			result.RowErrors = append(result.RowErrors, RowError{
				Row:    rowNum,
				Reason: "references unknown asset",
				Value:  assetName,
				Err:    &AssetNotFoundError{Name: assetName, Available: assetNames(assets)},
			})
			continue
		}

		candidate := TransactionRecord{
			ID:        uuid.New(),
			Name:      name,
			Currency:  asset.Currency,
			Date:      day,
			Amount:    amount,
			Note:      row[cols[ColNote]],
			Frequency: FrequencySingle,
			Category:  category,
			Asset:     asset,
			SourceRow: rowNum,
		}

		if reconciler.IsDuplicate(candidate) {
			result.Duplicates++
			continue
		}

		if err := im.writer.InsertOperation(ctx, candidate); err != nil {
			return result, fmt.Errorf("insert operation at row %d: %w", rowNum, err)
		}
		result.Accepted = append(result.Accepted, candidate)
	}

	return result, nil
}

// categoryLookup resolves category names, creating missing ones so later
// rows in the same batch reuse them.
type categoryLookup map[string]*Category

func newCategoryLookup(categories []Category) categoryLookup {
	l := make(categoryLookup, len(categories))
	for i := range categories {
		c := categories[i]
		key := Normalize(c.Name)
		if _, ok := l[key]; !ok {
			l[key] = &c
		}
	}
	return l
}

// find returns the category matching name, or a new one named name. created
// reports whether the category has to be persisted.
func (l categoryLookup) find(name string) (c *Category, created bool) {
	key := Normalize(name)
	if existing, ok := l[key]; ok {
		return existing, false
	}
	c = &Category{ID: uuid.New(), Name: name}
	l[key] = c
	return c, true
}

func newAssetLookup(assets []Asset) map[string]*Asset {
	l := make(map[string]*Asset, len(assets))
	for i := range assets {
		a := assets[i]
		key := Normalize(a.Name)
		if _, ok := l[key]; !ok {
			l[key] = &a
		}
	}
	return l
}

func assetNames(assets []Asset) []string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return names
}
