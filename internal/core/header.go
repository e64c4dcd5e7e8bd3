package core

import (
	"sort"
	"strings"
)

// Column names of the transaction CSV schema.
const (
	ColDate     = "Date"
	ColName     = "Name"
	ColAmount   = "Amount"
	ColCategory = "Category"
	ColAsset    = "Asset"
	ColNote     = "Note"
)

// Columns is the canonical column order used for export.
var Columns = []string{ColDate, ColName, ColAmount, ColCategory, ColAsset, ColNote}

// ColumnIndex maps a schema column name to its position in the file.
type ColumnIndex map[string]int

// DefaultColumnIndex is the index of a file written in canonical order.
func DefaultColumnIndex() ColumnIndex {
	idx := make(ColumnIndex, len(Columns))
	for i, name := range Columns {
		idx[name] = i
	}
	return idx
}

// Get returns the trimmed cell of row for the named column.
func (idx ColumnIndex) Get(row []string, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// ValidateHeader checks a parsed header row against the schema. Column order
// does not matter: the returned index records where each column was found.
func ValidateHeader(headers []string) (ColumnIndex, error) {
	if len(headers) != len(Columns) {
		return nil, &HeaderColumnCountError{
			Expected: len(Columns),
			Found:    len(headers),
			Headers:  headers,
		}
	}

	idx := make(ColumnIndex, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}

	for _, name := range Columns {
		if _, ok := idx[name]; !ok {
			return nil, &HeaderMismatchError{
				Expected: append([]string(nil), Columns...),
				Found:    sortedTrimmed(headers),
			}
		}
	}

	return idx, nil
}

func sortedTrimmed(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.TrimSpace(h)
	}
	sort.Strings(out)
	return out
}
