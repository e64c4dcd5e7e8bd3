package core

import (
	"bufio"
	"io"
	"strings"
)

// Export writes records as CSV: the schema header, then one line per record
// in input order. Text fields are escaped so the output always re-imports.
func Export(w io.Writer, records []TransactionRecord) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(Columns, ",") + "\n"); err != nil {
		return err
	}

	for _, rec := range records {
		fields := []string{
			rec.Date.Format(DateLayout),
			EscapeValue(rec.Name),
			rec.Amount.String(),
			EscapeValue(rec.CategoryName()),
			EscapeValue(rec.AssetName()),
			EscapeValue(rec.Note),
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ExportString is Export into a string.
func ExportString(records []TransactionRecord) string {
	var b strings.Builder
	_ = Export(&b, records) // strings.Builder never fails
	return b.String()
}
