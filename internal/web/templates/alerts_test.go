package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestErrorAlert_EscapesContent(t *testing.T) {
	var buf bytes.Buffer
	err := ErrorAlert("Some rows could not be imported", "Fix the rows", "ROW001",
		[]string{`row 3 references unknown asset "<script>"`}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Errorf("output contains unescaped markup: %s", out)
	}
	for _, want := range []string{"Some rows could not be imported", "(ROW001)", "Fix the rows", "&lt;script&gt;", `class="alert-details"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestErrorAlert_OmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Request timed out", "", "", nil).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, unwanted := range []string{"alert-action", "alert-code", "<ul"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %q: %s", unwanted, out)
		}
	}
}

func TestImportSummary(t *testing.T) {
	var buf bytes.Buffer
	err := ImportSummary(ImportSummaryData{
		FileName:          "bank & card.csv",
		Encoding:          "UTF-8",
		Summary:           "Imported 2 transactions (net $950.00)",
		Imported:          2,
		CreatedCategories: []string{"Salary", "Food"},
	}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"bank &amp; card.csv", "Imported 2 transactions", "<dd>2</dd>", "<dd>0</dd>", "<li>Salary</li>", "<li>Food</li>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestImportSummary_OmitsEmptyStats(t *testing.T) {
	var buf bytes.Buffer
	if err := ImportSummary(ImportSummaryData{Summary: "Imported 1 transaction", Imported: 1}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, unwanted := range []string{"<dt>File</dt>", "<dt>Encoding</dt>", "created-categories"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %q: %s", unwanted, out)
		}
	}
	if !strings.Contains(out, "<dt>Imported</dt><dd>1</dd>") {
		t.Errorf("output missing imported count: %s", out)
	}
}
