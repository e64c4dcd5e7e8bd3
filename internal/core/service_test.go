package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testHeader = "Date,Name,Amount,Category,Asset,Note\n"

func newTestService(store *fakeStore) *Service {
	return NewService(store, ServiceOptions{MaxFileSize: 1024, MaxWaitTime: time.Second})
}

func TestService_Import(t *testing.T) {
	store := newFakeStore(Asset{Name: "Bank", Currency: "USD"})
	svc := newTestService(store)

	csv := testHeader +
		"2024-01-05,Salary,1000,Income,Bank,\n" +
		"\n" +
		"2024-01-06,Groceries,-50,Food,Bank,weekly shop\n"

	result, err := svc.Import(context.Background(), "january.csv", []byte(csv))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.FileName != "january.csv" || result.Encoding != "UTF-8" || result.ImportID == "" {
		t.Errorf("result metadata = %q / %q / %q", result.FileName, result.Encoding, result.ImportID)
	}
	if len(result.Accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(result.Accepted))
	}
	if got := result.Summary(); got != "Imported 2 transactions (net $950.00)" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestService_ImportDecodesLegacyEncodings(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantEncoding string
	}{
		{"windows-1252", []byte(testHeader + "2024-01-05,Caf\xe9,-3,Food,Bank,\n"), "windows-1252"},
		{"utf-8 with BOM", []byte("\xef\xbb\xbf" + testHeader + "2024-01-05,Café,-3,Food,Bank,\n"), "UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(Asset{Name: "Bank", Currency: "USD"})
			result, err := newTestService(store).Import(context.Background(), "f.csv", tt.data)
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if result.Encoding != tt.wantEncoding {
				t.Errorf("Encoding = %q, want %q", result.Encoding, tt.wantEncoding)
			}
			if len(result.Accepted) != 1 || result.Accepted[0].Name != "Café" {
				t.Errorf("accepted = %+v, want one record named Café", result.Accepted)
			}
		})
	}
}

func TestService_ImportRejectsFile(t *testing.T) {
	tests := []struct {
		name     string
		resolver *Resolver
		data     []byte
		check    func(error) bool
	}{
		{
			name:  "empty",
			data:  nil,
			check: func(err error) bool { return errors.Is(err, ErrEmptyFile) },
		},
		{
			name:  "blank lines only",
			data:  []byte("\n  \r\n\t\n"),
			check: func(err error) bool { return errors.Is(err, ErrEmptyFile) },
		},
		{
			name:  "too large",
			data:  bytes.Repeat([]byte("a"), 1025),
			check: func(err error) bool { return errors.Is(err, ErrFileTooLarge) },
		},
		{
			name:  "bad header",
			data:  []byte("Date,Name,Amount\n2024-01-05,x,1\n"),
			check: func(err error) bool { var e *HeaderColumnCountError; return errors.As(err, &e) },
		},
		{
			name:     "undecodable",
			resolver: NewResolver(UTF8, ASCII),
			data:     []byte(testHeader + "2024-01-05,Caf\xe9,-3,Food,Bank,\n"),
			check:    func(err error) bool { var e *DecodeError; return errors.As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(Asset{Name: "Bank", Currency: "USD"})
			svc := NewService(store, ServiceOptions{MaxFileSize: 1024, Resolver: tt.resolver})

			result, err := svc.Import(context.Background(), "f.csv", tt.data)
			if !tt.check(err) {
				t.Fatalf("Import() error = %v", err)
			}
			if result != nil {
				t.Errorf("result = %+v, want nil for a rejected file", result)
			}
			if len(store.categories) != 0 || len(store.operations) != 0 {
				t.Error("rejected file should not write anything")
			}
		})
	}
}

func TestService_ImportHeaderOnly(t *testing.T) {
	svc := newTestService(newFakeStore())

	result, err := svc.Import(context.Background(), "f.csv", []byte(testHeader))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.TotalRows != 0 || len(result.Accepted) != 0 {
		t.Errorf("result = %+v, want no rows", result)
	}
}

func TestService_ImportTwiceReportsDuplicates(t *testing.T) {
	store := newFakeStore(Asset{Name: "Bank", Currency: "USD"})
	svc := newTestService(store)
	csv := []byte(testHeader +
		"2024-01-05,Salary,1000,Income,Bank,\n" +
		"2024-01-06,Groceries,-50,Food,Bank,\n")

	if _, err := svc.Import(context.Background(), "f.csv", csv); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}

	result, err := svc.Import(context.Background(), "f.csv", csv)
	var dupErr *DuplicateCountError
	if !errors.As(err, &dupErr) {
		t.Fatalf("second Import() error = %v, want *DuplicateCountError", err)
	}
	if dupErr.Count != 2 || dupErr.Imported != 0 {
		t.Errorf("DuplicateCountError = %+v, want 2 skipped, 0 imported", dupErr)
	}
	if result == nil || result.Duplicates != 2 {
		t.Errorf("result = %+v, want 2 duplicates", result)
	}
	if len(store.operations) != 2 || len(store.categories) != 2 {
		t.Errorf("store has %d operations and %d categories, want 2 and 2", len(store.operations), len(store.categories))
	}
}

func TestService_ImportFile(t *testing.T) {
	store := newFakeStore(Asset{Name: "Bank", Currency: "USD"})
	svc := newTestService(store)

	path := filepath.Join(t.TempDir(), "ops.csv")
	if err := os.WriteFile(path, []byte(testHeader+"2024-01-05,Salary,1000,Income,Bank,\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	result, err := svc.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if result.FileName != path || len(result.Accepted) != 1 {
		t.Errorf("result = %+v", result)
	}

	if _, err := svc.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ImportFile(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestService_ImportReaderEnforcesLimit(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.ImportReader(context.Background(), "big.csv", strings.NewReader(strings.Repeat("x", 4096)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("ImportReader() error = %v, want ErrFileTooLarge", err)
	}
}

func TestService_ExportRoundTrip(t *testing.T) {
	store := newFakeStore(Asset{Name: "Bank", Currency: "USD"})
	svc := newTestService(store)
	csv := testHeader +
		"2024-01-05,\"Lunch, \"\"Joe's\"\"\",-12.50,Food,Bank,\"split, two ways\"\n" +
		"2024-01-06,Salary,1000,Income,Bank,\n"

	if _, err := svc.Import(context.Background(), "f.csv", []byte(csv)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Export() = %d records, want 2", n)
	}
	if !strings.Contains(buf.String(), `"Lunch, ""Joe's"""`) {
		t.Errorf("export lost quoting:\n%s", buf.String())
	}

	// Re-importing the export is a no-op.
	result, err := svc.Import(context.Background(), "export.csv", buf.Bytes())
	var dupErr *DuplicateCountError
	if !errors.As(err, &dupErr) || dupErr.Count != 2 {
		t.Fatalf("re-import error = %v, want 2 duplicates", err)
	}
	if len(result.Accepted) != 0 || len(store.operations) != 2 {
		t.Errorf("re-import accepted %d, store has %d", len(result.Accepted), len(store.operations))
	}
}

func TestService_ExportFile(t *testing.T) {
	store := newFakeStore()
	store.operations = []TransactionRecord{record("2024-01-05", "Salary", "1000", "Income", "Bank")}
	svc := newTestService(store)

	path := filepath.Join(t.TempDir(), "out.csv")
	n, err := svc.ExportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ExportFile() = %d, want 1", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := testHeader + "2024-01-05,Salary,1000,Income,Bank,\n"; string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestService_ImportBusy(t *testing.T) {
	svc := NewService(newFakeStore(), ServiceOptions{MaxWaitTime: 10 * time.Millisecond})
	release, err := svc.limiter.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = svc.Import(context.Background(), "f.csv", []byte(testHeader))
	if !errors.Is(err, ErrImportBusy) {
		t.Errorf("Import() error = %v, want ErrImportBusy", err)
	}
}
