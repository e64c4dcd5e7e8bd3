package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/logging"
	"github.com/google/uuid"
)

// DefaultMaxFileSize is the default import size limit (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// ServiceOptions configures a Service. Zero values select defaults.
type ServiceOptions struct {
	MaxFileSize   int64          // Largest accepted file in bytes
	MaxConcurrent int            // Parallel imports; 1 unless the store tolerates more
	MaxWaitTime   time.Duration  // How long an import waits for a slot
	Timeout       time.Duration  // Upper bound for one import or export, 0 for none
	Location      *time.Location // Zone CSV dates are interpreted in (default UTC)
	Resolver      *Resolver      // Encoding candidates (default DefaultResolver)
	Audit         AuditLog       // Where import attempts are recorded, nil to disable
}

// Service runs the import and export pipelines against a store.
type Service struct {
	store    Store
	opts     ServiceOptions
	limiter  *ImportLimiter
	resolver *Resolver
}

// NewService creates a new Service instance.
func NewService(store Store, opts ServiceOptions) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = DefaultResolver()
	}

	return &Service{
		store:    store,
		opts:     opts,
		limiter:  NewImportLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		resolver: resolver,
	}
}

// Import runs the full pipeline over the raw bytes of a CSV file.
//
// File-level problems (size, encoding, empty file, header) are returned
// before anything is written, with a nil result. Otherwise the result is
// always returned, together with result.Err() or a store failure; rows
// imported before a failure stay committed.
//
// Every attempt that gets an import slot, and every rejected file, is
// recorded in the audit log when one is configured.
func (s *Service) Import(ctx context.Context, fileName string, data []byte) (*ImportResult, error) {
	importID := uuid.New()
	started := time.Now()
	ctx = logging.WithImportID(ctx, importID.String())

	result, err := s.runImport(ctx, importID, fileName, data)
	if !errors.Is(err, ErrImportBusy) {
		s.recordAudit(ctx, newAuditEntry(ctx, importID, fileName, result, err, started))
	}
	return result, err
}

func (s *Service) runImport(ctx context.Context, importID uuid.UUID, fileName string, data []byte) (*ImportResult, error) {
	logger := logging.WithFields(ctx, "file", fileName)

	f, err := s.parse(data)
	if err != nil {
		logger.Warn("import rejected", "error", err)
		return nil, err
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("import started",
		"encoding", f.encoding,
		"rows", len(f.rows),
		"existing_operations", len(snap.operations),
	)
	start := time.Now()

	result, err := NewImporter(s.store, s.opts.Location).ImportRows(ctx, f.rows, f.cols, snap.operations, snap.categories, snap.assets)
	if result != nil {
		result.ImportID = importID.String()
		result.FileName = fileName
		result.Encoding = f.encoding
	}
	if err != nil {
		logger.Error("import aborted", "error", err, "imported", len(result.Accepted))
		return result, err
	}

	logger.Info("import finished",
		"imported", len(result.Accepted),
		"duplicates", result.Duplicates,
		"row_errors", len(result.RowErrors),
		"created_categories", len(result.CreatedCategories),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, result.Err()
}

// parsedFile is a decoded file with a validated header.
type parsedFile struct {
	encoding string
	cols     ColumnIndex
	rows     [][]string // Data rows, header excluded
}

// parse runs the file-level checks: size, encoding, emptiness and header.
func (s *Service) parse(data []byte) (*parsedFile, error) {
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrFileTooLarge, len(data), s.opts.MaxFileSize)
	}

	decoded, err := s.resolver.Decode(data)
	if err != nil {
		return nil, err
	}

	lines := SplitLines(decoded.Text)
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	cols, err := ValidateHeader(ParseLine(lines[0]))
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, ParseLine(line))
	}
	return &parsedFile{encoding: decoded.Encoding, cols: cols, rows: rows}, nil
}

// storeSnapshot is the store state an import is checked against.
type storeSnapshot struct {
	operations []TransactionRecord
	categories []Category
	assets     []Asset
}

func (s *Service) snapshot(ctx context.Context) (*storeSnapshot, error) {
	operations, err := s.store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return &storeSnapshot{operations: operations, categories: categories, assets: assets}, nil
}

// ImportReader reads r fully, up to the size limit, and imports it.
func (s *Service) ImportReader(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	data, err := s.readAll(fileName, r)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, fileName, data)
}

// readAll reads r up to one byte past the size limit, so parse can tell an
// oversized file from one exactly at the limit.
func (s *Service) readAll(name string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// ImportFile opens path, reads it fully and imports it. The file is closed
// before the pipeline runs, whatever the outcome.
func (s *Service) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, path, data)
}

func (s *Service) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return s.readAll(path, f)
}

// Export writes every stored operation to w as CSV and returns the count.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.store.ListOperations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list operations: %w", err)
	}
	for i := range records {
		records[i].Date = records[i].Date.In(s.opts.Location)
	}

	if err := Export(w, records); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}

	logging.FromContext(ctx).Info("export finished", "records", len(records))
	return len(records), nil
}

// ExportFile writes every stored operation to a new file at path.
func (s *Service) ExportFile(ctx context.Context, path string) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return s.Export(ctx, f)
}

// Assets returns the known assets.
func (s *Service) Assets(ctx context.Context) ([]Asset, error) {
	return s.store.ListAssets(ctx)
}

// Categories returns the known categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// MaxFileSize returns the effective import size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// LimiterStatus returns the current import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}
