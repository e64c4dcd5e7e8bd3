package core

// audit.go records one entry per import attempt: which file, from where,
// how many rows went in and how it ended. Entries are written after the
// import finishes; a failed audit write is logged and never fails the import.

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/ledgercsv/internal/logging"
	"github.com/google/uuid"
)

const (
	// DefaultHistoryLimit is the number of entries returned when no limit is set.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps the entries returned by one query.
	MaxHistoryLimit = 500

	// maxAuditErrorLen bounds the stored error text. Row error aggregates can
	// list thousands of rows.
	maxAuditErrorLen = 2000

	auditWriteTimeout = 5 * time.Second
)

// AuditOutcome represents how an import attempt ended.
type AuditOutcome string

const (
	OutcomeImported   AuditOutcome = "imported"
	OutcomeDuplicates AuditOutcome = "duplicates"
	OutcomeRowErrors  AuditOutcome = "row_errors"
	OutcomeRejected   AuditOutcome = "rejected"
	OutcomeFailed     AuditOutcome = "failed"
)

// Valid reports whether o is a known outcome.
func (o AuditOutcome) Valid() bool {
	switch o {
	case OutcomeImported, OutcomeDuplicates, OutcomeRowErrors, OutcomeRejected, OutcomeFailed:
		return true
	}
	return false
}

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// determineSeverity returns the severity for an outcome. Store failures
// leave a partially imported file behind and rank highest.
func determineSeverity(o AuditOutcome) AuditSeverity {
	switch o {
	case OutcomeFailed:
		return SeverityHigh
	case OutcomeRowErrors, OutcomeRejected:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AuditEntry represents a single import attempt.
type AuditEntry struct {
	ID                uuid.UUID     `json:"id"`
	FileName          string        `json:"fileName"`
	Encoding          string        `json:"encoding,omitempty"`
	Outcome           AuditOutcome  `json:"outcome"`
	Severity          AuditSeverity `json:"severity"`
	TotalRows         int           `json:"totalRows"`
	Imported          int           `json:"imported"`
	Duplicates        int           `json:"duplicates"`
	RowErrors         int           `json:"rowErrors"`
	CreatedCategories int           `json:"createdCategories"`
	Error             string        `json:"error,omitempty"`
	IPAddress         string        `json:"ipAddress,omitempty"`
	UserAgent         string        `json:"userAgent,omitempty"`
	DurationMS        int64         `json:"durationMs"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// AuditLogOptions filters an audit log query. Zero values match everything.
type AuditLogOptions struct {
	Outcome AuditOutcome
	Since   time.Time
	Limit   int
}

func (o AuditLogOptions) withDefaults() AuditLogOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultHistoryLimit
	}
	if o.Limit > MaxHistoryLimit {
		o.Limit = MaxHistoryLimit
	}
	return o
}

// AuditLog persists audit entries.
type AuditLog interface {
	InsertAuditEntry(ctx context.Context, e AuditEntry) error
	// ListAuditEntries returns matching entries, newest first.
	ListAuditEntries(ctx context.Context, opts AuditLogOptions) ([]AuditEntry, error)
	// PurgeAuditEntries deletes entries created before cutoff.
	PurgeAuditEntries(ctx context.Context, cutoff time.Time) (int64, error)
}

// newAuditEntry builds the entry for a finished import attempt. result may
// be nil when the file was rejected before any row was read.
func newAuditEntry(ctx context.Context, id uuid.UUID, fileName string, result *ImportResult, err error, started time.Time) AuditEntry {
	client := ClientInfoFromContext(ctx)
	e := AuditEntry{
		ID:         id,
		FileName:   fileName,
		Outcome:    auditOutcome(err),
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		DurationMS: time.Since(started).Milliseconds(),
		CreatedAt:  started.UTC(),
	}
	e.Severity = determineSeverity(e.Outcome)

	if result != nil {
		e.Encoding = result.Encoding
		e.TotalRows = result.TotalRows
		e.Imported = len(result.Accepted)
		e.Duplicates = result.Duplicates
		e.RowErrors = len(result.RowErrors)
		e.CreatedCategories = len(result.CreatedCategories)
	}
	if err != nil {
		e.Error = truncateError(err.Error())
	}
	return e
}

// truncateError cuts msg to maxAuditErrorLen bytes on a rune boundary.
func truncateError(msg string) string {
	if len(msg) <= maxAuditErrorLen {
		return msg
	}
	n := maxAuditErrorLen
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n] + "..."
}

func auditOutcome(err error) AuditOutcome {
	var (
		rowErrs *RowErrors
		dupErr  *DuplicateCountError
	)
	switch {
	case err == nil:
		return OutcomeImported
	case errors.As(err, &rowErrs):
		return OutcomeRowErrors
	case errors.As(err, &dupErr):
		return OutcomeDuplicates
	case IsFileError(err):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// recordAudit writes e if an audit log is configured. The write outlives a
// canceled or timed out import context.
func (s *Service) recordAudit(ctx context.Context, e AuditEntry) {
	if s.opts.Audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.opts.Audit.InsertAuditEntry(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit entry not recorded", "outcome", e.Outcome, "error", err)
	}
}

// ImportHistory returns recorded import attempts, newest first. It returns
// an empty list when no audit log is configured.
func (s *Service) ImportHistory(ctx context.Context, opts AuditLogOptions) ([]AuditEntry, error) {
	if s.opts.Audit == nil {
		return []AuditEntry{}, nil
	}
	return s.opts.Audit.ListAuditEntries(ctx, opts.withDefaults())
}
