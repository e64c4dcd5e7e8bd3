package postgres

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertAuditQuery = `INSERT INTO import_audit (
	id, file_name, encoding, outcome, severity,
	total_rows, imported, duplicates, row_errors, created_categories,
	error, ip_address, user_agent, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, now()))`

func (s *Store) InsertAuditEntry(ctx context.Context, e core.AuditEntry) error {
	_, err := s.db.Exec(ctx, insertAuditQuery,
		toPgUUID(e.ID), e.FileName, e.Encoding, string(e.Outcome), string(e.Severity),
		e.TotalRows, e.Imported, e.Duplicates, e.RowErrors, e.CreatedCategories,
		toPgText(e.Error), parseIPAddress(e.IPAddress), toPgText(e.UserAgent),
		e.DurationMS, pgtype.Timestamptz{Time: e.CreatedAt, Valid: !e.CreatedAt.IsZero()},
	)
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", e.ID, err)
	}
	return nil
}

const listAuditQuery = `SELECT id, file_name, encoding, outcome, severity,
	total_rows, imported, duplicates, row_errors, created_categories,
	error, ip_address, user_agent, duration_ms, created_at
	FROM import_audit
	WHERE ($1 = '' OR outcome = $1)
	  AND ($2::timestamptz IS NULL OR created_at >= $2)
	ORDER BY created_at DESC
	LIMIT $3`

// ListAuditEntries returns matching entries, newest first.
func (s *Store) ListAuditEntries(ctx context.Context, opts core.AuditLogOptions) ([]core.AuditEntry, error) {
	since := pgtype.Timestamptz{Time: opts.Since, Valid: !opts.Since.IsZero()}
	limit := opts.Limit
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	rows, err := s.db.Query(ctx, listAuditQuery, string(opts.Outcome), since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM import_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAuditRow(rows pgx.Rows) (core.AuditEntry, error) {
	var (
		id                pgtype.UUID
		fileName          string
		encoding          string
		outcome           string
		severity          string
		totalRows         int32
		imported          int32
		duplicates        int32
		rowErrors         int32
		createdCategories int32
		errText           pgtype.Text
		ipAddress         *netip.Addr
		userAgent         pgtype.Text
		durationMS        int64
		createdAt         pgtype.Timestamptz
	)

	err := rows.Scan(
		&id, &fileName, &encoding, &outcome, &severity,
		&totalRows, &imported, &duplicates, &rowErrors, &createdCategories,
		&errText, &ipAddress, &userAgent, &durationMS, &createdAt,
	)
	if err != nil {
		return core.AuditEntry{}, err
	}

	e := core.AuditEntry{
		ID:                uuid.UUID(id.Bytes),
		FileName:          fileName,
		Encoding:          encoding,
		Outcome:           core.AuditOutcome(outcome),
		Severity:          core.AuditSeverity(severity),
		TotalRows:         int(totalRows),
		Imported:          int(imported),
		Duplicates:        int(duplicates),
		RowErrors:         int(rowErrors),
		CreatedCategories: int(createdCategories),
		DurationMS:        durationMS,
		CreatedAt:         createdAt.Time,
	}
	if errText.Valid {
		e.Error = errText.String
	}
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	if userAgent.Valid {
		e.UserAgent = userAgent.String
	}

	return e, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// parseIPAddress strips a port if present. Unparseable input is stored as
// NULL.
func parseIPAddress(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
