// Package postgres implements core.Store on PostgreSQL using pgx.
//
// Every insert runs as its own statement and is committed immediately; the
// importer relies on that to keep categories and operations created before a
// failing row.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is a core.Store backed by PostgreSQL.
type Store struct {
	db DBTX
}

// New creates a store on db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertAsset validates the currency and stores a new asset.
func (s *Store) InsertAsset(ctx context.Context, name, currency string) (core.Asset, error) {
	cur, err := core.ParseCurrency(currency)
	if err != nil {
		return core.Asset{}, err
	}
	a := core.Asset{ID: uuid.New(), Name: name, Currency: cur}

	_, err = s.db.Exec(ctx,
		`INSERT INTO assets (id, name, currency) VALUES ($1, $2, $3)`,
		toPgUUID(a.ID), a.Name, string(a.Currency),
	)
	if err != nil {
		return core.Asset{}, fmt.Errorf("insert asset %q: %w", name, err)
	}
	return a, nil
}

func (s *Store) ListAssets(ctx context.Context) ([]core.Asset, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, currency FROM assets ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]core.Asset, 0)
	for rows.Next() {
		var (
			id       pgtype.UUID
			name     string
			currency string
		)
		if err := rows.Scan(&id, &name, &currency); err != nil {
			return nil, err
		}
		assets = append(assets, core.Asset{ID: uuid.UUID(id.Bytes), Name: name, Currency: core.Currency(currency)})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM categories ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		var (
			id   pgtype.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		categories = append(categories, core.Category{ID: uuid.UUID(id.Bytes), Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO categories (id, name) VALUES ($1, $2)`,
		toPgUUID(c.ID), c.Name,
	)
	if err != nil {
		return fmt.Errorf("insert category %q: %w", c.Name, err)
	}
	return nil
}

const listOperationsQuery = `SELECT o.id, o.name, o.currency, o.occurred_at, o.amount, o.note, o.frequency,
	c.id, c.name, a.id, a.name, a.currency
	FROM operations o
	LEFT JOIN categories c ON c.id = o.category_id
	LEFT JOIN assets a ON a.id = o.asset_id
	ORDER BY o.occurred_at, o.created_at`

func (s *Store) ListOperations(ctx context.Context) ([]core.TransactionRecord, error) {
	rows, err := s.db.Query(ctx, listOperationsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]core.TransactionRecord, 0)
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanOperation(rows pgx.Rows) (core.TransactionRecord, error) {
	var (
		id            pgtype.UUID
		name          string
		currency      string
		occurredAt    pgtype.Timestamptz
		amount        pgtype.Numeric
		note          string
		frequency     string
		categoryID    pgtype.UUID
		categoryName  pgtype.Text
		assetID       pgtype.UUID
		assetName     pgtype.Text
		assetCurrency pgtype.Text
	)

	err := rows.Scan(
		&id, &name, &currency, &occurredAt, &amount, &note, &frequency,
		&categoryID, &categoryName, &assetID, &assetName, &assetCurrency,
	)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	dec, err := fromPgNumeric(amount)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("operation %s: %w", uuid.UUID(id.Bytes), err)
	}

	rec := core.TransactionRecord{
		ID:        uuid.UUID(id.Bytes),
		Name:      name,
		Currency:  core.Currency(currency),
		Date:      occurredAt.Time,
		Amount:    dec,
		Note:      note,
		Frequency: core.Frequency(frequency),
	}

	if categoryID.Valid {
		rec.Category = &core.Category{ID: uuid.UUID(categoryID.Bytes), Name: categoryName.String}
	}
	if assetID.Valid {
		rec.Asset = &core.Asset{
			ID:       uuid.UUID(assetID.Bytes),
			Name:     assetName.String,
			Currency: core.Currency(assetCurrency.String),
		}
	}

	return rec, nil
}

func (s *Store) InsertOperation(ctx context.Context, r core.TransactionRecord) error {
	amount, err := toPgNumeric(r.Amount)
	if err != nil {
		return err
	}

	var categoryID, assetID pgtype.UUID
	if r.Category != nil {
		categoryID = toPgUUID(r.Category.ID)
	}
	if r.Asset != nil {
		assetID = toPgUUID(r.Asset.ID)
	}

	frequency := r.Frequency
	if frequency == "" {
		frequency = core.FrequencySingle
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO operations (id, name, currency, occurred_at, amount, note, frequency, category_id, asset_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		toPgUUID(r.ID), r.Name, string(r.Currency),
		pgtype.Timestamptz{Time: r.Date, Valid: true},
		amount, r.Note, string(frequency), categoryID, assetID,
	)
	if err != nil {
		return fmt.Errorf("insert operation %q: %w", r.Name, err)
	}
	return nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// toPgNumeric converts through the decimal string form, which pgtype parses
// without loss of precision.
func toPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return n, nil
}

func fromPgNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Decimal{}, errors.New("amount is not a finite number")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
