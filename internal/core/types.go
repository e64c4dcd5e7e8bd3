package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 currency code such as "EUR" or "USD".
type Currency string

// ParseCurrency upper-cases code and checks it against the ISO-4217 table.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || money.GetCurrency(code) == nil {
		return "", fmt.Errorf("unknown currency code %q", code)
	}
	return Currency(code), nil
}

// FormatAmount renders amount with the currency's symbol and fraction digits.
// Unknown currencies fall back to "<amount> <code>".
func FormatAmount(amount decimal.Decimal, c Currency) string {
	cur := money.GetCurrency(string(c))
	if cur == nil {
		return amount.String() + " " + string(c)
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// Frequency is the recurrence tag of an operation.
type Frequency string

const (
	FrequencySingle  Frequency = "single"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is one of the known recurrence tags.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencySingle, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// Category groups operations. Names are stored verbatim and matched normalized.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Asset is an account holding money in a single currency. It is read-only here.
type Asset struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Currency Currency  `json:"currency"`
}

// TransactionRecord is a single ledger operation, either persisted or a
// candidate built from a CSV row.
//
// Category and Asset point at caller-owned values; the engine never mutates them.
type TransactionRecord struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Currency  Currency        `json:"currency"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
	Frequency Frequency       `json:"frequency"`
	Category  *Category       `json:"category,omitempty"`
	Asset     *Asset          `json:"asset,omitempty"`

	// SourceRow is the CSV row a candidate was read from, 0 for stored records.
	SourceRow int `json:"-"`
}

// CategoryName returns the category name or "" when the record has none.
func (r TransactionRecord) CategoryName() string {
	if r.Category == nil {
		return ""
	}
	return r.Category.Name
}

// AssetName returns the asset name or "" when the record has none.
func (r TransactionRecord) AssetName() string {
	if r.Asset == nil {
		return ""
	}
	return r.Asset.Name
}

// Reader is the read side of the persistence layer consumed by the importer.
type Reader interface {
	ListOperations(ctx context.Context) ([]TransactionRecord, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Writer is the write side of the persistence layer. Inserts are expected to
// be committed immediately; the importer never asks for a rollback.
type Writer interface {
	InsertCategory(ctx context.Context, c Category) error
	InsertOperation(ctx context.Context, r TransactionRecord) error
}

// Store combines both sides of the persistence layer.
type Store interface {
	Reader
	Writer
}
