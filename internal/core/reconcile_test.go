package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func record(day string, name, amount, category, asset string) TransactionRecord {
	d, err := time.Parse(DateLayout, day)
	if err != nil {
		panic(err)
	}
	rec := TransactionRecord{Name: name, Date: d, Amount: decimal.RequireFromString(amount)}
	if category != "" {
		rec.Category = &Category{Name: category}
	}
	if asset != "" {
		rec.Asset = &Asset{Name: asset, Currency: "USD"}
	}
	return rec
}

func TestIsDuplicate(t *testing.T) {
	base := record("2024-01-05", "Salary", "10.000", "Income", "Bank")

	later := base
	later.Date = base.Date.Add(15 * time.Hour)

	tests := []struct {
		name      string
		candidate TransactionRecord
		want      bool
	}{
		{"identical", base, true},
		{"same day later time", later, true},
		{"amount within tolerance", record("2024-01-05", "Salary", "10.0009", "Income", "Bank"), true},
		{"amount at tolerance", record("2024-01-05", "Salary", "10.001", "Income", "Bank"), false},
		{"amount beyond tolerance", record("2024-01-05", "Salary", "10.002", "Income", "Bank"), false},
		{"opposite sign", record("2024-01-05", "Salary", "-10", "Income", "Bank"), false},
		{"different day", record("2024-01-06", "Salary", "10", "Income", "Bank"), false},
		{"name differs in case and spacing", record("2024-01-05", "  SALARY ", "10", "Income", "Bank"), true},
		{"different name", record("2024-01-05", "Bonus", "10", "Income", "Bank"), false},
		{"category with emoji", record("2024-01-05", "Salary", "10", "💵 income", "Bank"), true},
		{"different category", record("2024-01-05", "Salary", "10", "Gifts", "Bank"), false},
		{"missing category", record("2024-01-05", "Salary", "10", "", "Bank"), false},
		{"asset with emoji", record("2024-01-05", "Salary", "10", "Income", "🏦 BANK"), true},
		{"asset with accents", record("2024-01-05", "Salary", "10", "Income", "Bänk"), false},
		{"different asset", record("2024-01-05", "Salary", "10", "Income", "Card"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(base, tt.candidate, nil); got != tt.want {
				t.Errorf("IsDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate_ComparesDaysInLocation(t *testing.T) {
	cet := time.FixedZone("CET", 60*60)
	a := record("2024-01-05", "Rent", "-500", "Housing", "Bank")
	a.Date = time.Date(2024, 1, 5, 23, 30, 0, 0, time.UTC)
	b := a
	b.Date = time.Date(2024, 1, 6, 0, 10, 0, 0, time.UTC)

	if IsDuplicate(a, b, time.UTC) {
		t.Error("records on different UTC days should not be duplicates in UTC")
	}
	if !IsDuplicate(a, b, cet) {
		t.Error("records on the same CET day should be duplicates in CET")
	}
}

func TestReconciler_MultipleAmountsPerKey(t *testing.T) {
	existing := []TransactionRecord{
		record("2024-02-01", "Coffee", "-3.50", "Food", "Card"),
		record("2024-02-01", "Coffee", "-4.20", "Food", "Card"),
	}
	r := NewReconciler(existing, nil)

	if !r.IsDuplicate(record("2024-02-01", "coffee", "-4.2", "food", "card")) {
		t.Error("second amount under the same key should match")
	}
	if r.IsDuplicate(record("2024-02-01", "Coffee", "-3.85", "Food", "Card")) {
		t.Error("amount between the two existing ones should not match")
	}
}

func TestReconciler_Empty(t *testing.T) {
	if NewReconciler(nil, nil).IsDuplicate(record("2024-01-01", "x", "1", "", "")) {
		t.Error("empty reconciler should report no duplicates")
	}
}
