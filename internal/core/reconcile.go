package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountTolerance is the largest amount difference still treated as equal.
var AmountTolerance = decimal.New(1, -3)

// Reconciler detects candidates that repeat an existing record.
//
// Two records are duplicates when they fall on the same calendar day and
// have equal normalized names, equal normalized category and asset names
// (empty when absent) and amounts closer than AmountTolerance.
type Reconciler struct {
	loc      *time.Location
	existing map[dupKey][]decimal.Decimal
}

// dupKey is the exact-match part of the duplicate key. Amounts are compared
// separately because the tolerance makes them unsuitable as map keys.
type dupKey struct {
	day      string
	name     string
	category string
	asset    string
}

// NewReconciler indexes existing records. Days are compared in loc; a nil
// loc means UTC.
func NewReconciler(existing []TransactionRecord, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	r := &Reconciler{
		loc:      loc,
		existing: make(map[dupKey][]decimal.Decimal, len(existing)),
	}
	for _, rec := range existing {
		k := r.key(rec)
		r.existing[k] = append(r.existing[k], rec.Amount)
	}
	return r
}

// IsDuplicate reports whether candidate matches any indexed record.
func (r *Reconciler) IsDuplicate(candidate TransactionRecord) bool {
	for _, amount := range r.existing[r.key(candidate)] {
		if amountsMatch(amount, candidate.Amount) {
			return true
		}
	}
	return false
}

func (r *Reconciler) key(rec TransactionRecord) dupKey {
	return dupKey{
		day:      rec.Date.In(r.loc).Format(DateLayout),
		name:     Normalize(rec.Name),
		category: Normalize(rec.CategoryName()),
		asset:    Normalize(rec.AssetName()),
	}
}

// IsDuplicate compares two records directly using the duplicate key.
func IsDuplicate(a, b TransactionRecord, loc *time.Location) bool {
	return NewReconciler([]TransactionRecord{a}, loc).IsDuplicate(b)
}

func amountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(AmountTolerance)
}
