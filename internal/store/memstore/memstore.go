// Package memstore is an in-memory core.Store for tests and local tooling.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/google/uuid"
)

// Store keeps assets, categories and operations in insertion order.
type Store struct {
	mu         sync.RWMutex
	assets     []core.Asset
	categories []core.Category
	operations []core.TransactionRecord
	audit      []core.AuditEntry
}

// New creates a store seeded with assets.
func New(assets ...core.Asset) *Store {
	s := &Store{}
	for _, a := range assets {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		s.assets = append(s.assets, a)
	}
	return s
}

// AddAsset validates the currency and appends an asset.
func (s *Store) AddAsset(name, currency string) (core.Asset, error) {
	cur, err := core.ParseCurrency(currency)
	if err != nil {
		return core.Asset{}, err
	}
	a := core.Asset{ID: uuid.New(), Name: name, Currency: cur}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, a)
	return a, nil
}

func (s *Store) ListOperations(_ context.Context) ([]core.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.TransactionRecord(nil), s.operations...), nil
}

func (s *Store) ListAssets(_ context.Context) ([]core.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Asset(nil), s.assets...), nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Category(nil), s.categories...), nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.ID == c.ID {
			return fmt.Errorf("category %s: duplicate key", c.ID)
		}
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) InsertOperation(ctx context.Context, r core.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.operations {
		if existing.ID == r.ID {
			return fmt.Errorf("operation %s: duplicate key", r.ID)
		}
	}
	s.operations = append(s.operations, r)
	return nil
}

func (s *Store) InsertAuditEntry(_ context.Context, e core.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// ListAuditEntries returns matching entries, newest first.
func (s *Store) ListAuditEntries(_ context.Context, opts core.AuditLogOptions) ([]core.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]core.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if opts.Outcome != "" && e.Outcome != opts.Outcome {
			continue
		}
		if !opts.Since.IsZero() && e.CreatedAt.Before(opts.Since) {
			continue
		}
		entries = append(entries, e)
		if opts.Limit > 0 && len(entries) == opts.Limit {
			break
		}
	}
	return entries, nil
}

func (s *Store) PurgeAuditEntries(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.audit[:0]
	for _, e := range s.audit {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	purged := int64(len(s.audit) - len(kept))
	s.audit = kept
	return purged, nil
}
