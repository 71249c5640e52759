// Package taxonomy turns source labels into destination term ids.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yourorg/tokko-sync/internal/canon"
	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/tokko"
)

// Table maps a folded label (canon.TermKey) to a known term id, per axis.
type Table map[tokko.Axis]map[string]store.TermID

// LegacyTable holds the term ids of the original property site.
func LegacyTable() Table {
	return Table{
		tokko.AxisCategory: {"sale": 2, "rent": 3},
		tokko.AxisType: {
			"house": 4, "apartment": 5, "condo": 7, "office": 120,
			"terreno": 146, "casa": 137, "departamento": 144,
		},
		tokko.AxisStatus:     {"active": 10, "pending": 12, "draft": 13, "open": 82},
		tokko.AxisRentPeriod: {"monthly": 18, "yearly": 19, "daily": 16, "weekly": 17},
	}
}

// NewTable builds a Table from plain label->id maps, folding labels.
func NewTable(raw map[string]map[string]int64) Table {
	t := Table{}
	for axis, labels := range raw {
		m := make(map[string]store.TermID, len(labels))
		for label, id := range labels {
			if key := canon.TermKey(label); key != "" {
				m[key] = store.TermID(id)
			}
		}
		t[tokko.Axis(axis)] = m
	}
	return t
}

func (t Table) lookup(axis tokko.Axis, key string) (store.TermID, bool) {
	id, ok := t[axis][key]
	return id, ok
}

// Resolver resolves labels through the static table first and falls back to
// get-or-create in the store. Created ids are remembered for its lifetime.
type Resolver struct {
	store store.Store
	table Table
	log   *slog.Logger

	mu   sync.Mutex
	seen map[string]store.TermID
}

func NewResolver(s store.Store, table Table, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, table: table, log: logger, seen: map[string]store.TermID{}}
}

// Resolve returns the distinct term ids for labels on one axis, in label order.
// Any failure fails the whole axis.
func (r *Resolver) Resolve(ctx context.Context, axis tokko.Axis, labels []tokko.TermLabel) ([]store.TermID, error) {
	ids := make([]store.TermID, 0, len(labels))
	dup := map[store.TermID]bool{}
	for _, l := range labels {
		id, ok, err := r.resolveOne(ctx, axis, l)
		if err != nil {
			return nil, err
		}
		if !ok || dup[id] {
			continue
		}
		dup[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Resolver) resolveOne(ctx context.Context, axis tokko.Axis, l tokko.TermLabel) (store.TermID, bool, error) {
	key := canon.TermKey(l.Label)
	if key == "" {
		return 0, false, nil
	}
	if id, ok := r.table.lookup(axis, key); ok {
		return id, true, nil
	}

	memo := string(axis) + "|" + key
	r.mu.Lock()
	id, ok := r.seen[memo]
	r.mu.Unlock()
	if ok {
		return id, true, nil
	}

	id, err := r.store.GetOrCreateTerm(ctx, string(axis), l.Name())
	if err != nil {
		return 0, false, fmt.Errorf("term %q on %s: %w", l.Name(), axis, err)
	}
	r.mu.Lock()
	r.seen[memo] = id
	r.mu.Unlock()
	r.log.Debug("taxonomy: resolved term", "axis", axis, "label", l.Label, "term_id", id)
	return id, true, nil
}
