package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"coordworker/src/logging"
	"coordworker/src/model"
	"coordworker/src/store"
)

// Removal records one dropped duplicate: the 1-based position the row held
// within the input slice and the id it collided on.
type Removal struct {
	Position int
	ID       string
}

// Reconcile restores the id-uniqueness invariant over raw data rows. The
// first occurrence of each id is kept; later occurrences are dropped and
// reported. Blank rows, stray header rows and rows with no id pass through
// unchanged in place, so the surviving rows keep their original relative
// order. Running Reconcile on its own output removes nothing.
func Reconcile(rows [][]string) ([][]string, []Removal) {
	canonical := make([][]string, 0, len(rows))
	var removed []Removal
	seen := make(map[string]bool)

	for i, row := range rows {
		if store.IsBlankRow(row) || store.IsHeaderRow(row) {
			canonical = append(canonical, row)
			continue
		}
		id := row[store.ColID]
		if id == "" {
			// No id to collide on; rows missing an id are opaque data, not
			// duplicates of each other.
			canonical = append(canonical, row)
			continue
		}
		if seen[id] {
			removed = append(removed, Removal{Position: i + 1, ID: id})
			continue
		}
		seen[id] = true
		canonical = append(canonical, row)
	}
	return canonical, removed
}

// ReconcileStore reads the whole table, reconciles it, and, when duplicates
// were found, rewrites the data region as clear-then-write. Per-row deletion
// is deliberately not used: every delete shifts all later row indices, and
// writing back with stale indices corrupts unrelated rows. Clearing the
// region and rewriting the canonical rows in one pass sidesteps the index
// arithmetic entirely.
//
// Returns the canonical records with their post-rewrite row indices plus the
// audit list of removals.
func ReconcileStore(ctx context.Context, s store.Store) ([]model.TaskRecord, []Removal, error) {
	rows, err := s.ReadRange(ctx, store.Data)
	if err != nil {
		return nil, nil, err
	}

	canonical, removed := Reconcile(rows)
	if len(removed) > 0 {
		for _, r := range removed {
			logging.Log(fmt.Sprintf("Removing duplicate of %s at data row %d", r.ID, r.Position), slog.LevelWarn)
		}
		if err := s.ClearRange(ctx, store.Data); err != nil {
			return nil, nil, err
		}
		if err := s.WriteRange(ctx, store.Data, canonical); err != nil {
			return nil, nil, err
		}
	}

	records := make([]model.TaskRecord, 0, len(canonical))
	for i, row := range canonical {
		if store.IsBlankRow(row) || store.IsHeaderRow(row) {
			continue
		}
		records = append(records, store.DecodeRecord(row, store.Data.Start+i))
	}
	return records, removed, nil
}

// AllocateAndAppend reads the table fresh, allocates the next id for prefix,
// and appends r with that id (and a default status/created stamp when unset).
// The read-allocate-append sequence is not atomic; a concurrent allocator can
// produce the same id, which the next reconciliation pass will collapse.
func AllocateAndAppend(ctx context.Context, s store.Store, r model.TaskRecord, prefix string, now string) (string, error) {
	records, err := store.ReadRecords(ctx, s)
	if err != nil {
		return "", err
	}
	r.ID = NextIDForRecords(records, prefix)
	if r.Status == "" {
		r.Status = model.StatusNotStarted
	}
	if r.CreatedAt == "" {
		r.CreatedAt = now
	}
	if err := s.AppendRow(ctx, store.EncodeRecord(r)); err != nil {
		return "", err
	}
	return r.ID, nil
}
