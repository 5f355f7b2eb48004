package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the table in process memory behind a mutex. It backs
// tests and dry runs with the same contract as the real store, including the
// instability of row positions across clear-and-rewrite.
type MemoryStore struct {
	mu   sync.Mutex
	rows [][]string
}

// NewMemoryStore builds a store holding the canonical header plus the given
// data rows.
func NewMemoryStore(dataRows ...[]string) *MemoryStore {
	rows := make([][]string, 0, len(dataRows)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, r := range dataRows {
		rows = append(rows, append([]string(nil), r...))
	}
	return &MemoryStore{rows: rows}
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// span resolves rr against the current table length, returning 0-based
// start/end slice bounds.
func (m *MemoryStore) span(rr RowRange) (int, int) {
	start := rr.Start - 1
	if start < 0 {
		start = 0
	}
	end := len(m.rows)
	if rr.End > 0 && rr.End < end {
		end = rr.End
	}
	if start > end {
		start = end
	}
	return start, end
}

func (m *MemoryStore) ReadRange(ctx context.Context, rr RowRange) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := m.span(rr)
	return copyRows(m.rows[start:end]), nil
}

func (m *MemoryStore) WriteRange(ctx context.Context, rr RowRange, values [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeLocked(rr, values)
	return nil
}

func (m *MemoryStore) writeLocked(rr RowRange, values [][]string) {
	start := rr.Start - 1
	for i, row := range values {
		pos := start + i
		for pos >= len(m.rows) {
			m.rows = append(m.rows, nil)
		}
		m.rows[pos] = append([]string(nil), row...)
	}
}

func (m *MemoryStore) AppendRow(ctx context.Context, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, append([]string(nil), values...))
	return nil
}

func (m *MemoryStore) ClearRange(ctx context.Context, rr RowRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := m.span(rr)
	// Clearing trailing rows shrinks the table; clearing an interior range
	// blanks the cells, matching spreadsheet semantics.
	if end == len(m.rows) {
		m.rows = m.rows[:start]
	} else {
		for i := start; i < end; i++ {
			m.rows[i] = nil
		}
	}
	return nil
}

func (m *MemoryStore) BatchUpdate(ctx context.Context, updates []RangeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		m.writeLocked(u.Range, u.Values)
	}
	return nil
}

// Rows returns a copy of the whole table, header included. Test helper.
func (m *MemoryStore) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.rows)
}
