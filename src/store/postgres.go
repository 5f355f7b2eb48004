package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// NotifyChannel is the Postgres NOTIFY channel fired after every write, so
// pollers can wake immediately instead of waiting out the poll interval.
const NotifyChannel = "rows_updated"

// PostgresStore keeps the table in a Postgres relation of (position, cells)
// pairs, one tuple per row. It offers no transactional guarantees beyond a
// single call, mirroring the remote spreadsheet API it stands in for.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore wraps db. table defaults to "sheet_rows" when empty.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = "sheet_rows"
	}
	return &PostgresStore{db: db, table: table}
}

// EnsureSchema creates the backing relation and seeds the header row if the
// table is empty.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (position INTEGER PRIMARY KEY, cells TEXT[] NOT NULL)`, p.table))
	if err != nil {
		return &StoreUnavailableError{Op: "ensure schema", Err: err}
	}
	var n int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.table)).Scan(&n); err != nil {
		return &StoreUnavailableError{Op: "ensure schema", Err: err}
	}
	if n == 0 {
		return p.WriteRange(ctx, RowRange{Start: 1}, [][]string{Header})
	}
	return nil
}

func (p *PostgresStore) ReadRange(ctx context.Context, rr RowRange) ([][]string, error) {
	query := fmt.Sprintf(`SELECT position, cells FROM %s WHERE position >= $1`, p.table)
	args := []any{rr.Start}
	if rr.End > 0 {
		query += ` AND position <= $2`
		args = append(args, rr.End)
	}
	query += ` ORDER BY position`

	dbRows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "read range", Err: err}
	}
	defer dbRows.Close()

	var out [][]string
	for dbRows.Next() {
		var pos int
		var cells pq.StringArray
		if err := dbRows.Scan(&pos, &cells); err != nil {
			return nil, &StoreUnavailableError{Op: "read range", Err: err}
		}
		// Dense output: a gap in positions shows up as a blank row, the way
		// a spreadsheet read would return an intentionally empty row.
		for rr.Start+len(out) < pos {
			out = append(out, nil)
		}
		out = append(out, []string(cells))
	}
	if err := dbRows.Err(); err != nil {
		return nil, &StoreUnavailableError{Op: "read range", Err: err}
	}
	return out, nil
}

func (p *PostgresStore) WriteRange(ctx context.Context, rr RowRange, values [][]string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreUnavailableError{Op: "write range", Err: err}
	}
	defer tx.Rollback()

	for i, row := range values {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (position, cells) VALUES ($1, $2)
			 ON CONFLICT (position) DO UPDATE SET cells = EXCLUDED.cells`, p.table),
			rr.Start+i, pq.Array(row))
		if err != nil {
			return &StoreUnavailableError{Op: "write range", Err: err}
		}
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, '')`, NotifyChannel); err != nil {
		return &StoreUnavailableError{Op: "write range", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreUnavailableError{Op: "write range", Err: err}
	}
	return nil
}

func (p *PostgresStore) AppendRow(ctx context.Context, values []string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (position, cells)
		 SELECT COALESCE(MAX(position), 0) + 1, $1 FROM %s`, p.table, p.table),
		pq.Array(values))
	if err != nil {
		return &StoreUnavailableError{Op: "append row", Err: err}
	}
	_, err = p.db.ExecContext(ctx, `SELECT pg_notify($1, '')`, NotifyChannel)
	if err != nil {
		return &StoreUnavailableError{Op: "append row", Err: err}
	}
	return nil
}

func (p *PostgresStore) ClearRange(ctx context.Context, rr RowRange) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE position >= $1`, p.table)
	args := []any{rr.Start}
	if rr.End > 0 {
		query += ` AND position <= $2`
		args = append(args, rr.End)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return &StoreUnavailableError{Op: "clear range", Err: err}
	}
	return nil
}

func (p *PostgresStore) BatchUpdate(ctx context.Context, updates []RangeUpdate) error {
	for _, u := range updates {
		if err := p.WriteRange(ctx, u.Range, u.Values); err != nil {
			return err
		}
	}
	return nil
}
