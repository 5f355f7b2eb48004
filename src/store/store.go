package store

import (
	"context"

	"coordworker/src/model"
)

// RowRange addresses whole rows of the backing table. Start is 1-based and
// inclusive; End == 0 means "through the last row". Row 1 is the header.
type RowRange struct {
	Start int
	End   int
}

// All covers the entire table including the header row.
var All = RowRange{Start: 1}

// Data covers every row below the header.
var Data = RowRange{Start: 2}

// RangeUpdate pairs a row range with the cell values to write there.
type RangeUpdate struct {
	Range  RowRange
	Values [][]string
}

// Store is the tabular store client. Implementations wrap whatever actually
// holds the table (remote spreadsheet, Postgres, memory); callers only ever
// see ordered rows of strings. BatchUpdate is atomic from the caller's point
// of view only, the backing store guarantees nothing across calls.
type Store interface {
	ReadRange(ctx context.Context, rr RowRange) ([][]string, error)
	WriteRange(ctx context.Context, rr RowRange, values [][]string) error
	AppendRow(ctx context.Context, values []string) error
	ClearRange(ctx context.Context, rr RowRange) error
	BatchUpdate(ctx context.Context, updates []RangeUpdate) error
}

// ReadRecords reads every data row and decodes it into a TaskRecord with its
// current 1-based row index. Fully blank rows are skipped; everything else is
// decoded permissively (see DecodeRecord).
func ReadRecords(ctx context.Context, s Store) ([]model.TaskRecord, error) {
	rows, err := s.ReadRange(ctx, Data)
	if err != nil {
		return nil, err
	}
	records := make([]model.TaskRecord, 0, len(rows))
	for i, row := range rows {
		if IsBlankRow(row) || IsHeaderRow(row) {
			continue
		}
		records = append(records, DecodeRecord(row, Data.Start+i))
	}
	return records, nil
}
