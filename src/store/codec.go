package store

import (
	"coordworker/src/model"
)

// Column positions within a row. The Notes column trails the layout the older
// scripts wrote, so rows without it are still decoded cleanly by padding.
const (
	ColID = iota
	ColOwner
	ColCategory
	ColPriority
	ColStatus
	ColDescription
	ColExpectedOutput
	ColDependencies
	ColCreatedAt
	ColCompletedAt
	ColNotes
	NumColumns
)

// Header is the canonical header row of the task table.
var Header = []string{
	"ID", "Owner", "Category", "Priority", "Status",
	"Description", "Expected Output", "Dependencies",
	"Created", "Completed", "Notes",
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// DecodeRecord turns a raw row into a TaskRecord. Decoding is permissive:
// short rows are padded with empty cells, extra cells are ignored. rowIndex
// is the row's 1-based position in the table at read time.
func DecodeRecord(row []string, rowIndex int) model.TaskRecord {
	return model.TaskRecord{
		ID:             cell(row, ColID),
		Owner:          cell(row, ColOwner),
		Category:       cell(row, ColCategory),
		Priority:       cell(row, ColPriority),
		Status:         cell(row, ColStatus),
		Description:    cell(row, ColDescription),
		ExpectedOutput: cell(row, ColExpectedOutput),
		Dependencies:   cell(row, ColDependencies),
		CreatedAt:      cell(row, ColCreatedAt),
		CompletedAt:    cell(row, ColCompletedAt),
		Notes:          cell(row, ColNotes),
		RowIndex:       rowIndex,
	}
}

// EncodeRecord renders a TaskRecord back into its row form.
func EncodeRecord(r model.TaskRecord) []string {
	row := make([]string, NumColumns)
	row[ColID] = r.ID
	row[ColOwner] = r.Owner
	row[ColCategory] = r.Category
	row[ColPriority] = r.Priority
	row[ColStatus] = r.Status
	row[ColDescription] = r.Description
	row[ColExpectedOutput] = r.ExpectedOutput
	row[ColDependencies] = r.Dependencies
	row[ColCreatedAt] = r.CreatedAt
	row[ColCompletedAt] = r.CompletedAt
	row[ColNotes] = r.Notes
	return row
}

// IsBlankRow reports whether every cell of the row is empty.
func IsBlankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// IsHeaderRow reports whether the row looks like the canonical header.
// Humans occasionally paste a second header into the data area; those rows
// are passed through untouched rather than treated as records.
func IsHeaderRow(row []string) bool {
	return len(row) > 0 && row[ColID] == Header[ColID]
}
