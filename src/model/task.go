package model

// Statuses recognized by convention across the coordination scripts. The
// status column is free text; nothing enforces membership in this set.
const (
	StatusNotStarted = "Not Started"
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusComplete   = "Complete"
	StatusBlocked    = "Blocked"
	StatusSuperseded = "Superseded"
)

// TimeFormat is the cell format for the Created/Completed columns.
const TimeFormat = "2006-01-02 15:04:05"

// TaskRecord is one row of the shared task table. Fields hold the raw cell
// strings; missing cells decode to "". RowIndex is the 1-based position of
// the row in the backing table at the moment it was read. It shifts whenever
// the table is reconciled, so it must never be cached across cycles.
type TaskRecord struct {
	ID             string
	Owner          string
	Category       string
	Priority       string
	Status         string
	Description    string
	ExpectedOutput string
	Dependencies   string
	CreatedAt      string
	CompletedAt    string
	Notes          string
	RowIndex       int
}

// Outcome is what an executor hands back for write-back: the new status, a
// human-readable note trail, and the produced output (Expected Output column).
type Outcome struct {
	Status string
	Notes  string
	Output string
}
