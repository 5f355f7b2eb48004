package store

import "fmt"

// NotFoundError reports that a record id no longer exists in the table at
// write-back time, typically because a concurrent reconciliation removed it.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %s not found in table", e.ID)
}

// MalformedRecordError reports a row that could not be interpreted as a task
// record where one was required (bad timestamp, wrong shape after padding).
// The pure components never raise this; they pass malformed rows through.
type MalformedRecordError struct {
	RowIndex int
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: %s", e.RowIndex, e.Reason)
}

// StoreUnavailableError wraps a failed call against the backing store
// (network, auth, rate limit). The worker loop treats it as "skip this cycle".
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
