package coordinator

import (
	"coordworker/src/model"
)

// ChangeKind labels a change event.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeField   ChangeKind = "field_changed"
	ChangeRemoved ChangeKind = "removed"
)

// ChangeEvent is one observed difference between two snapshots. Field,
// OldValue and NewValue are set only for ChangeField; Record carries the
// current record for ChangeCreated and ChangeField.
type ChangeEvent struct {
	Kind     ChangeKind
	ID       string
	Field    string
	OldValue string
	NewValue string
	Record   model.TaskRecord
}

// Snapshot is an id-keyed, order-preserving capture of the table. Keying by
// id rather than row position makes diffs immune to the row shifts that
// reconciliation causes.
type Snapshot struct {
	ids  []string
	byID map[string]model.TaskRecord
}

// SnapshotOf captures records in their given order. Records without an id
// are ignored; on an id collision the first record wins, matching the
// reconciler's keep-first rule.
func SnapshotOf(records []model.TaskRecord) Snapshot {
	s := Snapshot{byID: make(map[string]model.TaskRecord, len(records))}
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.ids = append(s.ids, r.ID)
		s.byID[r.ID] = r
	}
	return s
}

// Len reports the number of captured records.
func (s Snapshot) Len() int { return len(s.ids) }

// Get looks up a record by id.
func (s Snapshot) Get(id string) (model.TaskRecord, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// diffFields drives per-field comparison, in column order. RowIndex is
// deliberately absent: positions move under reconciliation and are not data.
var diffFields = []struct {
	name string
	get  func(model.TaskRecord) string
}{
	{"owner", func(r model.TaskRecord) string { return r.Owner }},
	{"category", func(r model.TaskRecord) string { return r.Category }},
	{"priority", func(r model.TaskRecord) string { return r.Priority }},
	{"status", func(r model.TaskRecord) string { return r.Status }},
	{"description", func(r model.TaskRecord) string { return r.Description }},
	{"expected_output", func(r model.TaskRecord) string { return r.ExpectedOutput }},
	{"dependencies", func(r model.TaskRecord) string { return r.Dependencies }},
	{"created_at", func(r model.TaskRecord) string { return r.CreatedAt }},
	{"completed_at", func(r model.TaskRecord) string { return r.CompletedAt }},
	{"notes", func(r model.TaskRecord) string { return r.Notes }},
}

// Diff lists the changes between two snapshots: one ChangeCreated per id new
// in current, one ChangeField per differing field of ids present in both, one
// ChangeRemoved per id gone from current. Values compare as raw strings, no
// trimming or case folding, so a whitespace edit is a change. Neither input
// is modified. Output order follows current's order, then previous's order
// for removals, so identical inputs always produce identical output.
func Diff(previous, current Snapshot) []ChangeEvent {
	var events []ChangeEvent

	for _, id := range current.ids {
		cur := current.byID[id]
		prev, existed := previous.byID[id]
		if !existed {
			events = append(events, ChangeEvent{Kind: ChangeCreated, ID: id, Record: cur})
			continue
		}
		for _, f := range diffFields {
			oldV, newV := f.get(prev), f.get(cur)
			if oldV != newV {
				events = append(events, ChangeEvent{
					Kind:     ChangeField,
					ID:       id,
					Field:    f.name,
					OldValue: oldV,
					NewValue: newV,
					Record:   cur,
				})
			}
		}
	}

	for _, id := range previous.ids {
		if _, still := current.byID[id]; !still {
			events = append(events, ChangeEvent{Kind: ChangeRemoved, ID: id})
		}
	}
	return events
}
