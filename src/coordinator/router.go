package coordinator

import (
	"strings"

	"coordworker/src/model"
)

// Predicate filters task records.
type Predicate func(model.TaskRecord) bool

// OwnedBy matches records whose owner field contains identity. Containment
// rather than equality, because owner cells hold free text like
// "Server Worker (auto)" next to plain names.
func OwnedBy(identity string) Predicate {
	return func(r model.TaskRecord) bool {
		return identity != "" && strings.Contains(r.Owner, identity)
	}
}

// HasStatus matches records with exactly the given status string.
func HasStatus(status string) Predicate {
	return func(r model.TaskRecord) bool {
		return r.Status == status
	}
}

// NextTask returns the first record in table order matching both predicates,
// or ok=false when nothing is available. Selection is read-only: claiming
// the record is a separate write the caller performs afterwards. First-match
// order means a saturated worker can starve later rows; that is the accepted
// behavior, not a queueing bug.
func NextTask(records []model.TaskRecord, identity, ready Predicate) (model.TaskRecord, bool) {
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if identity(r) && ready(r) {
			return r, true
		}
	}
	return model.TaskRecord{}, false
}
