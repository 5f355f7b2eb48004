package coordinator

import (
	"fmt"
	"strconv"
	"strings"

	"coordworker/src/model"
)

// NextID computes the next free task id for prefix, of the form PREFIX-NNN
// with the numeric suffix zero-padded to three digits. Ids that do not match
// the prefix, or whose suffix is not a number, are skipped rather than
// rejected. With no matching ids at all the sequence starts at PREFIX-001.
//
// This is a pure computation over ids already read from the table; call it on
// a fresh read immediately before appending to keep the allocation race
// window small. Two concurrent allocators can still collide, which is why
// reconciliation exists.
func NextID(ids []string, prefix string) string {
	max := 0
	for _, id := range ids {
		rest, ok := strings.CutPrefix(id, prefix+"-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, max+1)
}

// NextIDForRecords is NextID over the id fields of records.
func NextIDForRecords(records []model.TaskRecord, prefix string) string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return NextID(ids, prefix)
}
