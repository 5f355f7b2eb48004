package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordworker/src/model"
)

func TestDiffCreatedAndFieldChanged(t *testing.T) {
	previous := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001", Status: "Pending"},
	})
	current := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001", Status: "Complete"},
		{ID: "CT-002", Status: "Not Started"},
	})

	events := Diff(previous, current)

	require.Len(t, events, 2)
	assert.Equal(t, ChangeEvent{
		Kind: ChangeField, ID: "CT-001", Field: "status",
		OldValue: "Pending", NewValue: "Complete",
		Record: model.TaskRecord{ID: "CT-001", Status: "Complete"},
	}, events[0])
	assert.Equal(t, ChangeCreated, events[1].Kind)
	assert.Equal(t, "CT-002", events[1].ID)
}

func TestDiffRemoved(t *testing.T) {
	previous := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001"}, {ID: "CT-002"},
	})
	current := SnapshotOf([]model.TaskRecord{
		{ID: "CT-002"},
	})

	events := Diff(previous, current)

	require.Len(t, events, 1)
	assert.Equal(t, ChangeEvent{Kind: ChangeRemoved, ID: "CT-001"}, events[0])
}

func TestDiffOneEventPerChangedField(t *testing.T) {
	previous := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001", Status: "Pending", Notes: "", Owner: "Mac"},
	})
	current := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001", Status: "Blocked", Notes: "boom", Owner: "Mac"},
	})

	events := Diff(previous, current)

	require.Len(t, events, 2)
	fields := []string{events[0].Field, events[1].Field}
	assert.Equal(t, []string{"status", "notes"}, fields)
}

func TestDiffIdenticalSnapshotsYieldNothing(t *testing.T) {
	records := []model.TaskRecord{
		{ID: "CT-001", Status: "Pending", Owner: "Mac"},
		{ID: "CT-002", Status: "Complete", Owner: "Server"},
	}
	assert.Empty(t, Diff(SnapshotOf(records), SnapshotOf(records)))
}

func TestDiffDoesNotNormalize(t *testing.T) {
	previous := SnapshotOf([]model.TaskRecord{{ID: "CT-001", Status: "Pending"}})
	current := SnapshotOf([]model.TaskRecord{{ID: "CT-001", Status: " pending"}})

	events := Diff(previous, current)

	require.Len(t, events, 1)
	assert.Equal(t, "Pending", events[0].OldValue)
	assert.Equal(t, " pending", events[0].NewValue)
}

func TestDiffIgnoresRowIndex(t *testing.T) {
	previous := SnapshotOf([]model.TaskRecord{{ID: "CT-001", Status: "Pending", RowIndex: 2}})
	current := SnapshotOf([]model.TaskRecord{{ID: "CT-001", Status: "Pending", RowIndex: 7}})

	assert.Empty(t, Diff(previous, current), "row shifts are not changes")
}

func TestDiffEmptyPreviousOnFirstRun(t *testing.T) {
	current := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001"}, {ID: "CT-002"},
	})

	events := Diff(Snapshot{}, current)

	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, ChangeCreated, ev.Kind)
	}
}

func TestDiffIsDeterministic(t *testing.T) {
	previous := SnapshotOf([]model.TaskRecord{
		{ID: "CT-001", Status: "Pending"},
		{ID: "CT-003", Status: "Pending"},
		{ID: "CT-004", Status: "Pending"},
	})
	current := SnapshotOf([]model.TaskRecord{
		{ID: "CT-002", Status: "Not Started"},
		{ID: "CT-001", Status: "Complete"},
	})

	first := Diff(previous, current)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Diff(previous, current))
	}
	// current order first, then previous order for removals
	require.Len(t, first, 4)
	assert.Equal(t, "CT-002", first[0].ID)
	assert.Equal(t, "CT-001", first[1].ID)
	assert.Equal(t, ChangeRemoved, first[2].Kind)
	assert.Equal(t, "CT-003", first[2].ID)
	assert.Equal(t, "CT-004", first[3].ID)
}

func TestSnapshotOfSkipsBlankAndDuplicateIDs(t *testing.T) {
	s := SnapshotOf([]model.TaskRecord{
		{ID: "", Owner: "noise"},
		{ID: "CT-001", Owner: "first"},
		{ID: "CT-001", Owner: "second"},
	})

	assert.Equal(t, 1, s.Len())
	r, ok := s.Get("CT-001")
	require.True(t, ok)
	assert.Equal(t, "first", r.Owner)
}
