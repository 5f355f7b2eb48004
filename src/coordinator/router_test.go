package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordworker/src/model"
)

func TestNextTaskFirstMatchInTableOrder(t *testing.T) {
	records := []model.TaskRecord{
		{ID: "CT-001", Owner: "Mac", Status: "Complete"},
		{ID: "CT-002", Owner: "Mac", Status: "Pending"},
		{ID: "CT-003", Owner: "Mac", Status: "Pending"},
	}

	task, ok := NextTask(records, OwnedBy("Mac"), HasStatus("Pending"))

	require.True(t, ok)
	assert.Equal(t, "CT-002", task.ID)
}

func TestNextTaskNoneAvailable(t *testing.T) {
	records := []model.TaskRecord{
		{ID: "CT-001", Owner: "Server", Status: "Pending"},
		{ID: "CT-002", Owner: "Mac", Status: "Complete"},
	}

	_, ok := NextTask(records, OwnedBy("Mac"), HasStatus("Pending"))
	assert.False(t, ok)
}

func TestNextTaskDoesNotMutateInput(t *testing.T) {
	records := []model.TaskRecord{
		{ID: "CT-001", Owner: "Mac", Status: "Pending", Notes: "untouched"},
		{ID: "CT-002", Owner: "Mac", Status: "Pending"},
	}
	before := append([]model.TaskRecord(nil), records...)

	_, _ = NextTask(records, OwnedBy("Mac"), HasStatus("Pending"))

	assert.Equal(t, before, records)
}

func TestOwnedByMatchesContainment(t *testing.T) {
	assert.True(t, OwnedBy("Mac Worker")(model.TaskRecord{Owner: "Mac Worker (auto)"}))
	assert.False(t, OwnedBy("Mac Worker")(model.TaskRecord{Owner: "Server Worker"}))
	assert.False(t, OwnedBy("")(model.TaskRecord{Owner: "anyone"}), "empty identity claims nothing")
}

func TestNextTaskSkipsRecordsWithoutID(t *testing.T) {
	records := []model.TaskRecord{
		{ID: "", Owner: "Mac", Status: "Pending"},
		{ID: "CT-002", Owner: "Mac", Status: "Pending"},
	}

	task, ok := NextTask(records, OwnedBy("Mac"), HasStatus("Pending"))

	require.True(t, ok)
	assert.Equal(t, "CT-002", task.ID)
}
