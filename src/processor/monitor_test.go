package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordworker/src/coordinator"
	"coordworker/src/model"
	"coordworker/src/notify"
	"coordworker/src/store"
)

func TestMonitorBaselineDoesNotNotify(t *testing.T) {
	st := store.NewMemoryStore(
		taskRow("CT-001", "Mac Worker", "Echo", model.StatusPending),
		taskRow("CT-002", "Server Worker", "Echo", model.StatusComplete),
	)
	notifier := &recordingNotifier{}
	m := &Monitor{Store: st, Notifier: notifier}

	events, err := m.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2, "baseline diff against empty previous sees everything as created")
	assert.Empty(t, notifier.all(), "restart must not replay the whole table")
}

func TestMonitorNotifiesManualEdit(t *testing.T) {
	st := store.NewMemoryStore(
		taskRow("CT-001", "Mac Worker", "Echo", model.StatusPending),
	)
	notifier := &recordingNotifier{}
	m := &Monitor{Store: st, Notifier: notifier}

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	// A human flips the status directly in the table.
	err = st.WriteRange(context.Background(), store.RowRange{Start: 2, End: 2},
		[][]string{taskRow("CT-001", "Mac Worker", "Echo", model.StatusComplete)})
	require.NoError(t, err)

	events, err := m.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, coordinator.ChangeField, events[0].Kind)
	assert.Equal(t, "status", events[0].Field)

	posts := notifier.all()
	require.Len(t, posts, 1)
	assert.Equal(t, "Task CT-001 status changed", posts[0].title)
	assert.Contains(t, posts[0].body, `"Pending" -> "Complete"`)
}

func TestMonitorNotifiesCreationAndRemoval(t *testing.T) {
	st := store.NewMemoryStore(
		taskRow("CT-001", "Mac Worker", "Echo", model.StatusPending),
	)
	notifier := &recordingNotifier{}
	m := &Monitor{Store: st, Notifier: notifier}

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	// CT-001 disappears, CT-002 appears.
	require.NoError(t, st.ClearRange(context.Background(), store.Data))
	require.NoError(t, st.WriteRange(context.Background(), store.Data,
		[][]string{taskRow("CT-002", "Server Worker", "Echo", model.StatusNotStarted)}))

	events, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	posts := notifier.all()
	require.Len(t, posts, 2)
	assert.Equal(t, "Task CT-002 created", posts[0].title)
	assert.Equal(t, notify.SeverityInfo, posts[0].severity)
	assert.Equal(t, "Task CT-001 removed", posts[1].title)
	assert.Equal(t, notify.SeverityWarning, posts[1].severity)
}

func TestMonitorEscalatesBlockedStatus(t *testing.T) {
	st := store.NewMemoryStore(
		taskRow("CT-001", "Mac Worker", "Echo", model.StatusInProgress),
	)
	notifier := &recordingNotifier{}
	m := &Monitor{Store: st, Notifier: notifier}

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	err = st.WriteRange(context.Background(), store.RowRange{Start: 2, End: 2},
		[][]string{taskRow("CT-001", "Mac Worker", "Echo", model.StatusBlocked)})
	require.NoError(t, err)

	_, err = m.Poll(context.Background())
	require.NoError(t, err)

	posts := notifier.all()
	require.Len(t, posts, 1)
	assert.Equal(t, notify.SeverityWarning, posts[0].severity)
}

func TestMonitorReconcilesDuplicatesWithoutChangeNoise(t *testing.T) {
	st := store.NewMemoryStore(
		taskRow("CT-001", "Mac Worker", "Echo", model.StatusPending),
		taskRow("CT-001", "Mac Worker", "Echo", model.StatusPending),
	)
	notifier := &recordingNotifier{}
	m := &Monitor{Store: st, Notifier: notifier}

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Rows(), 2, "duplicate removed on first pass")

	events, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events, "dedup row shifts are invisible to the id-keyed diff")
	assert.Empty(t, notifier.all())
}
