package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coordworker/src/coordinator"
	"coordworker/src/logging"
	"coordworker/src/model"
	"coordworker/src/notify"
	"coordworker/src/store"
)

// Monitor watches the table for edits made outside the worker loops (humans
// fixing cells, other scripts appending rows). Each poll reconciles the
// table, snapshots it by id, diffs against the previous snapshot, and posts
// one notification per change. The first poll only seeds the baseline so a
// restart does not replay the whole table as "created".
type Monitor struct {
	Store        store.Store
	Notifier     notify.Notifier
	Stats        *logging.WorkerStats
	PollInterval time.Duration

	prev   coordinator.Snapshot
	seeded bool
}

func (m *Monitor) notifier() notify.Notifier {
	if m.Notifier != nil {
		return m.Notifier
	}
	return notify.LogSink{}
}

// Run polls until ctx is cancelled. wake may be nil.
func (m *Monitor) Run(ctx context.Context, wake <-chan struct{}) {
	interval := m.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Log(fmt.Sprintf("Change monitor polling every %s", interval), slog.LevelInfo)

	if _, err := m.Poll(ctx); err != nil {
		logging.Log(fmt.Sprintf("Monitor poll failed: %v", err), slog.LevelError)
	}
	for {
		select {
		case <-ctx.Done():
			logging.Log("Change monitor stopped", slog.LevelInfo)
			return
		case <-ticker.C:
		case <-wake:
		}
		if _, err := m.Poll(ctx); err != nil {
			logging.Log(fmt.Sprintf("Monitor poll failed: %v", err), slog.LevelError)
		}
	}
}

// Poll runs one observation pass and returns the change events it computed.
// On the baseline pass the events are returned but not notified.
func (m *Monitor) Poll(ctx context.Context) ([]coordinator.ChangeEvent, error) {
	records, removed, err := coordinator.ReconcileStore(ctx, m.Store)
	if err != nil {
		if m.Stats != nil {
			m.Stats.Update(logging.Delta{StoreFailures: 1}, nil)
		}
		return nil, err
	}

	current := coordinator.SnapshotOf(records)
	events := coordinator.Diff(m.prev, current)
	wasSeeded := m.seeded
	m.prev = current
	m.seeded = true

	if m.Stats != nil {
		d := logging.Delta{DuplicatesRemoved: uint64(len(removed))}
		if wasSeeded {
			d.ChangeEvents = uint64(len(events))
		}
		m.Stats.Update(d, nil)
	}

	if !wasSeeded {
		logging.Log(fmt.Sprintf("Baseline captured: %d records", current.Len()), slog.LevelInfo)
		return events, nil
	}

	for _, ev := range events {
		title, severity, body := describeChange(ev)
		if err := m.notifier().Post(ctx, title, severity, body); err != nil {
			logging.Log(fmt.Sprintf("Notification failed: %v", err), slog.LevelWarn)
		}
	}
	return events, nil
}

func describeChange(ev coordinator.ChangeEvent) (string, notify.Severity, string) {
	switch ev.Kind {
	case coordinator.ChangeCreated:
		return fmt.Sprintf("Task %s created", ev.ID), notify.SeverityInfo,
			fmt.Sprintf("%s (owner: %s, status: %s)", ev.Record.Description, ev.Record.Owner, ev.Record.Status)
	case coordinator.ChangeRemoved:
		return fmt.Sprintf("Task %s removed", ev.ID), notify.SeverityWarning,
			"record no longer present in the table"
	default:
		severity := notify.SeverityInfo
		if ev.Field == "status" && ev.NewValue == model.StatusBlocked {
			severity = notify.SeverityWarning
		}
		return fmt.Sprintf("Task %s %s changed", ev.ID, ev.Field), severity,
			fmt.Sprintf("%q -> %q", ev.OldValue, ev.NewValue)
	}
}
