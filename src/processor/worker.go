package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"coordworker/src/coordinator"
	"coordworker/src/logging"
	"coordworker/src/model"
	"coordworker/src/notify"
	"coordworker/src/store"
)

// ExecuteFunc performs the unit of work for one task record and reports the
// outcome to write back. Returning an error degrades the record to Blocked;
// it never kills the worker loop.
type ExecuteFunc func(ctx context.Context, task model.TaskRecord) (model.Outcome, error)

// Worker is one polling loop bound to a worker identity. Each cycle it
// reconciles the table, routes the first ready record owned by its identity,
// claims it, executes it, and commits the outcome. Multiple workers may run
// against the same table with no coordination beyond reconciliation.
type Worker struct {
	Store    store.Store
	Identity string
	RunID    string

	// ReadyStatus is the status a record must hold to be selected.
	// Defaults to Pending.
	ReadyStatus string

	// Executors maps task categories to their callbacks. Fallback handles
	// categories with no entry; with no Fallback either, the record is
	// blocked with a note saying so.
	Executors map[string]ExecuteFunc
	Fallback  ExecuteFunc

	Notifier     notify.Notifier
	Stats        *logging.WorkerStats
	PollInterval time.Duration

	// StaleClaimAge, when positive, recovers In Progress records whose claim
	// stamp is older than this by flipping them to Blocked. Handles workers
	// that died mid-execution.
	StaleClaimAge time.Duration

	Now func() time.Time
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) readyStatus() string {
	if w.ReadyStatus != "" {
		return w.ReadyStatus
	}
	return model.StatusPending
}

func (w *Worker) notifier() notify.Notifier {
	if w.Notifier != nil {
		return w.Notifier
	}
	return notify.LogSink{}
}

// Run polls until ctx is cancelled. wake may be nil; when set, a receive on
// it triggers an immediate cycle (e.g. from a store change notification).
// Cancellation is only honored between cycles, never mid-execution. A failed
// cycle just waits out the next tick, so the poll interval doubles as the
// store-failure backoff.
func (w *Worker) Run(ctx context.Context, wake <-chan struct{}) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Log(fmt.Sprintf("Worker %s polling for identity %q every %s", w.RunID, w.Identity, interval), slog.LevelInfo)

	if err := w.RunCycle(ctx); err != nil {
		logging.Log(fmt.Sprintf("Cycle failed: %v", err), slog.LevelError)
	}
	for {
		select {
		case <-ctx.Done():
			logging.Log(fmt.Sprintf("Worker %s stopped", w.RunID), slog.LevelInfo)
			return
		case <-ticker.C:
		case <-wake:
		}
		if err := w.RunCycle(ctx); err != nil {
			logging.Log(fmt.Sprintf("Cycle failed: %v", err), slog.LevelError)
		}
	}
}

// RunCycle performs one Selecting -> Executing -> Committing pass. The
// returned error covers store availability only; task-level failures are
// written into the record and do not surface here.
func (w *Worker) RunCycle(ctx context.Context) error {
	records, removed, err := coordinator.ReconcileStore(ctx, w.Store)
	if err != nil {
		w.stats(logging.Delta{StoreFailures: 1}, nil)
		return err
	}
	w.stats(logging.Delta{Cycles: 1, DuplicatesRemoved: uint64(len(removed))}, nil)

	if w.StaleClaimAge > 0 {
		w.recoverStaleClaims(ctx, records)
	}

	task, ok := coordinator.NextTask(records,
		coordinator.OwnedBy(w.Identity), coordinator.HasStatus(w.readyStatus()))
	if !ok {
		return nil
	}

	// Claim before executing. The claim is its own write so a concurrent
	// worker scanning the table sees the record leave the ready state.
	claimStamp := fmt.Sprintf("claimed %s by %s", w.now().Format(model.TimeFormat), w.RunID)
	err = w.commitByID(ctx, task.ID, func(r *model.TaskRecord) {
		r.Status = model.StatusInProgress
		r.Notes = appendNote(r.Notes, claimStamp)
	})
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			logging.Log(fmt.Sprintf("Task %s vanished before claim, skipping", task.ID), slog.LevelWarn)
			return nil
		}
		w.stats(logging.Delta{StoreFailures: 1}, nil)
		return err
	}

	logging.Log(fmt.Sprintf("Processing task %s (%s)", task.ID, task.Category), slog.LevelInfo)
	w.stats(logging.Delta{Processed: 1}, &task)
	defer w.stats(logging.Delta{}, nil)

	outcome, execErr := w.execute(ctx, task)
	if execErr != nil {
		logging.Log(fmt.Sprintf("Task %s execution failed: %v", task.ID, execErr), slog.LevelError)
		outcome = model.Outcome{
			Status: model.StatusBlocked,
			Notes:  fmt.Sprintf("execution failed: %v", execErr),
		}
	}
	if outcome.Status == "" {
		outcome.Status = model.StatusComplete
	}

	if err := w.commitOutcome(ctx, task.ID, outcome); err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			logging.Log(fmt.Sprintf("Task %s vanished before commit: %v", task.ID, err), slog.LevelWarn)
			w.post(ctx, fmt.Sprintf("Task %s lost", task.ID), notify.SeverityWarning,
				"record disappeared before its outcome could be written back")
			return nil
		}
		w.stats(logging.Delta{StoreFailures: 1}, nil)
		return err
	}

	if outcome.Status == model.StatusBlocked {
		w.stats(logging.Delta{Failed: 1}, nil)
		w.post(ctx, fmt.Sprintf("Task %s blocked", task.ID), notify.SeverityError, outcome.Notes)
	} else {
		w.stats(logging.Delta{Succeeded: 1}, nil)
		logging.Log(fmt.Sprintf("Task %s -> %s", task.ID, outcome.Status), slog.LevelInfo)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, task model.TaskRecord) (model.Outcome, error) {
	exec := w.Executors[task.Category]
	if exec == nil {
		exec = w.Fallback
	}
	if exec == nil {
		return model.Outcome{
			Status: model.StatusBlocked,
			Notes:  fmt.Sprintf("no executor registered for category %q", task.Category),
		}, nil
	}
	return exec(ctx, task)
}

// commitOutcome writes status, notes, output and completion stamp back onto
// the record's current row.
func (w *Worker) commitOutcome(ctx context.Context, id string, outcome model.Outcome) error {
	return w.commitByID(ctx, id, func(r *model.TaskRecord) {
		r.Status = outcome.Status
		if outcome.Notes != "" {
			r.Notes = appendNote(r.Notes, outcome.Notes)
		}
		if outcome.Output != "" {
			r.ExpectedOutput = outcome.Output
		}
		if outcome.Status == model.StatusComplete {
			r.CompletedAt = w.now().Format(model.TimeFormat)
		}
	})
}

// commitByID re-resolves the record's row by id on a fresh read and writes
// the mutated row back in place. Row positions observed earlier in the cycle
// are useless here: a concurrent reconciliation may have shifted every row
// since, and writing through a stale index corrupts whichever record now
// occupies it.
func (w *Worker) commitByID(ctx context.Context, id string, mutate func(*model.TaskRecord)) error {
	rows, err := w.Store.ReadRange(ctx, store.Data)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if store.IsBlankRow(row) || store.IsHeaderRow(row) {
			continue
		}
		if row[store.ColID] != id {
			continue
		}
		position := store.Data.Start + i
		rec := store.DecodeRecord(row, position)
		mutate(&rec)
		return w.Store.WriteRange(ctx,
			store.RowRange{Start: position, End: position},
			[][]string{store.EncodeRecord(rec)})
	}
	return &store.NotFoundError{ID: id}
}

var claimStampPattern = regexp.MustCompile(`claimed (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) by `)

// recoverStaleClaims blocks In Progress records whose claim stamp has aged
// past StaleClaimAge. Records claimed without a stamp (human edits) are left
// alone. Notes accumulate a trail of stamps as a record is claimed, blocked
// and re-pended over its life, so only the latest stamp counts; judging an
// earlier one would kill a live claim mid-execution.
func (w *Worker) recoverStaleClaims(ctx context.Context, records []model.TaskRecord) {
	for _, r := range records {
		if r.Status != model.StatusInProgress {
			continue
		}
		stamps := claimStampPattern.FindAllStringSubmatch(r.Notes, -1)
		if len(stamps) == 0 {
			continue
		}
		claimedAt, err := time.Parse(model.TimeFormat, stamps[len(stamps)-1][1])
		if err != nil {
			continue
		}
		if w.now().Sub(claimedAt) <= w.StaleClaimAge {
			continue
		}
		note := fmt.Sprintf("stale claim recovered after %s", w.StaleClaimAge)
		err = w.commitByID(ctx, r.ID, func(rec *model.TaskRecord) {
			rec.Status = model.StatusBlocked
			rec.Notes = appendNote(rec.Notes, note)
		})
		if err != nil {
			logging.Log(fmt.Sprintf("Failed to recover stale claim on %s: %v", r.ID, err), slog.LevelError)
			continue
		}
		logging.Log(fmt.Sprintf("Recovered stale claim on %s", r.ID), slog.LevelWarn)
		w.post(ctx, fmt.Sprintf("Task %s stalled", r.ID), notify.SeverityWarning, note)
	}
}

func (w *Worker) stats(d logging.Delta, current *model.TaskRecord) {
	if w.Stats != nil {
		w.Stats.Update(d, current)
	}
}

func (w *Worker) post(ctx context.Context, title string, severity notify.Severity, body string) {
	if err := w.notifier().Post(ctx, title, severity, body); err != nil {
		logging.Log(fmt.Sprintf("Notification failed: %v", err), slog.LevelWarn)
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + " | " + note
}
