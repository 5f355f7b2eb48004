package logging

import (
	"sync"
	"time"

	"coordworker/src/model"
)

// StatusResponse for JSON output
type StatusResponse struct {
	ID                string            `json:"id"`
	Identity          string            `json:"identity"`
	StartTime         time.Time         `json:"start_time"`
	Uptime            string            `json:"uptime"`
	CyclesRun         uint64            `json:"cycles_run"`
	TasksProcessed    uint64            `json:"tasks_processed"`
	TasksSuccessful   uint64            `json:"tasks_successful"`
	TasksFailed       uint64            `json:"tasks_failed"`
	DuplicatesRemoved uint64            `json:"duplicates_removed"`
	ChangeEvents      uint64            `json:"change_events"`
	StoreFailures     uint64            `json:"store_failures"`
	CurrentTask       *model.TaskRecord `json:"current_task,omitempty"`
}

// WorkerStats tracks the internal state of the worker
type WorkerStats struct {
	mu             sync.RWMutex
	statusResponse StatusResponse
}

func NewWorkerStats(id, identity string) *WorkerStats {
	return &WorkerStats{
		statusResponse: StatusResponse{
			ID:        id,
			Identity:  identity,
			StartTime: time.Now(),
		},
	}
}

// Delta is a set of counter increments applied in one call.
type Delta struct {
	Cycles            uint64
	Processed         uint64
	Succeeded         uint64
	Failed            uint64
	DuplicatesRemoved uint64
	ChangeEvents      uint64
	StoreFailures     uint64
}

// Update applies the increments and records the task in flight (nil when the
// worker is idle).
func (s *WorkerStats) Update(d Delta, current *model.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusResponse.CyclesRun += d.Cycles
	s.statusResponse.TasksProcessed += d.Processed
	s.statusResponse.TasksSuccessful += d.Succeeded
	s.statusResponse.TasksFailed += d.Failed
	s.statusResponse.DuplicatesRemoved += d.DuplicatesRemoved
	s.statusResponse.ChangeEvents += d.ChangeEvents
	s.statusResponse.StoreFailures += d.StoreFailures
	s.statusResponse.CurrentTask = current

	AddToCounter("worker_tasks_total", float64(d.Processed))
	AddToCounter("worker_tasks_succeeded", float64(d.Succeeded))
	AddToCounter("worker_tasks_failed", float64(d.Failed))
	AddToCounter("worker_duplicates_removed", float64(d.DuplicatesRemoved))
	AddToCounter("worker_change_events", float64(d.ChangeEvents))
	AddToCounter("worker_store_failures", float64(d.StoreFailures))

	UpdateSpanValue("worker_tasks_total", float64(s.statusResponse.TasksProcessed))
	UpdateSpanValue("worker_tasks_succeeded", float64(s.statusResponse.TasksSuccessful))
	UpdateSpanValue("worker_tasks_failed", float64(s.statusResponse.TasksFailed))
	UpdateSpanValue("worker_duplicates_removed", float64(s.statusResponse.DuplicatesRemoved))
	UpdateSpanValue("worker_change_events", float64(s.statusResponse.ChangeEvents))
	UpdateSpanValue("worker_store_failures", float64(s.statusResponse.StoreFailures))
}

// GetStats returns the current statistics as a response struct
func (s *WorkerStats) GetStats() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := s.statusResponse
	resp.Uptime = time.Since(s.statusResponse.StartTime).Truncate(time.Second).String()
	return resp
}
