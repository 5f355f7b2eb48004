package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"coordworker/src/model"
)

func TestUpdateAccumulatesCounts(t *testing.T) {
	s := NewWorkerStats("run-1", "Mac Worker")

	s.Update(Delta{Cycles: 1, Processed: 1, Succeeded: 1}, nil)
	s.Update(Delta{Cycles: 1, Processed: 1, Failed: 1, StoreFailures: 2}, nil)

	resp := s.GetStats()
	assert.Equal(t, uint64(2), resp.CyclesRun)
	assert.Equal(t, uint64(2), resp.TasksProcessed)
	assert.Equal(t, uint64(1), resp.TasksSuccessful)
	assert.Equal(t, uint64(1), resp.TasksFailed)
	assert.Equal(t, uint64(2), resp.StoreFailures)
	assert.Nil(t, resp.CurrentTask)
}

func TestUpdateTracksCurrentTask(t *testing.T) {
	s := NewWorkerStats("run-1", "Mac Worker")

	task := model.TaskRecord{ID: "CT-007", Status: model.StatusInProgress}
	s.Update(Delta{Processed: 1}, &task)
	require.NotNil(t, s.GetStats().CurrentTask)
	assert.Equal(t, "CT-007", s.GetStats().CurrentTask.ID)

	s.Update(Delta{}, nil)
	assert.Nil(t, s.GetStats().CurrentTask, "idle worker reports no task in flight")
}

func TestUpdateFeedsMetricCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	_, err := InitializeFloatCounter("worker_tasks_total", "Total number of tasks to the worker", "Task")
	require.NoError(t, err)
	_, err = InitializeFloatCounter("worker_store_failures", "Number of failed store calls", "Call")
	require.NoError(t, err)

	s := NewWorkerStats("run-1", "Mac Worker")
	s.Update(Delta{Processed: 2, StoreFailures: 1}, nil)
	s.Update(Delta{Processed: 1}, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]float64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[float64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, 3.0, sums["worker_tasks_total"])
	assert.Equal(t, 1.0, sums["worker_store_failures"])
}
