package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coordworker/src/logging"
	"coordworker/src/model"
	"coordworker/src/store"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GlobalStats represents table-wide metrics computed from a fresh read.
type GlobalStats struct {
	TotalTasks      int     `json:"total_tasks"`
	PendingTasks    int     `json:"pending_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	BlockedTasks    int     `json:"blocked_tasks"`
	AvgExecutionSec float64 `json:"avg_execution_seconds"`
	ThroughputTasks float64 `json:"throughput_tasks_per_hour"`
}

// APIServer holds dependencies for the HTTP handlers
type APIServer struct {
	store store.Store
	stats *logging.WorkerStats
}

// StartAPIServer starts the HTTP server with graceful shutdown and OTel
func StartAPIServer(port string, st store.Store, workerStats *logging.WorkerStats) error {
	// 1. Setup Context for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Setup OpenTelemetry
	otelShutdown, err := logging.SetupOTelSDK(context.Background())
	if err != nil {
		return fmt.Errorf("failed to setup OTel SDK: %w", err)
	}
	defer func() {
		// Ensure OTel flushes spans before exiting
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "OTel shutdown error: %v\n", err)
		}
	}()

	srv := &APIServer{
		store: st,
		stats: workerStats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", srv.statusHandler)
	mux.HandleFunc("/global-status", srv.globalStatusHandler)

	// 3. Wrap Mux with OTel Middleware
	otelHandler := otelhttp.NewHandler(mux, "worker-api-server")

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: otelHandler,
	}

	// 4. Run Server in Background
	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("API Server starting on :%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 5. Wait for Shutdown Signal or Error
	select {
	case err := <-serverErr:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		fmt.Println("\nShutdown signal received, closing server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		fmt.Println("Server exited cleanly")
	}

	return nil
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.stats.GetStats())
}

func (s *APIServer) globalStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	records, err := store.ReadRecords(r.Context(), s.store)
	if err != nil {
		http.Error(w, "Failed to read task table", http.StatusInternalServerError)
		return
	}

	var gs GlobalStats
	var execTotal float64
	var execCount int
	hourAgo := time.Now().Add(-1 * time.Hour)

	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		gs.TotalTasks++
		switch rec.Status {
		case model.StatusPending:
			gs.PendingTasks++
		case model.StatusInProgress:
			gs.InProgressTasks++
		case model.StatusComplete:
			gs.CompletedTasks++
		case model.StatusBlocked:
			gs.BlockedTasks++
		}

		// Aggregate over parseable timestamps only; the cells are free text.
		if rec.Status != model.StatusComplete || rec.CompletedAt == "" {
			continue
		}
		completed, err := time.Parse(model.TimeFormat, rec.CompletedAt)
		if err != nil {
			continue
		}
		if completed.After(hourAgo) {
			gs.ThroughputTasks++
		}
		if created, err := time.Parse(model.TimeFormat, rec.CreatedAt); err == nil && completed.After(created) {
			execTotal += completed.Sub(created).Seconds()
			execCount++
		}
	}
	if execCount > 0 {
		gs.AvgExecutionSec = execTotal / float64(execCount)
	}

	_ = json.NewEncoder(w).Encode(gs)
}
