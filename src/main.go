package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"coordworker/src/containerization"
	"coordworker/src/logging"
	"coordworker/src/notify"
	"coordworker/src/processor"
	"coordworker/src/store"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using process environment")
	}

	var (
		DB_USER             = os.Getenv("DB_USER")
		DB_PASSWORD         = os.Getenv("DB_PASSWORD")
		DB_NAME             = os.Getenv("DB_NAME")
		DB_HOST             = os.Getenv("DB_HOST")
		DB_PORT             = os.Getenv("DB_PORT")
		POLLING_INTERVAL, _ = strconv.Atoi(os.Getenv("POLLING_INTERVAL"))
		MONITOR_INTERVAL, _ = strconv.Atoi(os.Getenv("MONITOR_INTERVAL"))
	)

	identity := os.Getenv("WORKER_IDENTITY")
	if identity == "" {
		identity = "Server Worker"
	}

	// Enable SSL For Production
	db, err := sql.Open("postgres", fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=require",
		DB_USER, DB_PASSWORD, DB_NAME, DB_HOST, DB_PORT))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// Generate Unique Run ID
	runID := uuid.New().String()
	fmt.Printf("Starting worker %s for identity %q\n", runID, identity)

	// Setup Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.NewPostgresStore(db, os.Getenv("SHEET_TABLE"))
	if err := st.EnsureSchema(ctx); err != nil {
		panic(fmt.Sprintf("failed to prepare task table: %v", err))
	}

	stats := logging.NewWorkerStats(runID, identity)

	// Notification sink: Discord webhook when configured, log otherwise.
	var notifier notify.Notifier = notify.LogSink{}
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		notifier = notify.NewDiscordWebhook(url)
	}

	// Start Status API Server
	apiPort := os.Getenv("API_PORT")
	if apiPort == "" {
		apiPort = "8080"
	}
	go StartAPIServer(apiPort, st, stats)

	// Optional containerized script executor
	executors := map[string]processor.ExecuteFunc{}
	if os.Getenv("EXEC_DOCKER") == "true" {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			panic(fmt.Sprintf("failed to create docker client: %v", err))
		}
		defer cli.Close()

		sandboxNetworkID, err := containerization.EnsureSandboxNetwork(ctx, cli)
		if err != nil {
			panic(fmt.Sprintf("failed to setup sandbox network: %v", err))
		}
		fmt.Printf("Sandbox network ready: %s\n", sandboxNetworkID[:12])

		runner := containerization.NewScriptRunner(cli, sandboxNetworkID)
		executors["Script"] = runner.Execute
		defer runner.Cleanup(context.Background())

		idleTimeout, err := time.ParseDuration(envDefault("CONTAINER_IDLE_TIMEOUT", "5m"))
		if err != nil {
			fmt.Printf("Warning: bad CONTAINER_IDLE_TIMEOUT, defaulting to 5m: %v\n", err)
			idleTimeout = 5 * time.Minute
		}
		go runner.RunReaper(ctx, idleTimeout)

		// Pre-pull Docker Image
		imageName := envDefault("CONTAINER_IMAGE", "python:3.9-slim")
		fmt.Printf("Ensuring Docker image %s is available...\n", imageName)
		if reader, err := cli.ImagePull(ctx, imageName, image.PullOptions{}); err != nil {
			fmt.Printf("Warning: failed to pull image: %v. Execution might fail if image is not present locally.\n", err)
		} else {
			defer reader.Close()
			io.Copy(io.Discard, reader)
			fmt.Println("Docker image is ready.")
		}
	}

	// Setup PostgreSQL Listener for immediate wake on table writes
	connStr := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=require",
		DB_USER, DB_PASSWORD, DB_NAME, DB_HOST, DB_PORT)

	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			fmt.Printf("Listener error: %v\n", err)
		}
	}

	listener := pq.NewListener(connStr, 10*time.Second, time.Minute, reportProblem)
	if err := listener.Listen(store.NotifyChannel); err != nil {
		panic(err)
	}
	defer listener.Close()

	wakeWorker := make(chan struct{}, 1)
	wakeMonitor := make(chan struct{}, 1)
	go func() {
		for range listener.Notify {
			select {
			case wakeWorker <- struct{}{}:
			default:
			}
			select {
			case wakeMonitor <- struct{}{}:
			default:
			}
		}
	}()

	// Setup Worker OpenTelemetry Metrics
	logging.InitializeFloatCounter("worker_tasks_total", "Total number of tasks to the worker", "Task")
	logging.InitializeFloatCounter("worker_tasks_failed", "Number of failed tasks to the worker", "Task")
	logging.InitializeFloatCounter("worker_tasks_succeeded", "Number of succeeded tasks to the worker", "Task")
	logging.InitializeFloatCounter("worker_duplicates_removed", "Number of duplicate rows removed by reconciliation", "Row")
	logging.InitializeFloatCounter("worker_change_events", "Number of externally made changes observed", "Event")
	logging.InitializeFloatCounter("worker_store_failures", "Number of failed store calls", "Call")

	staleClaimAge, _ := time.ParseDuration(envDefault("STALE_CLAIM_AGE", "1h"))

	worker := &processor.Worker{
		Store:         st,
		Identity:      identity,
		RunID:         runID,
		ReadyStatus:   os.Getenv("READY_STATUS"),
		Executors:     executors,
		Notifier:      notifier,
		Stats:         stats,
		PollInterval:  time.Duration(intDefault(POLLING_INTERVAL, 30)) * time.Second,
		StaleClaimAge: staleClaimAge,
	}

	monitor := &processor.Monitor{
		Store:        st,
		Notifier:     notifier,
		Stats:        stats,
		PollInterval: time.Duration(intDefault(MONITOR_INTERVAL, 60)) * time.Second,
	}
	go monitor.Run(ctx, wakeMonitor)

	logging.Log("Worker started. Waiting for tasks (LISTEN/NOTIFY + Fallback Polling)...", slog.LevelInfo)
	worker.Run(ctx, wakeWorker)

	logging.Log("Shutting down worker gracefully...", slog.LevelInfo)
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
