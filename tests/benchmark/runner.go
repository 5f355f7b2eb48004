package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

// GlobalStats matches the structure from server.go
type GlobalStats struct {
	TotalTasks      int     `json:"total_tasks"`
	PendingTasks    int     `json:"pending_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	BlockedTasks    int     `json:"blocked_tasks"`
	AvgExecutionSec float64 `json:"avg_execution_seconds"`
	ThroughputTasks float64 `json:"throughput_tasks_per_hour"`
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func main() {
	count := flag.Int("count", 50, "Number of synthetic tasks to inject")
	owner := flag.String("owner", "Server Worker", "Owner identity to assign to injected tasks")
	category := flag.String("category", "Script", "Category of injected tasks")
	script := flag.String("script", "import sys; print('ok')", "Script body for injected tasks")
	dbHost := flag.String("db_host", "localhost", "Database host")
	apiHost := flag.String("api_host", "localhost", "Worker API host")
	apiPort := flag.String("api_port", "8080", "Worker API port")
	table := flag.String("table", "sheet_rows", "Backing table name")
	flag.Parse()

	// Load DB config from .env or defaults
	_ = godotenv.Load("../../.env")
	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	if dbUser == "" { dbUser = "user" }
	if dbPass == "" { dbPass = "password" }
	if dbName == "" { dbName = "coordworker" }

	connStr := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=5432 sslmode=require",
		dbUser, dbPass, dbName, *dbHost)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		fmt.Printf("%sFailed to connect to DB: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("\n%s%s >> COORDWORKER LOAD RUN: %d tasks for %q << %s\n", colorCyan, colorBold, *count, *owner, colorReset)

	initialStats, err := getGlobalStats(*apiHost, *apiPort)
	if err != nil {
		fmt.Printf("%s[WARN]%s Could not get initial stats: %v. Metrics might be absolute.\n", colorYellow, colorReset, err)
	}

	if err := injectTasks(db, *table, *count, *owner, *category, *script); err != nil {
		fmt.Printf("%s[ERR]%s Failed to inject tasks: %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}
	fmt.Printf("%s[OK]%s Tasks injected.\n\n", colorGreen, colorReset)

	// Monitor Progress
	startTime := time.Now()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	fmt.Printf("%s%-10s %-12s %-10s %-12s %-10s%s\n", colorGray+colorBold, "ELAPSED", "COMPLETED", "BLOCKED", "IN PROGRESS", "PENDING", colorReset)
	fmt.Println(colorGray + "------------------------------------------------------------" + colorReset)

	for range ticker.C {
		stats, err := getGlobalStats(*apiHost, *apiPort)

		elapsed := time.Since(startTime).Round(time.Second).String()

		if err != nil {
			fmt.Printf("\r%-10s %s%-42s%s",
				elapsed,
				colorRed, "Error: Connection Refused (Retrying...)", colorReset,
			)
			continue
		}

		deltaCompleted := stats.CompletedTasks - initialStats.CompletedTasks
		deltaBlocked := stats.BlockedTasks - initialStats.BlockedTasks

		statusColor := colorGreen
		if deltaBlocked > 0 {
			statusColor = colorRed
		}

		fmt.Printf("\r%-10s %s%-12d%s %s%-10d%s %s%-12d%s %-10d",
			elapsed,
			colorGreen, deltaCompleted, colorReset,
			statusColor, deltaBlocked, colorReset,
			colorYellow, stats.InProgressTasks, colorReset,
			stats.PendingTasks,
		)

		if stats.InProgressTasks == 0 && stats.PendingTasks == 0 && deltaCompleted+deltaBlocked > 0 {
			fmt.Printf("\n%s------------------------------------------------------------%s\n", colorGray, colorReset)
			printReport(stats, initialStats, time.Since(startTime))
			break
		}
	}
}

// injectTasks appends count rows below the current end of the table, each
// with a fresh sequential id. Ids are allocated in one statement here purely
// for injection speed; real producers go through the worker's allocator.
func injectTasks(db *sql.DB, table string, count int, owner, category, script string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxPos int
	if err := tx.QueryRow(fmt.Sprintf(`SELECT COALESCE(MAX(position), 1) FROM %s`, table)).Scan(&maxPos); err != nil {
		return err
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	for i := 1; i <= count; i++ {
		cells := []string{
			fmt.Sprintf("LOAD-%03d", maxPos+i),
			owner,
			category,
			"Low",
			"Pending",
			script,
			"", "", now, "", "",
		}
		_, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (position, cells) VALUES ($1, $2)`, table),
			maxPos+i, pq.Array(cells))
		if err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`SELECT pg_notify('rows_updated', '')`); err != nil {
		return err
	}
	return tx.Commit()
}

func getGlobalStats(host, port string) (GlobalStats, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s:%s/global-status", host, port))
	if err != nil {
		return GlobalStats{}, err
	}
	defer resp.Body.Close()

	var stats GlobalStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return GlobalStats{}, err
	}
	return stats, nil
}

func printReport(final, initial GlobalStats, duration time.Duration) {
	totalProcessed := (final.CompletedTasks - initial.CompletedTasks) + (final.BlockedTasks - initial.BlockedTasks)
	tps := float64(totalProcessed) / duration.Seconds()

	successRate := 100.0
	if totalProcessed > 0 {
		successRate = (float64(final.CompletedTasks-initial.CompletedTasks) / float64(totalProcessed)) * 100
	}

	fmt.Println("\n" + colorCyan + colorBold + "┏━━━━━━━━━━━━━━━━━━━━━━ REPORT ━━━━━━━━━━━━━━━━━━━━━━┓" + colorReset)

	lineFmt := colorCyan + "┃" + colorReset + "  %-22s " + colorBold + "%-25s" + colorCyan + "┃" + colorReset

	fmt.Printf(lineFmt+"\n", "Duration:", duration.Truncate(time.Millisecond).String())
	fmt.Printf(lineFmt+"\n", "Total Tasks:", fmt.Sprintf("%d", totalProcessed))
	fmt.Printf(lineFmt+"\n", "  - Completed:", fmt.Sprintf("%d", final.CompletedTasks-initial.CompletedTasks))
	fmt.Printf(lineFmt+"\n", "  - Blocked:", fmt.Sprintf("%d", final.BlockedTasks-initial.BlockedTasks))
	fmt.Printf(lineFmt+"\n", "Success Rate:", fmt.Sprintf("%.2f%%", successRate))
	fmt.Printf(lineFmt+"\n", "Throughput (TPS):", fmt.Sprintf("%.2f tasks/sec", tps))
	fmt.Printf(lineFmt+"\n", "Hourly Capacity:", fmt.Sprintf("%.1f tasks/hr", final.ThroughputTasks))

	fmt.Println(colorCyan + colorBold + "┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛" + colorReset)
}
