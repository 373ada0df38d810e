package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinagenda/appointment-service/internal/appointment"
	"github.com/clinagenda/appointment-service/internal/config"
	"github.com/clinagenda/appointment-service/internal/db"
)

// simulate hammers one clinician-day with concurrent booking and reschedule
// requests, then audits the store for double-booked hours. Every hour of the
// window being fought over by many workers is the worst case for the
// check-then-act race.

type SimConfig struct {
	APIBaseURL  string
	Date        string
	Workers     int
	Duration    time.Duration
	PostgresDSN string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentile(p float64) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.Latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(om.Latencies))
	copy(sorted, om.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	sim := SimConfig{
		APIBaseURL:  getenv("SIM_API_URL", "http://127.0.0.1:8080"),
		Date:        getenv("SIM_DATE", time.Now().AddDate(0, 0, 7).Format("2006-01-02")),
		Workers:     getenvInt("SIM_WORKERS", 16),
		Duration:    getenvDuration("SIM_DURATION", 15*time.Second),
		PostgresDSN: cfg.PostgresDSN,
	}

	ctx, cancel := context.WithTimeout(context.Background(), sim.Duration+30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, sim.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	clinicianID, patientIDs, areaID, err := loadFixtures(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixtures: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("simulating %d workers against clinician %s on %s for %s\n",
		sim.Workers, clinicianID, sim.Date, sim.Duration)

	metrics := &OperationMetrics{}
	deadline := time.Now().Add(sim.Duration)

	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			client := &http.Client{Timeout: 10 * time.Second}

			for time.Now().Before(deadline) {
				hour := appointment.WindowOpenHour + rng.Intn(appointment.WindowCloseHour-appointment.WindowOpenHour+1)
				patientID := patientIDs[rng.Intn(len(patientIDs))]

				body, _ := json.Marshal(map[string]any{
					"patient_id":   patientID.String(),
					"area_id":      areaID.String(),
					"clinician_id": clinicianID.String(),
					"date":         sim.Date,
					"hour":         hour,
					"notes":        "simulated booking",
				})

				start := time.Now()
				resp, err := client.Post(sim.APIBaseURL+"/appointments", "application/json", bytes.NewReader(body))
				if err != nil {
					metrics.Record(time.Since(start), 0)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				metrics.Record(time.Since(start), resp.StatusCode)
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	fmt.Printf("total=%d success=%d conflict=%d error=%d p50=%s p99=%s\n",
		atomic.LoadInt64(&metrics.Total),
		atomic.LoadInt64(&metrics.Success),
		atomic.LoadInt64(&metrics.Conflict),
		atomic.LoadInt64(&metrics.Error),
		metrics.Percentile(0.50),
		metrics.Percentile(0.99),
	)

	duplicates, err := auditDoubleBookings(ctx, pool, clinicianID, sim.Date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}
	if duplicates > 0 {
		fmt.Printf("FAIL: %d double-booked hours found\n", duplicates)
		os.Exit(1)
	}
	fmt.Println("OK: no double-booked hours")
}

func loadFixtures(ctx context.Context, pool *pgxpool.Pool) (clinician uuid.UUID, patients []uuid.UUID, area uuid.UUID, err error) {
	if err = pool.QueryRow(ctx, `SELECT id FROM clinicians LIMIT 1`).Scan(&clinician); err != nil {
		return
	}
	if err = pool.QueryRow(ctx, `SELECT id FROM areas LIMIT 1`).Scan(&area); err != nil {
		return
	}

	rows, qerr := pool.Query(ctx, `SELECT id FROM patients LIMIT 100`)
	if qerr != nil {
		err = qerr
		return
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return
		}
		patients = append(patients, id)
	}
	err = rows.Err()
	if err == nil && len(patients) == 0 {
		err = fmt.Errorf("no patients seeded, run cmd/seed first")
	}
	return
}

func auditDoubleBookings(ctx context.Context, pool *pgxpool.Pool, clinicianID uuid.UUID, date string) (int, error) {
	var duplicates int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT scheduled_at
			FROM appointments
			WHERE clinician_id = $1
			  AND scheduled_at::date = $2::date
			  AND status = 'confirmed'
			GROUP BY scheduled_at
			HAVING COUNT(*) > 1
		) d
	`, clinicianID, date).Scan(&duplicates)
	return duplicates, err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
