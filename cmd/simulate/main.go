package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/clinic-scheduling/internal/db"
)

// simulate drives concurrent load at a running api-server: a pool of
// workers books random slots (overlaps are expected and should come back
// as 409 schedule conflicts), and a racer repeatedly fires two conflicting
// writes with the same concurrency token at one appointment, where exactly
// one must win and the other must get a stale 409.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	PostgresDSN string
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getenv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:    30 * time.Second,
		Workers:     8,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type Metrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *Metrics) Report(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Printf("\n=== %s ===\n", name)
	fmt.Printf("total=%d success=%d conflict=%d error=%d\n",
		m.Total, m.Success, m.Conflict, m.Error)

	if len(m.latencies) == 0 {
		return
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	p := func(q int) time.Duration {
		idx := len(sorted) * q / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	fmt.Printf("latency avg=%s min=%s max=%s p50=%s p95=%s\n",
		sum/time.Duration(len(sorted)), sorted[0], sorted[len(sorted)-1], p(50), p(95))
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required to load physician/patient ids")
	}

	physicians, patients, err := loadIDs(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("load ids: %v", err)
	}
	log.Printf("loaded %d physicians, %d patients", len(physicians), len(patients))
	if len(physicians) == 0 || len(patients) == 0 {
		log.Fatal("run cmd/seed first")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	frontDesk := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	bookings := &Metrics{}
	races := &Metrics{}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bookingWorker(ctx, client, cfg.APIBaseURL, frontDesk, physicians, patients, bookings)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		raceWorker(ctx, client, cfg.APIBaseURL, frontDesk, physicians, patients, races)
	}()

	wg.Wait()
	bookings.Report("bookings")
	races.Report("concurrency races")
}

func loadIDs(dsn string) (physicians, patients []uuid.UUID, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT id FROM physicians`)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		physicians = append(physicians, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT id FROM patients`)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		patients = append(patients, id)
	}
	rows.Close()

	return physicians, patients, nil
}

// bookingWorker books random near-future slots. Many will overlap on the
// same physician's day on purpose; the conflict policy should reject the
// losers with 409s rather than double-book.
func bookingWorker(ctx context.Context, client *http.Client, baseURL string, staffID uuid.UUID, physicians, patients []uuid.UUID, m *Metrics) {
	for ctx.Err() == nil {
		physician := physicians[rand.Intn(len(physicians))]
		patient := patients[rand.Intn(len(patients))]

		daysAhead := rand.Intn(5) + 1
		start := time.Now().UTC().AddDate(0, 0, daysAhead).Truncate(24 * time.Hour).
			Add(time.Duration(9+rand.Intn(7))*time.Hour + time.Duration(rand.Intn(6)*10)*time.Minute)

		body := map[string]any{
			"patient_id":         patient.String(),
			"physician_id":       physician.String(),
			"service_type":       "FOLLOW_UP_VISIT",
			"scheduled_start_at": start.Format(time.RFC3339),
		}

		status, _, latency := post(ctx, client, baseURL+"/appointments", staffID, body)
		m.Record(latency, status)

		time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
	}
}

// raceWorker books one appointment, then fires a check-in and a cancel at
// it concurrently, both holding the same expected_updated_at. One writer
// must win; the other must see a 409.
func raceWorker(ctx context.Context, client *http.Client, baseURL string, staffID uuid.UUID, physicians, patients []uuid.UUID, m *Metrics) {
	for ctx.Err() == nil {
		physician := physicians[rand.Intn(len(physicians))]
		patient := patients[rand.Intn(len(patients))]

		start := time.Now().UTC().AddDate(0, 0, rand.Intn(20)+10).Truncate(24 * time.Hour).
			Add(time.Duration(9+rand.Intn(7)) * time.Hour)

		body := map[string]any{
			"patient_id":         patient.String(),
			"physician_id":       physician.String(),
			"service_type":       "SICK_VISIT",
			"scheduled_start_at": start.Format(time.RFC3339),
		}
		status, resp, _ := post(ctx, client, baseURL+"/appointments", staffID, body)
		if status != http.StatusCreated {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		var created struct {
			ID        uuid.UUID `json:"id"`
			Lifecycle struct {
				UpdatedAt time.Time `json:"updated_at"`
			} `json:"lifecycle"`
		}
		if err := json.Unmarshal(resp, &created); err != nil {
			log.Printf("decode created appointment: %v", err)
			continue
		}

		token := created.Lifecycle.UpdatedAt.Format(time.RFC3339Nano)
		var wg sync.WaitGroup
		race := func(path string, body map[string]any) {
			defer wg.Done()
			status, _, latency := post(ctx, client, baseURL+"/appointments/"+created.ID.String()+path, staffID, body)
			m.Record(latency, status)
		}
		wg.Add(2)
		go race("/check-in", map[string]any{"expected_updated_at": token})
		go race("/cancel", map[string]any{"reason": "simulated race cancellation", "expected_updated_at": token})
		wg.Wait()

		time.Sleep(100 * time.Millisecond)
	}
}

func post(ctx context.Context, client *http.Client, url string, staffID uuid.UUID, body map[string]any) (int, []byte, time.Duration) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", staffID.String())
	req.Header.Set("X-User-Roles", "FRONT_DESK")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, latency
}
